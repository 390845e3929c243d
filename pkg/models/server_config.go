/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "time"

// ServerConfig is the per-node monitoring configuration. It is persisted
// only as ciphertext and replaced wholesale on every write.
type ServerConfig struct {
	Rules           []Rule                   `json:"rules"`
	AlertTemplates  []AlertTemplate          `json:"alert_templates,omitempty"`
	AutoReply       *AutoReplySettings       `json:"auto_reply,omitempty"`
	SpreadsheetSink *SpreadsheetSinkSettings `json:"spreadsheet_sink,omitempty"`
	PollingSettings PollingSettings          `json:"polling_settings"`
	Version         int64                    `json:"version"`
	OwnerID         string                   `json:"owner_id"`
	NodeID          string                   `json:"node_id"`
	SyncedAt        time.Time                `json:"synced_at"`
}

// Rule is one user-authored predicate set. All populated predicates must hold
// for the rule to match.
type Rule struct {
	ID              string        `json:"id"`
	Name            string        `json:"name,omitempty"`
	Enabled         *bool         `json:"enabled,omitempty"`
	Sources         []EventSource `json:"sources,omitempty"`
	Keyword         string        `json:"keyword,omitempty"`
	Keywords        []string      `json:"keywords,omitempty"`
	MatchAll        bool          `json:"match_all,omitempty"`
	SenderContains  string        `json:"sender_contains,omitempty"`
	SubjectContains string        `json:"subject_contains,omitempty"`
	Pattern         string        `json:"pattern,omitempty"`
	Severity        Severity      `json:"severity"`
}

// IsEnabled treats an absent flag as enabled.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// AllKeywords merges the single keyword shorthand into the keyword list.
func (r *Rule) AllKeywords() []string {
	if r.Keyword == "" {
		return r.Keywords
	}

	out := make([]string, 0, len(r.Keywords)+1)
	out = append(out, r.Keyword)

	return append(out, r.Keywords...)
}

// AlertTemplate renders alert text for one severity. An empty severity marks
// the default template. Title and Body are text/template sources.
type AlertTemplate struct {
	Severity Severity `json:"severity,omitempty"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
}

// AutoReplySettings configures the rate-limited reply to an alerting email.
type AutoReplySettings struct {
	Enabled       bool       `json:"enabled"`
	Subject       string     `json:"subject,omitempty"`
	Body          string     `json:"body"`
	MaxPerWindow  int        `json:"max_per_window,omitempty"`
	WindowMinutes int        `json:"window_minutes,omitempty"`
	Severities    []Severity `json:"severities,omitempty"`
}

// SpreadsheetSinkSettings configures the alert log spreadsheet.
type SpreadsheetSinkSettings struct {
	Enabled         bool          `json:"enabled"`
	SheetName       string        `json:"sheet_name"`
	CreateIfMissing bool          `json:"create_if_missing"`
	SpreadsheetID   string        `json:"spreadsheet_id,omitempty"`
	Tab             string        `json:"tab,omitempty"`
	Columns         []SheetColumn `json:"columns,omitempty"`
	ConnectionID    string        `json:"connection_id,omitempty"`
}

// SheetColumn maps one spreadsheet column to an alert/event field.
type SheetColumn struct {
	Header string     `json:"header"`
	Field  SheetField `json:"field"`
}

// SheetField names a value that can be written into a sink row.
type SheetField string

const (
	FieldSender       SheetField = "sender"
	FieldSubject      SheetField = "subject"
	FieldTimestamp    SheetField = "timestamp"
	FieldBody         SheetField = "body"
	FieldBodyPreview  SheetField = "body_preview"
	FieldMatchedRules SheetField = "matched_rules"
	FieldSeverity     SheetField = "severity"
	FieldSource       SheetField = "source"
	FieldEventID      SheetField = "event_id"
	FieldTitle        SheetField = "title"
)

// KnownSheetFields lists every supported column field.
var KnownSheetFields = []SheetField{
	FieldSender, FieldSubject, FieldTimestamp, FieldBody, FieldBodyPreview,
	FieldMatchedRules, FieldSeverity, FieldSource, FieldEventID, FieldTitle,
}

// DefaultSheetColumns is used when a sink omits its column mapping.
func DefaultSheetColumns() []SheetColumn {
	return []SheetColumn{
		{Header: "Timestamp", Field: FieldTimestamp},
		{Header: "Source", Field: FieldSource},
		{Header: "Sender", Field: FieldSender},
		{Header: "Subject", Field: FieldSubject},
		{Header: "Severity", Field: FieldSeverity},
		{Header: "Matched Rules", Field: FieldMatchedRules},
		{Header: "Preview", Field: FieldBodyPreview},
	}
}

// PollingSettings holds per-source settings and the cron interval.
type PollingSettings struct {
	Email           SourceSettings `json:"email"`
	Calendar        SourceSettings `json:"calendar"`
	IntervalMinutes int            `json:"interval_minutes,omitempty"`
}

// SourceSettings is the per-source switch, connection and sync cursor.
type SourceSettings struct {
	Enabled      bool   `json:"enabled"`
	ConnectionID string `json:"connection_id,omitempty"`
	Cursor       string `json:"cursor,omitempty"`
}

// ForSource returns a pointer to the settings of src, or nil.
func (p *PollingSettings) ForSource(src EventSource) *SourceSettings {
	switch src {
	case SourceEmail:
		return &p.Email
	case SourceCalendar:
		return &p.Calendar
	default:
		return nil
	}
}

// Interval returns the configured interval or the default.
func (p *PollingSettings) Interval() int {
	if p.IntervalMinutes <= 0 {
		return DefaultPollIntervalMinutes
	}

	return p.IntervalMinutes
}
