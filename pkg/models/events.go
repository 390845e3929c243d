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

import (
	"strings"
	"time"
)

// EventSource identifies the external system an event came from.
type EventSource string

const (
	SourceEmail    EventSource = "email"
	SourceCalendar EventSource = "calendar"
)

// AllSources is the fixed fetch order.
var AllSources = []EventSource{SourceEmail, SourceCalendar}

// Event types carried on SSMEvent.Type.
const (
	EventTypeEmail    = "email"
	EventTypeCalendar = "calendar_event"
)

// Metadata keys populated by the source adapters.
const (
	MetaFrom      = "from"
	MetaSubject   = "subject"
	MetaDate      = "date"
	MetaThreadID  = "threadId"
	MetaMessageID = "messageId"
	MetaSummary   = "summary"
	MetaStart     = "start"
	MetaEnd       = "end"
	MetaLocation  = "location"
	MetaOrganizer = "organizer"
	MetaStatus    = "status"
	MetaHTMLLink  = "htmlLink"
)

// SSMEvent is the canonical in-memory shape of a fetched item. It is never
// persisted beyond the cycle that produced it.
type SSMEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Source    EventSource       `json:"source"`
	Type      string            `json:"type"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Body returns the content after the header block for email events.
func (e *SSMEvent) Body() string {
	if e.Type != EventTypeEmail {
		return e.Content
	}

	if _, body, ok := strings.Cut(e.Content, "\n\n"); ok {
		return body
	}

	return e.Content
}

// SSMAlert is produced at most once per event.
type SSMAlert struct {
	EventID      string   `json:"event_id"`
	MatchedRules []string `json:"matched_rules"`
	Severity     Severity `json:"severity"`
	Title        string   `json:"title,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// Severity is ordered low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}

	return a
}
