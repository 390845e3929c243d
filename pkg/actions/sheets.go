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

package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
	"github.com/carverauto/ssm/pkg/rules"
)

const (
	// DefaultTab is the first tab of a freshly created spreadsheet.
	DefaultTab = "Sheet1"

	bodyPreviewLength = 200
)

// SheetSummary aggregates one logging batch. Stale reports that the id the
// batch started with no longer exists; SpreadsheetID is then its
// replacement, or empty when none could be resolved.
type SheetSummary struct {
	SpreadsheetID string
	Rows          int
	Failed        int
	Stale         bool
	Err           error
}

// SheetLogger appends one row per alert to the node's tracking spreadsheet.
// Sink resolution is collapsed per (user, sink name) inside the process so
// concurrent cycles never create duplicate spreadsheets.
type SheetLogger struct {
	group    singleflight.Group
	mu       sync.RWMutex
	resolved map[string]string
	logger   logger.Logger
}

// NewSheetLogger returns an empty logger.
func NewSheetLogger(log logger.Logger) *SheetLogger {
	return &SheetLogger{
		resolved: make(map[string]string),
		logger:   log,
	}
}

// Resolve returns the spreadsheet id for sink: the cached id when present,
// otherwise an existing spreadsheet with the sink name, otherwise a new one
// when CreateIfMissing is set.
func (l *SheetLogger) Resolve(
	ctx context.Context, client credentials.SheetsClient, userID string, sink *models.SpreadsheetSinkSettings) (string, error) {
	if sink.SpreadsheetID != "" {
		return sink.SpreadsheetID, nil
	}

	key := userID + "|" + sink.SheetName

	l.mu.RLock()
	id, ok := l.resolved[key]
	l.mu.RUnlock()

	if ok {
		return id, nil
	}

	v, err, shared := l.group.Do(key, func() (any, error) {
		return l.resolve(ctx, client, sink)
	})
	if err != nil {
		return "", err
	}

	id = v.(string)

	l.mu.Lock()
	l.resolved[key] = id
	l.mu.Unlock()

	l.logger.Debug().Bool("shared", shared).Msg("Spreadsheet sink resolved")

	return id, nil
}

func (l *SheetLogger) resolve(ctx context.Context, client credentials.SheetsClient, sink *models.SpreadsheetSinkSettings) (string, error) {
	id, err := client.FindSpreadsheet(ctx, sink.SheetName)
	if err != nil {
		return "", fmt.Errorf("find spreadsheet: %w: %w", models.ErrSinkUnresolvable, err)
	}

	if id != "" {
		return id, nil
	}

	if !sink.CreateIfMissing {
		return "", fmt.Errorf("spreadsheet missing and creation disabled: %w", models.ErrSinkUnresolvable)
	}

	id, err = client.CreateSpreadsheet(ctx, sink.SheetName, Header(columnsOf(sink)))
	if err != nil {
		return "", fmt.Errorf("create spreadsheet: %w: %w", models.ErrSinkUnresolvable, err)
	}

	l.logger.Info().Msg("Created spreadsheet sink")

	return id, nil
}

// forget drops the process-local cache entry for a sink whose id stopped
// working.
func (l *SheetLogger) forget(userID, sheetName string) {
	l.mu.Lock()
	delete(l.resolved, userID+"|"+sheetName)
	l.mu.Unlock()
}

// reresolve replaces an id that no longer exists by resolving the sink by
// name again.
func (l *SheetLogger) reresolve(
	ctx context.Context, client credentials.SheetsClient, userID string, sink *models.SpreadsheetSinkSettings) (string, error) {
	l.forget(userID, sink.SheetName)

	fresh := *sink
	fresh.SpreadsheetID = ""

	return l.Resolve(ctx, client, userID, &fresh)
}

// LogAlerts resolves the sink and appends one row per alert. A failing row
// is counted and skipped. When the spreadsheet turns out to be gone the sink
// is resolved once more and the row retried against the replacement.
func (l *SheetLogger) LogAlerts(
	ctx context.Context,
	client credentials.SheetsClient,
	userID string,
	sink *models.SpreadsheetSinkSettings,
	events map[string]*models.SSMEvent,
	alerts []models.SSMAlert,
) SheetSummary {
	var summary SheetSummary

	if sink == nil || !sink.Enabled || len(alerts) == 0 {
		return summary
	}

	id, err := l.Resolve(ctx, client, userID, sink)
	if err != nil {
		summary.Err = err
		return summary
	}

	summary.SpreadsheetID = id

	tab := sink.Tab
	if tab == "" {
		tab = DefaultTab
	}

	columns := columnsOf(sink)

	for i := range alerts {
		alert := &alerts[i]

		event, ok := events[alert.EventID]
		if !ok {
			continue
		}

		row := BuildRow(columns, event, alert)

		err := client.AppendRow(ctx, id, tab, row)
		if errors.Is(err, credentials.ErrSpreadsheetNotFound) && !summary.Stale {
			summary.Stale = true
			l.logger.Warn().Msg("Spreadsheet sink no longer exists, resolving again")

			if id, err = l.reresolve(ctx, client, userID, sink); err != nil {
				summary.SpreadsheetID = ""
				summary.Failed += len(alerts) - i
				summary.Err = err

				return summary
			}

			summary.SpreadsheetID = id
			err = client.AppendRow(ctx, id, tab, row)
		}

		if err != nil {
			summary.Failed++

			if summary.Err == nil {
				summary.Err = fmt.Errorf("append row: %w: %w", models.ErrActionExecution, err)
			}

			l.logger.Warn().Str("event_id", alert.EventID).Msg("Spreadsheet row append failed")

			continue
		}

		summary.Rows++
	}

	return summary
}

func columnsOf(sink *models.SpreadsheetSinkSettings) []models.SheetColumn {
	if len(sink.Columns) == 0 {
		return models.DefaultSheetColumns()
	}

	return sink.Columns
}

// Header returns the header row for columns.
func Header(columns []models.SheetColumn) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Header
		if out[i] == "" {
			out[i] = string(c.Field)
		}
	}

	return out
}

// BuildRow maps an (event, alert) pair onto columns.
func BuildRow(columns []models.SheetColumn, event *models.SSMEvent, alert *models.SSMAlert) []string {
	row := make([]string, len(columns))

	for i, c := range columns {
		row[i] = fieldValue(c.Field, event, alert)
	}

	return row
}

func fieldValue(field models.SheetField, event *models.SSMEvent, alert *models.SSMAlert) string {
	switch field {
	case models.FieldSender:
		if from := event.Metadata[models.MetaFrom]; from != "" {
			return from
		}

		return event.Metadata[models.MetaOrganizer]
	case models.FieldSubject:
		if s := event.Metadata[models.MetaSubject]; s != "" {
			return s
		}

		return event.Metadata[models.MetaSummary]
	case models.FieldTimestamp:
		if event.Timestamp.IsZero() {
			return ""
		}

		return event.Timestamp.UTC().Format(time.RFC3339)
	case models.FieldBody:
		return event.Body()
	case models.FieldBodyPreview:
		return rules.Preview(event.Body(), bodyPreviewLength)
	case models.FieldMatchedRules:
		return strings.Join(alert.MatchedRules, ", ")
	case models.FieldSeverity:
		return string(alert.Severity)
	case models.FieldSource:
		return string(event.Source)
	case models.FieldEventID:
		return event.ID
	case models.FieldTitle:
		return alert.Title
	default:
		return ""
	}
}
