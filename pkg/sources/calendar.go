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

package sources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/models"
)

const (
	// DefaultCalendarCap bounds events produced per cycle.
	DefaultCalendarCap = 100
	// DefaultCalendarWindow is the updatedMin lookback used without a sync token.
	DefaultCalendarWindow = time.Hour

	maxCalendarPages = 10
	statusCancelled  = "cancelled"
	pageCursorPrefix = "page:"
)

// CalendarAdapter fetches changed calendar items. The watermark is the
// provider's incremental sync token, or a page cursor while a listing larger
// than the cap is being drained.
type CalendarAdapter struct {
	Now    func() time.Time
	Cap    int
	Window time.Duration
}

func (*CalendarAdapter) Source() models.EventSource {
	return models.SourceCalendar
}

// FetchFor resolves the calendar client and calls Fetch.
func (a *CalendarAdapter) FetchFor(ctx context.Context, provider credentials.Provider, userID string,
	settings models.SourceSettings) ([]models.SSMEvent, string, error) {
	client, err := provider.Calendar(ctx, userID, settings.ConnectionID)
	if err != nil {
		return nil, settings.Cursor, fetchError(a.Source(), "client", fmt.Errorf("%w: %w", models.ErrCredentials, err))
	}

	return a.Fetch(ctx, client, settings.Cursor)
}

// Fetch lists events changed since the watermark. An expired sync token
// falls back to a windowed listing. Pages are requested no larger than the
// room left under the cap; once the cap is reached the watermark becomes a
// page cursor so the next cycle resumes where this one stopped. The sync
// token is only returned after the last page has been delivered.
func (a *CalendarAdapter) Fetch(
	ctx context.Context, client credentials.CalendarClient, watermark string) ([]models.SSMEvent, string, error) {
	cursor := decodeCalendarCursor(watermark)

	query := credentials.CalendarQuery{SyncToken: cursor.SyncToken, UpdatedMin: cursor.UpdatedMin, PageToken: cursor.PageToken}
	if query.SyncToken == "" && query.UpdatedMin.IsZero() {
		query.UpdatedMin = a.now().Add(-a.window())
	}

	events := make([]models.SSMEvent, 0)

	for page := 1; ; page++ {
		query.Max = a.limit() - len(events)

		result, err := client.ListEvents(ctx, query)
		if errors.Is(err, credentials.ErrSyncTokenExpired) && query.SyncToken != "" {
			query = credentials.CalendarQuery{UpdatedMin: a.now().Add(-a.window())}
			cursor = calendarCursor{}
			events = events[:0]
			page = 0

			continue
		}

		if err != nil {
			return nil, watermark, fetchError(a.Source(), "list", err)
		}

		// A page is always delivered whole, even past the cap.
		for i := range result.Events {
			if item := &result.Events[i]; item.Status != statusCancelled {
				events = append(events, calendarEvent(item))
			}
		}

		if result.NextPageToken == "" {
			if result.NextSyncToken != "" {
				return events, result.NextSyncToken, nil
			}

			return events, cursor.SyncToken, nil
		}

		query.PageToken = result.NextPageToken

		if len(events) >= a.limit() || page >= maxCalendarPages {
			return events, encodeCalendarCursor(query), nil
		}
	}
}

// calendarCursor resumes a listing that stopped before its last page.
type calendarCursor struct {
	SyncToken  string    `json:"sync_token,omitempty"`
	UpdatedMin time.Time `json:"updated_min,omitzero"`
	PageToken  string    `json:"page_token,omitempty"`
}

// decodeCalendarCursor reads either a bare sync token or a page cursor.
// An unreadable page cursor starts over with a windowed listing.
func decodeCalendarCursor(watermark string) calendarCursor {
	encoded, ok := strings.CutPrefix(watermark, pageCursorPrefix)
	if !ok {
		return calendarCursor{SyncToken: watermark}
	}

	var cursor calendarCursor

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || json.Unmarshal(raw, &cursor) != nil {
		return calendarCursor{}
	}

	return cursor
}

func encodeCalendarCursor(query credentials.CalendarQuery) string {
	cursor := calendarCursor{PageToken: query.PageToken, SyncToken: query.SyncToken}
	if cursor.SyncToken == "" {
		cursor.UpdatedMin = query.UpdatedMin.UTC()
	}

	raw, _ := json.Marshal(cursor)

	return pageCursorPrefix + base64.RawURLEncoding.EncodeToString(raw)
}

func calendarEvent(item *credentials.CalendarEvent) models.SSMEvent {
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Event: %s\n", item.Summary)
	fmt.Fprintf(&b, "Start: %s\n", item.Start)
	fmt.Fprintf(&b, "End: %s\n", item.End)

	if item.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", item.Location)
	}

	if len(item.Attendees) > 0 {
		fmt.Fprintf(&b, "Attendees: %s\n", strings.Join(item.Attendees, ", "))
	}

	if item.Organizer != "" {
		fmt.Fprintf(&b, "Organizer: %s\n", item.Organizer)
	}

	fmt.Fprintf(&b, "Status: %s", item.Status)

	return models.SSMEvent{
		ID:        id,
		Timestamp: item.Updated,
		Source:    models.SourceCalendar,
		Type:      models.EventTypeCalendar,
		Content:   b.String(),
		Metadata: map[string]string{
			models.MetaSummary:   item.Summary,
			models.MetaStart:     item.Start,
			models.MetaEnd:       item.End,
			models.MetaLocation:  item.Location,
			models.MetaOrganizer: item.Organizer,
			models.MetaStatus:    item.Status,
			models.MetaHTMLLink:  item.HTMLLink,
		},
	}
}

func (a *CalendarAdapter) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}

	return a.Now()
}

func (a *CalendarAdapter) limit() int {
	if a.Cap <= 0 {
		return DefaultCalendarCap
	}

	return a.Cap
}

func (a *CalendarAdapter) window() time.Duration {
	if a.Window <= 0 {
		return DefaultCalendarWindow
	}

	return a.Window
}
