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

package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/carverauto/ssm/pkg/credentials"
)

const (
	primaryCalendar     = "primary"
	calendarMaxPageSize = 250
)

type calendarClient struct {
	svc *calendar.Service
}

func newCalendarClient(svc *calendar.Service) *calendarClient {
	return &calendarClient{svc: svc}
}

// ListEvents returns one page of the primary calendar. A rejected sync
// token surfaces as credentials.ErrSyncTokenExpired.
func (c *calendarClient) ListEvents(ctx context.Context, query credentials.CalendarQuery) (*credentials.CalendarPage, error) {
	call := c.svc.Events.List(primaryCalendar).SingleEvents(true).ShowDeleted(true).Context(ctx)

	if query.SyncToken != "" {
		call = call.SyncToken(query.SyncToken)
	} else if !query.UpdatedMin.IsZero() {
		call = call.UpdatedMin(query.UpdatedMin.UTC().Format(time.RFC3339))
	}

	if query.PageToken != "" {
		call = call.PageToken(query.PageToken)
	}

	if query.Max > 0 {
		call = call.MaxResults(int64(min(query.Max, calendarMaxPageSize)))
	}

	resp, err := call.Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusGone {
			return nil, credentials.ErrSyncTokenExpired
		}

		return nil, fmt.Errorf("calendar list: %w", err)
	}

	page := &credentials.CalendarPage{
		Events:        make([]credentials.CalendarEvent, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
		NextSyncToken: resp.NextSyncToken,
	}

	for _, item := range resp.Items {
		page.Events = append(page.Events, convertEvent(item))
	}

	return page, nil
}

func convertEvent(item *calendar.Event) credentials.CalendarEvent {
	ev := credentials.CalendarEvent{
		ID:       item.Id,
		Summary:  item.Summary,
		Start:    eventTime(item.Start),
		End:      eventTime(item.End),
		Location: item.Location,
		Status:   item.Status,
		HTMLLink: item.HtmlLink,
	}

	if item.Organizer != nil {
		ev.Organizer = item.Organizer.Email
	}

	for _, a := range item.Attendees {
		if a != nil && a.Email != "" {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
	}

	if updated, err := time.Parse(time.RFC3339, item.Updated); err == nil {
		ev.Updated = updated.UTC()
	}

	return ev
}

func eventTime(t *calendar.EventDateTime) string {
	switch {
	case t == nil:
		return ""
	case t.DateTime != "":
		return t.DateTime
	default:
		return t.Date
	}
}
