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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/models"
)

const (
	// DefaultEmailCap bounds events delivered per cycle.
	DefaultEmailCap = 50
	// DefaultEmailLookback is the oldest an unread message can be and still be fetched.
	DefaultEmailLookback = time.Hour
)

// EmailAdapter fetches unread mail newer than the watermark. The watermark
// is the newest internal date seen, in unix milliseconds.
type EmailAdapter struct {
	Now      func() time.Time
	Cap      int
	Lookback time.Duration
}

func (*EmailAdapter) Source() models.EventSource {
	return models.SourceEmail
}

// FetchFor resolves the mail client and calls Fetch.
func (a *EmailAdapter) FetchFor(ctx context.Context, provider credentials.Provider, userID string,
	settings models.SourceSettings) ([]models.SSMEvent, string, error) {
	client, err := provider.Mail(ctx, userID, settings.ConnectionID)
	if err != nil {
		return nil, settings.Cursor, fetchError(a.Source(), "client", fmt.Errorf("%w: %w", models.ErrCredentials, err))
	}

	return a.Fetch(ctx, client, settings.Cursor)
}

// Fetch lists unread messages received after max(watermark, now-lookback)
// and returns the oldest of them, up to the cap, oldest first. The returned
// watermark is the newest message delivered, so anything cut by the cap is
// still after it on the next cycle. On a partial failure the events fetched
// so far are returned with the original watermark and an error.
func (a *EmailAdapter) Fetch(
	ctx context.Context, client credentials.MailClient, watermark string) ([]models.SSMEvent, string, error) {
	mark := parseMillis(watermark)
	after := a.now().Add(-a.lookback())

	if mark.After(after) {
		after = mark
	}

	// Listing is newest first and unbounded; only full fetches are capped.
	ids, err := client.ListMessageIDs(ctx, credentials.MailQuery{
		After:      after,
		UnreadOnly: true,
	})
	if err != nil {
		return nil, watermark, fetchError(a.Source(), "list", err)
	}

	events := make([]models.SSMEvent, 0, min(len(ids), a.limit()))
	newest := mark

	for i := len(ids) - 1; i >= 0 && len(events) < a.limit(); i-- {
		msg, err := client.GetMessage(ctx, ids[i])
		if err != nil {
			return events, watermark, fetchError(a.Source(), "get", err)
		}

		if !mark.IsZero() && !msg.InternalDate.After(mark) {
			continue
		}

		events = append(events, emailEvent(msg))

		if msg.InternalDate.After(newest) {
			newest = msg.InternalDate
		}
	}

	if newest.IsZero() {
		return events, watermark, nil
	}

	return events, formatMillis(newest), nil
}

func emailEvent(msg *credentials.MailMessage) models.SSMEvent {
	body := strings.TrimSpace(msg.TextBody)
	if body == "" && msg.HTMLBody != "" {
		body = HTMLToText(msg.HTMLBody)
	}

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}

	date := msg.Date
	if date == "" && !msg.InternalDate.IsZero() {
		date = msg.InternalDate.UTC().Format(time.RFC1123Z)
	}

	return models.SSMEvent{
		ID:        id,
		Timestamp: msg.InternalDate,
		Source:    models.SourceEmail,
		Type:      models.EventTypeEmail,
		Content:   fmt.Sprintf("From: %s\nSubject: %s\n\n%s", msg.From, msg.Subject, body),
		Metadata: map[string]string{
			models.MetaFrom:      msg.From,
			models.MetaSubject:   msg.Subject,
			models.MetaDate:      date,
			models.MetaThreadID:  msg.ThreadID,
			models.MetaMessageID: msg.MessageIDHeader,
		},
	}
}

func (a *EmailAdapter) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}

	return a.Now()
}

func (a *EmailAdapter) limit() int {
	if a.Cap <= 0 {
		return DefaultEmailCap
	}

	return a.Cap
}

func (a *EmailAdapter) lookback() time.Duration {
	if a.Lookback <= 0 {
		return DefaultEmailLookback
	}

	return a.Lookback
}

func parseMillis(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
