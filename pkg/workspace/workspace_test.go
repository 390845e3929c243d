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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/crypto/secrets"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/memstore"
	"github.com/carverauto/ssm/pkg/models"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// fakeGoogle serves the handful of Google endpoints the clients call.
type fakeGoogle struct {
	t         *testing.T
	refreshes atomic.Int32

	mu       sync.Mutex
	auth     []string
	queries  []string
	sent     map[string]string
	appended []string
	rows     [][]interface{}
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.queries = append(f.queries, r.URL.RawQuery)
	f.mu.Unlock()

	path := r.URL.Path

	switch {
	case path == "/token":
		f.refreshes.Add(1)
		require.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(f.t, "r1", r.PostForm.Get("refresh_token"))
		writeBody(w, http.StatusOK, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)

	case path == "/gmail/v1/users/me/messages":
		writeBody(w, http.StatusOK, `{"messages":[{"id":"m1","threadId":"t1"},{"id":"m2","threadId":"t2"}]}`)

	case path == "/gmail/v1/users/me/messages/m1":
		writeBody(w, http.StatusOK, `{
			"id":"m1","threadId":"t1","internalDate":"1717322400000","labelIds":["INBOX","UNREAD"],
			"payload":{"mimeType":"multipart/alternative","headers":[
				{"name":"From","value":"Alice <alice@vendor.com>"},
				{"name":"Subject","value":"Invoice 42"},
				{"name":"Date","value":"Sun, 2 Jun 2024 10:00:00 +0000"},
				{"name":"Message-ID","value":"<m1@mail>"}],
			"parts":[
				{"mimeType":"text/plain; charset=UTF-8","body":{"data":"`+b64("Please pay")+`"}},
				{"mimeType":"text/html","body":{"data":"`+b64("<p>Please pay</p>")+`"}}]}}`)

	case path == "/gmail/v1/users/me/messages/send":
		var msg struct {
			Raw      string `json:"raw"`
			ThreadID string `json:"threadId"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&msg))

		raw, err := base64.URLEncoding.DecodeString(msg.Raw)
		require.NoError(f.t, err)

		f.mu.Lock()
		f.sent = map[string]string{"raw": string(raw), "thread": msg.ThreadID}
		f.mu.Unlock()

		writeBody(w, http.StatusOK, `{"id":"sent-1"}`)

	case path == "/calendar/v3/calendars/primary/events":
		if r.URL.Query().Get("syncToken") == "stale" {
			writeBody(w, http.StatusGone, `{"error":{"code":410,"message":"Sync token is no longer valid"}}`)
			return
		}

		writeBody(w, http.StatusOK, `{"items":[
			{"id":"e1","summary":"Sync","status":"confirmed","htmlLink":"https://cal/e1","updated":"2024-06-02T09:59:00.000Z",
			 "start":{"dateTime":"2024-06-02T11:00:00Z"},"end":{"dateTime":"2024-06-02T11:30:00Z"},
			 "organizer":{"email":"boss@corp.com"},"attendees":[{"email":"a@corp.com"},{"email":""}]},
			{"id":"e2","summary":"Holiday","status":"confirmed","start":{"date":"2024-06-03"},"end":{"date":"2024-06-04"}}],
			"nextSyncToken":"tok-2"}`)

	case path == "/drive/v3/files":
		if strings.Contains(r.URL.Query().Get("q"), "name = 'Alerts'") {
			writeBody(w, http.StatusOK, `{"files":[{"id":"sheet-9","name":"Alerts"}]}`)
			return
		}

		writeBody(w, http.StatusOK, `{"files":[]}`)

	case path == "/v4/spreadsheets" && r.Method == http.MethodPost:
		writeBody(w, http.StatusOK, `{"spreadsheetId":"new-1"}`)

	case strings.HasPrefix(path, "/v4/spreadsheets/deleted-1/"):
		writeBody(w, http.StatusNotFound, `{"error":{"code":404,"message":"Requested entity was not found."}}`)

	case strings.HasPrefix(path, "/v4/spreadsheets/") && strings.HasSuffix(path, ":append"):
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.appended = append(f.appended, path)
		f.rows = append(f.rows, body.Values...)
		f.mu.Unlock()

		writeBody(w, http.StatusOK, `{}`)

	default:
		f.t.Errorf("unexpected request %s %s", r.Method, path)
		writeBody(w, http.StatusNotFound, `{"error":{"code":404,"message":"not found"}}`)
	}
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

type fixture struct {
	google   *fakeGoogle
	vault    *Vault
	provider *Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	google := &fakeGoogle{t: t}
	srv := httptest.NewServer(google)
	t.Cleanup(srv.Close)

	envelope := secrets.NewEnvelope(secrets.NewStaticKeyProvider(bytes.Repeat([]byte{7}, 32)), secrets.InfoOAuthTokens)
	vault := NewVault(memstore.New(), envelope)

	require.NoError(t, vault.Save(context.Background(), "user-1", "gws-1", &oauth2.Token{
		AccessToken:  "stale",
		TokenType:    "Bearer",
		RefreshToken: "r1",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	provider := NewProvider(Config{
		ClientID:          "client",
		ClientSecret:      "secret",
		Endpoint:          srv.URL,
		HTTPClient:        srv.Client(),
		MessagesPerSecond: 1000,
	}, vault, logger.NewTestLogger())

	return &fixture{google: google, vault: vault, provider: provider}
}

func TestMailRefreshesAndPersistsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.provider.Mail(ctx, "user-1", "gws-1")
	require.NoError(t, err)

	after := time.Unix(1717322000, 0)

	ids, err := mail.ListMessageIDs(ctx, credentials.MailQuery{After: after, UnreadOnly: true, Max: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)

	_, err = mail.GetMessage(ctx, "m1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.google.refreshes.Load())

	f.google.mu.Lock()
	assert.Equal(t, []string{"Bearer fresh", "Bearer fresh"}, f.google.auth[1:])
	assert.Contains(t, f.google.queries[1], "q=is%3Aunread+after%3A1717322000")
	assert.Contains(t, f.google.queries[1], "maxResults=2")
	f.google.mu.Unlock()

	tok, err := f.vault.Load(ctx, "user-1", "gws-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, "r1", tok.RefreshToken)
}

func TestGetMessageParsesParts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.provider.Mail(ctx, "user-1", "gws-1")
	require.NoError(t, err)

	msg, err := mail.GetMessage(ctx, "m1")
	require.NoError(t, err)

	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, time.UnixMilli(1717322400000).UTC(), msg.InternalDate)
	assert.Equal(t, "Alice <alice@vendor.com>", msg.From)
	assert.Equal(t, "Invoice 42", msg.Subject)
	assert.Equal(t, "<m1@mail>", msg.MessageIDHeader)
	assert.Equal(t, "Please pay", msg.TextBody)
	assert.Equal(t, "<p>Please pay</p>", msg.HTMLBody)
	assert.Equal(t, []string{"INBOX", "UNREAD"}, msg.Labels)
}

func TestSendReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mail, err := f.provider.Mail(ctx, "user-1", "gws-1")
	require.NoError(t, err)

	require.NoError(t, mail.SendReply(ctx, &credentials.Reply{
		ThreadID:  "t1",
		InReplyTo: "<m1@mail>",
		To:        "alice@vendor.com\r\nBcc: victim@x.com",
		Subject:   "Re: Invoice 42",
		Body:      "Thanks,\nwe got it.",
	}))

	f.google.mu.Lock()
	defer f.google.mu.Unlock()

	raw := f.google.sent["raw"]
	assert.Equal(t, "t1", f.google.sent["thread"])
	assert.Contains(t, raw, "To: alice@vendor.com  Bcc: victim@x.com\r\n")
	assert.NotContains(t, raw, "\r\nBcc:")
	assert.Contains(t, raw, "Subject: Re: Invoice 42\r\n")
	assert.Contains(t, raw, "In-Reply-To: <m1@mail>\r\nReferences: <m1@mail>\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nThanks,\r\nwe got it."))
}

func TestBuildReplyEncodesNonASCIISubject(t *testing.T) {
	raw := buildReply(&credentials.Reply{To: "a@b.c", Subject: "Re: Facture réglée", Body: "ok"})

	assert.Contains(t, raw, "Subject: =?utf-8?q?Re:_Facture_r=C3=A9gl=C3=A9e?=\r\n")
	assert.NotContains(t, raw, "In-Reply-To")
}

func TestCalendarListEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cal, err := f.provider.Calendar(ctx, "user-1", "gws-1")
	require.NoError(t, err)

	page, err := cal.ListEvents(ctx, credentials.CalendarQuery{UpdatedMin: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Max: 100})
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	assert.Equal(t, "tok-2", page.NextSyncToken)

	e1 := page.Events[0]
	assert.Equal(t, "2024-06-02T11:00:00Z", e1.Start)
	assert.Equal(t, "boss@corp.com", e1.Organizer)
	assert.Equal(t, []string{"a@corp.com"}, e1.Attendees)
	assert.Equal(t, time.Date(2024, 6, 2, 9, 59, 0, 0, time.UTC), e1.Updated)
	assert.Equal(t, "2024-06-03", page.Events[1].Start)

	f.google.mu.Lock()
	assert.Contains(t, f.google.queries[len(f.google.queries)-1], "updatedMin=2024-06-01T00%3A00%3A00Z")
	f.google.mu.Unlock()
}

func TestCalendarExpiredSyncToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cal, err := f.provider.Calendar(ctx, "user-1", "gws-1")
	require.NoError(t, err)

	_, err = cal.ListEvents(ctx, credentials.CalendarQuery{SyncToken: "stale"})
	require.ErrorIs(t, err, credentials.ErrSyncTokenExpired)
}

func TestSheetsFindCreateAppend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	client, err := f.provider.Sheets(ctx, "user-1", "gws-1")
	require.NoError(t, err)

	id, err := client.FindSpreadsheet(ctx, "Alerts")
	require.NoError(t, err)
	assert.Equal(t, "sheet-9", id)

	id, err = client.FindSpreadsheet(ctx, "Missing")
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = client.CreateSpreadsheet(ctx, "New Alerts", []string{"Time", "Subject"})
	require.NoError(t, err)
	assert.Equal(t, "new-1", id)

	require.NoError(t, client.AppendRow(ctx, "new-1", "Bob's tab", []string{"2024-06-02T10:00:00Z", "Invoice"}))

	f.google.mu.Lock()
	defer f.google.mu.Unlock()

	require.Len(t, f.google.appended, 2)
	assert.Equal(t, "/v4/spreadsheets/new-1/values/A1:append", f.google.appended[0])
	assert.Equal(t, "/v4/spreadsheets/new-1/values/'Bob''s tab'!A1:append", f.google.appended[1])
	assert.Equal(t, [][]interface{}{{"Time", "Subject"}, {"2024-06-02T10:00:00Z", "Invoice"}}, f.google.rows)
}

func TestAppendToDeletedSpreadsheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	client, err := f.provider.Sheets(ctx, "user-1", "gws-1")
	require.NoError(t, err)

	err = client.AppendRow(ctx, "deleted-1", "Sheet1", []string{"x"})
	require.ErrorIs(t, err, credentials.ErrSpreadsheetNotFound)
	require.ErrorIs(t, err, models.ErrActionExecution)
}

func TestMissingTokenIsCredentialsError(t *testing.T) {
	f := newFixture(t)

	_, err := f.provider.Mail(context.Background(), "user-1", "unknown")
	require.ErrorIs(t, err, models.ErrCredentials)

	_, err = f.provider.Sheets(context.Background(), "user-2", "gws-1")
	require.ErrorIs(t, err, models.ErrCredentials)
}

func TestTokenBoundToConnection(t *testing.T) {
	store := memstore.New()
	envelope := secrets.NewEnvelope(secrets.NewStaticKeyProvider(bytes.Repeat([]byte{7}, 32)), secrets.InfoOAuthTokens)
	vault := NewVault(store, envelope)
	ctx := context.Background()

	require.NoError(t, vault.Save(ctx, "user-1", "gws-1", &oauth2.Token{AccessToken: "a"}))

	sealed, err := store.GetSealedToken(ctx, "user-1", "gws-1")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), `"access_token"`)

	// A sealed token copied to another connection does not open.
	require.NoError(t, store.PutSealedToken(ctx, "user-2", "gws-1", sealed))

	_, err = vault.Load(ctx, "user-2", "gws-1")
	require.ErrorIs(t, err, models.ErrCredentials)
}

func TestGmailSearch(t *testing.T) {
	assert.Empty(t, gmailSearch(credentials.MailQuery{}))
	assert.Equal(t, "is:unread", gmailSearch(credentials.MailQuery{UnreadOnly: true}))
	assert.Equal(t, "after:60", gmailSearch(credentials.MailQuery{After: time.Unix(60, 0)}))
}
