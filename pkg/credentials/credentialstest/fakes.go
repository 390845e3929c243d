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

// Package credentialstest provides in-memory mail, calendar and sheets
// clients for tests.
package credentialstest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/carverauto/ssm/pkg/credentials"
)

// Mail is a mailbox fake. Messages are listed newest first.
type Mail struct {
	mu       sync.Mutex
	Messages map[string]*credentials.MailMessage
	Sent     []credentials.Reply
	ListErr  error
	SendErr  error
	Queries  []credentials.MailQuery
}

// NewMail seeds a mailbox.
func NewMail(msgs ...*credentials.MailMessage) *Mail {
	m := &Mail{Messages: make(map[string]*credentials.MailMessage)}
	for _, msg := range msgs {
		m.Messages[msg.ID] = msg
	}

	return m
}

func (m *Mail) ListMessageIDs(_ context.Context, q credentials.MailQuery) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Queries = append(m.Queries, q)

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	msgs := make([]*credentials.MailMessage, 0, len(m.Messages))
	for _, msg := range m.Messages {
		if !q.After.IsZero() && !msg.InternalDate.After(q.After) {
			continue
		}

		msgs = append(msgs, msg)
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].InternalDate.After(msgs[j].InternalDate) })

	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, msg.ID)
	}

	if q.Max > 0 && len(ids) > q.Max {
		ids = ids[:q.Max]
	}

	return ids, nil
}

func (m *Mail) GetMessage(_ context.Context, id string) (*credentials.MailMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.Messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}

	cp := *msg

	return &cp, nil
}

func (m *Mail) SendReply(_ context.Context, reply *credentials.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendErr != nil {
		return m.SendErr
	}

	m.Sent = append(m.Sent, *reply)

	return nil
}

// SentCount returns the number of replies sent.
func (m *Mail) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Sent)
}

const pagePrefix = "off:"

// Calendar is a calendar fake. Pages honor CalendarQuery.Max and the sync
// token is only returned with the last page.
type Calendar struct {
	mu            sync.Mutex
	Events        []credentials.CalendarEvent
	NextSyncToken string
	ListErr       error
	// ExpiredTokens are rejected with credentials.ErrSyncTokenExpired.
	ExpiredTokens map[string]bool
	Queries       []credentials.CalendarQuery
}

func (c *Calendar) ListEvents(_ context.Context, q credentials.CalendarQuery) (*credentials.CalendarPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Queries = append(c.Queries, q)

	if c.ListErr != nil {
		return nil, c.ListErr
	}

	if q.SyncToken != "" && c.ExpiredTokens[q.SyncToken] {
		return nil, credentials.ErrSyncTokenExpired
	}

	start := 0
	if q.PageToken != "" {
		offset, err := strconv.Atoi(strings.TrimPrefix(q.PageToken, pagePrefix))
		if err != nil || offset > len(c.Events) {
			return nil, fmt.Errorf("bad page token %q", q.PageToken)
		}

		start = offset
	}

	end := len(c.Events)
	if q.Max > 0 && start+q.Max < end {
		end = start + q.Max
	}

	page := &credentials.CalendarPage{Events: append([]credentials.CalendarEvent(nil), c.Events[start:end]...)}

	if end < len(c.Events) {
		page.NextPageToken = pagePrefix + strconv.Itoa(end)
	} else {
		page.NextSyncToken = c.NextSyncToken
	}

	return page, nil
}

// Sheets is a spreadsheet fake keyed by name.
type Sheets struct {
	mu        sync.Mutex
	ByName    map[string]string
	Headers   map[string][]string
	Rows      map[string][][]string
	Creates   int
	Finds     int
	AppendErr func(row []string) error
	deleted   map[string]bool
}

// NewSheets returns an empty drive.
func NewSheets() *Sheets {
	return &Sheets{
		ByName:  make(map[string]string),
		Headers: make(map[string][]string),
		Rows:    make(map[string][][]string),
		deleted: make(map[string]bool),
	}
}

// Delete removes a spreadsheet; later appends to it fail with
// credentials.ErrSpreadsheetNotFound.
func (s *Sheets) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, existing := range s.ByName {
		if existing == id {
			delete(s.ByName, name)
		}
	}

	s.deleted[id] = true
}

func (s *Sheets) FindSpreadsheet(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Finds++

	return s.ByName[name], nil
}

func (s *Sheets) CreateSpreadsheet(_ context.Context, name string, header []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Creates++
	id := fmt.Sprintf("sheet-%d", s.Creates)
	s.ByName[name] = id
	s.Headers[id] = append([]string(nil), header...)

	return id, nil
}

func (s *Sheets) AppendRow(_ context.Context, spreadsheetID, _ string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted[spreadsheetID] {
		return fmt.Errorf("append %s: %w", spreadsheetID, credentials.ErrSpreadsheetNotFound)
	}

	if s.AppendErr != nil {
		if err := s.AppendErr(row); err != nil {
			return err
		}
	}

	s.Rows[spreadsheetID] = append(s.Rows[spreadsheetID], append([]string(nil), row...))

	return nil
}

// RowsFor returns appended rows for a spreadsheet.
func (s *Sheets) RowsFor(id string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Rows[id]
}

// CreateCount returns how many spreadsheets were created.
func (s *Sheets) CreateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Creates
}

// Provider hands out the configured fakes for every user and connection.
type Provider struct {
	MailClient     *Mail
	CalendarClient *Calendar
	SheetsClient   *Sheets
	MailErr        error
	CalendarErr    error
	SheetsErr      error
}

func (p *Provider) Mail(_ context.Context, _, _ string) (credentials.MailClient, error) {
	if p.MailErr != nil {
		return nil, p.MailErr
	}

	if p.MailClient == nil {
		return nil, fmt.Errorf("no mail client configured")
	}

	return p.MailClient, nil
}

func (p *Provider) Calendar(_ context.Context, _, _ string) (credentials.CalendarClient, error) {
	if p.CalendarErr != nil {
		return nil, p.CalendarErr
	}

	if p.CalendarClient == nil {
		return nil, fmt.Errorf("no calendar client configured")
	}

	return p.CalendarClient, nil
}

func (p *Provider) Sheets(_ context.Context, _, _ string) (credentials.SheetsClient, error) {
	if p.SheetsErr != nil {
		return nil, p.SheetsErr
	}

	if p.SheetsClient == nil {
		return nil, fmt.Errorf("no sheets client configured")
	}

	return p.SheetsClient, nil
}
