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

// Package credentials defines the capability contract for per-user
// authenticated mail, calendar and spreadsheet clients.
package credentials

//go:generate mockgen -destination=mock_credentials.go -package=credentials github.com/carverauto/ssm/pkg/credentials Provider,MailClient,CalendarClient,SheetsClient

import (
	"context"
	"errors"
	"time"
)

// ErrSyncTokenExpired is returned by CalendarClient when the provider no
// longer accepts an incremental sync token.
var ErrSyncTokenExpired = errors.New("calendar sync token expired")

// ErrSpreadsheetNotFound is returned by SheetsClient.AppendRow when the
// spreadsheet no longer exists.
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

// Provider resolves authenticated clients for a user's connection. It never
// exposes raw tokens to callers.
type Provider interface {
	Mail(ctx context.Context, userID, connectionID string) (MailClient, error)
	Calendar(ctx context.Context, userID, connectionID string) (CalendarClient, error)
	Sheets(ctx context.Context, userID, connectionID string) (SheetsClient, error)
}

// MailQuery selects messages to list.
type MailQuery struct {
	After      time.Time
	UnreadOnly bool
	Max        int
}

// MailMessage is a fully fetched message.
type MailMessage struct {
	ID              string
	ThreadID        string
	InternalDate    time.Time
	From            string
	Subject         string
	Date            string
	MessageIDHeader string
	TextBody        string
	HTMLBody        string
	Labels          []string
}

// Reply is an outbound message in an existing thread.
type Reply struct {
	ThreadID  string
	InReplyTo string
	To        string
	Subject   string
	Body      string
}

// MailClient is the mailbox capability.
type MailClient interface {
	ListMessageIDs(ctx context.Context, query MailQuery) ([]string, error)
	GetMessage(ctx context.Context, id string) (*MailMessage, error)
	SendReply(ctx context.Context, reply *Reply) error
}

// CalendarQuery is either incremental (SyncToken) or windowed (UpdatedMin).
type CalendarQuery struct {
	SyncToken  string
	UpdatedMin time.Time
	PageToken  string
	Max        int
}

// CalendarEvent is one calendar item.
type CalendarEvent struct {
	ID        string
	Summary   string
	Start     string
	End       string
	Location  string
	Organizer string
	Status    string
	HTMLLink  string
	Attendees []string
	Updated   time.Time
}

// CalendarPage is one page of results.
type CalendarPage struct {
	Events        []CalendarEvent
	NextPageToken string
	NextSyncToken string
}

// CalendarClient is the calendar capability.
type CalendarClient interface {
	ListEvents(ctx context.Context, query CalendarQuery) (*CalendarPage, error)
}

// SheetsClient is the spreadsheet capability. FindSpreadsheet returns an
// empty id when no spreadsheet has the name.
type SheetsClient interface {
	FindSpreadsheet(ctx context.Context, name string) (string, error)
	CreateSpreadsheet(ctx context.Context, name string, header []string) (string, error)
	AppendRow(ctx context.Context, spreadsheetID, tab string, row []string) error
}
