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

// Package workspace implements the credential provider on Google Workspace:
// Gmail for mail, Google Calendar, and Sheets plus Drive for the
// spreadsheet sink.
package workspace

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
)

// DefaultScopes covers reading and replying to mail, reading calendars and
// writing spreadsheets the app created.
var DefaultScopes = []string{
	gmail.GmailModifyScope,
	calendar.CalendarReadonlyScope,
	drive.DriveFileScope,
	sheets.SpreadsheetsScope,
}

const (
	defaultMessagesPerSecond = 10
	messageBurst             = 5
)

// Config configures NewProvider.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	// MessagesPerSecond paces Gmail message fetches per user.
	MessagesPerSecond float64
	// Endpoint replaces every Google host (tests and proxies). The OAuth
	// token URL becomes Endpoint + "/token".
	Endpoint string
	// HTTPClient is the transport used for token refresh and API calls.
	HTTPClient *http.Client
}

// ConfigFromModel adapts the service config block.
func ConfigFromModel(g *models.GoogleConfig) Config {
	return Config{
		ClientID:          g.ClientID,
		ClientSecret:      g.ClientSecret,
		Scopes:            g.Scopes,
		MessagesPerSecond: g.MessagesPerSecond,
		Endpoint:          g.Endpoint,
	}
}

// Provider implements credentials.Provider.
type Provider struct {
	oauth      *oauth2.Config
	vault      *Vault
	endpoint   string
	httpClient *http.Client
	rate       rate.Limit
	logger     logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ credentials.Provider = (*Provider)(nil)

// NewProvider returns a provider that resolves clients from tokens in vault.
func NewProvider(cfg Config, vault *Vault, log logger.Logger) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	endpoint := google.Endpoint
	root := strings.TrimRight(cfg.Endpoint, "/")

	if root != "" {
		endpoint = oauth2.Endpoint{
			AuthURL:   root + "/auth",
			TokenURL:  root + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}
	}

	perSecond := cfg.MessagesPerSecond
	if perSecond <= 0 {
		perSecond = defaultMessagesPerSecond
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		vault:      vault,
		endpoint:   root,
		httpClient: cfg.HTTPClient,
		rate:       rate.Limit(perSecond),
		logger:     log,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Mail returns a Gmail client for the connection.
func (p *Provider) Mail(ctx context.Context, userID, connectionID string) (credentials.MailClient, error) {
	opts, err := p.clientOptions(ctx, userID, connectionID, "/")
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: %w: %w", models.ErrCredentials, err)
	}

	return newGmailClient(svc, p.limiter(userID)), nil
}

// Calendar returns a Google Calendar client for the connection.
func (p *Provider) Calendar(ctx context.Context, userID, connectionID string) (credentials.CalendarClient, error) {
	opts, err := p.clientOptions(ctx, userID, connectionID, "/calendar/v3/")
	if err != nil {
		return nil, err
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: %w: %w", models.ErrCredentials, err)
	}

	return newCalendarClient(svc), nil
}

// Sheets returns a spreadsheet client backed by Sheets and Drive.
func (p *Provider) Sheets(ctx context.Context, userID, connectionID string) (credentials.SheetsClient, error) {
	sheetsOpts, err := p.clientOptions(ctx, userID, connectionID, "/")
	if err != nil {
		return nil, err
	}

	sheetsSvc, err := sheets.NewService(ctx, sheetsOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: %w: %w", models.ErrCredentials, err)
	}

	driveOpts, err := p.clientOptions(ctx, userID, connectionID, "/drive/v3/")
	if err != nil {
		return nil, err
	}

	driveSvc, err := drive.NewService(ctx, driveOpts...)
	if err != nil {
		return nil, fmt.Errorf("drive: %w: %w", models.ErrCredentials, err)
	}

	return newSheetsClient(sheetsSvc, driveSvc), nil
}

// clientOptions builds an authenticated HTTP client for the connection. The
// token is refreshed on demand and persisted when it changes.
func (p *Provider) clientOptions(ctx context.Context, userID, connectionID, basePath string) ([]option.ClientOption, error) {
	tok, err := p.vault.Load(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	oauthCtx := ctx
	if p.httpClient != nil {
		oauthCtx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	src := oauth2.ReuseTokenSource(tok, &persistingSource{
		ctx:          ctx,
		base:         p.oauth.TokenSource(oauthCtx, tok),
		vault:        p.vault,
		userID:       userID,
		connectionID: connectionID,
		logger:       p.logger,
		last:         tok.AccessToken,
	})

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(oauthCtx, src))}

	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint+basePath))
	}

	return opts, nil
}

func (p *Provider) limiter(userID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[userID]
	if !ok {
		l = rate.NewLimiter(p.rate, messageBurst)
		p.limiters[userID] = l
	}

	return l
}
