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

package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/ssm/pkg/actions"
	"github.com/carverauto/ssm/pkg/configstore"
	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/credentials/credentialstest"
	"github.com/carverauto/ssm/pkg/crypto/secrets"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/memstore"
	"github.com/carverauto/ssm/pkg/models"
	"github.com/carverauto/ssm/pkg/sources"
)

const (
	nodeID = "node-1"
	owner  = "user-1"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type fixture struct {
	repo     *memstore.Store
	store    *configstore.Store
	provider *credentialstest.Provider
	mail     *credentialstest.Mail
	calendar *credentialstest.Calendar
	sheets   *credentialstest.Sheets
	deps     Dependencies
}

func newFixture(t *testing.T, cfg *models.ServerConfig) *fixture {
	t.Helper()

	repo := memstore.New()
	repo.PutNode(&models.MonitoredNode{ID: nodeID, CanvasID: "canvas-1", OwnerID: owner})

	envelope := secrets.NewEnvelope(secrets.NewStaticKeyProvider(bytes.Repeat([]byte{3}, 32)), secrets.InfoServerConfig)
	store := configstore.NewStore(repo, envelope, logger.NewTestLogger())

	_, err := store.Sync(context.Background(), nodeID, owner, cfg, configstore.SyncOptions{EnablePolling: true})
	require.NoError(t, err)

	f := &fixture{
		repo:     repo,
		store:    store,
		mail:     credentialstest.NewMail(),
		calendar: &credentialstest.Calendar{},
		sheets:   credentialstest.NewSheets(),
	}

	f.provider = &credentialstest.Provider{MailClient: f.mail, CalendarClient: f.calendar, SheetsClient: f.sheets}

	replier := actions.NewAutoReplier(repo, actions.RateLimit{MaxPerWindow: 3, Window: time.Hour}, logger.NewTestLogger())
	replier.SetClock(fixedNow)

	f.deps = Dependencies{
		Store:    store,
		Leases:   repo,
		Provider: f.provider,
		Fetchers: sources.NewRegistry(fixedNow),
		Replier:  replier,
		Sheets:   actions.NewSheetLogger(logger.NewTestLogger()),
	}

	return f
}

func (f *fixture) orchestrator(cfg Config) *Orchestrator {
	o := New(f.deps, cfg, logger.NewTestLogger())
	o.SetClock(fixedNow)

	return o
}

func invoiceConfig() *models.ServerConfig {
	return &models.ServerConfig{
		Rules:     []models.Rule{{ID: "invoice", Keyword: "invoice", Severity: models.SeverityHigh}},
		AutoReply: &models.AutoReplySettings{Enabled: true, Body: "Thanks, received."},
		SpreadsheetSink: &models.SpreadsheetSinkSettings{
			Enabled: true, SheetName: "SSM Alerts", CreateIfMissing: true,
		},
		PollingSettings: models.PollingSettings{
			Email: models.SourceSettings{Enabled: true, ConnectionID: "gmail-1"},
		},
	}
}

func mailMessage(id, from, subject, body string, age time.Duration) *credentials.MailMessage {
	return &credentials.MailMessage{
		ID:              id,
		ThreadID:        "t-" + id,
		InternalDate:    testNow.Add(-age),
		From:            from,
		Subject:         subject,
		MessageIDHeader: "<" + id + "@mail>",
		TextBody:        body,
	}
}

func TestInvoiceEndToEnd(t *testing.T) {
	f := newFixture(t, invoiceConfig())
	f.mail.Messages["m1"] = mailMessage("m1", "Billing <billing@vendor.com>", "Invoice #42", "Your invoice is attached", 5*time.Minute)
	f.mail.Messages["m2"] = mailMessage("m2", "friend@home.com", "Lunch", "Tacos?", 10*time.Minute)

	o := f.orchestrator(Config{})
	ctx := context.Background()

	result, err := o.RunCycle(ctx, nodeID, models.TriggerManual)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.StateIdle, result.State)
	assert.Equal(t, models.TriggerManual, result.Source)
	assert.Equal(t, 2, result.EventsFetched)
	assert.Equal(t, 1, result.AlertsGenerated)
	assert.Equal(t, 1, result.AutoRepliesSent)
	assert.Equal(t, 1, result.SheetRowsLogged)
	assert.Empty(t, result.Errors)

	watermark := strconv.FormatInt(testNow.Add(-5*time.Minute).UnixMilli(), 10)
	assert.Equal(t, map[string]string{"email": watermark}, result.UpdatedCursors)

	require.Len(t, f.mail.Sent, 1)
	assert.Equal(t, "billing@vendor.com", f.mail.Sent[0].To)
	assert.Len(t, f.sheets.RowsFor("sheet-1"), 1)

	cfg, node, err := f.store.Load(ctx, nodeID)
	require.NoError(t, err)
	assert.Equal(t, watermark, cfg.PollingSettings.Email.Cursor)
	assert.Equal(t, "sheet-1", cfg.SpreadsheetSink.SpreadsheetID)
	assert.Equal(t, int64(2), node.ServerConfigVersion)
	require.NotNil(t, node.LastBackgroundPollAt)
	assert.Nil(t, node.LastBackgroundPollError)

	again, err := o.RunCycle(ctx, nodeID, models.TriggerCron)
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.Zero(t, again.EventsFetched)
	assert.Nil(t, again.UpdatedCursors)
	assert.Len(t, f.mail.Sent, 1)
	assert.Equal(t, 1, f.sheets.CreateCount())

	_, node, err = f.store.Load(ctx, nodeID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), node.ServerConfigVersion)
}

func TestDeletedSpreadsheetIsReplacedAndPersisted(t *testing.T) {
	cfg := invoiceConfig()
	cfg.AutoReply = nil

	f := newFixture(t, cfg)
	f.mail.Messages["m1"] = mailMessage("m1", "billing@vendor.com", "Invoice 1", "invoice due", 10*time.Minute)

	o := f.orchestrator(Config{})
	ctx := context.Background()

	_, err := o.RunCycle(ctx, nodeID, models.TriggerCron)
	require.NoError(t, err)

	stored, _, err := f.store.Load(ctx, nodeID)
	require.NoError(t, err)
	require.Equal(t, "sheet-1", stored.SpreadsheetSink.SpreadsheetID)

	f.sheets.Delete("sheet-1")
	f.mail.Messages["m2"] = mailMessage("m2", "billing@vendor.com", "Invoice 2", "invoice due", time.Minute)

	result, err := o.RunCycle(ctx, nodeID, models.TriggerCron)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.SheetRowsLogged)
	assert.Len(t, f.sheets.RowsFor("sheet-2"), 1)

	stored, _, err = f.store.Load(ctx, nodeID)
	require.NoError(t, err)
	assert.Equal(t, "sheet-2", stored.SpreadsheetSink.SpreadsheetID)
}

func TestSourceIsolation(t *testing.T) {
	cfg := invoiceConfig()
	cfg.Rules = []models.Rule{{ID: "standup", Keyword: "standup", Severity: models.SeverityLow}}
	cfg.PollingSettings.Calendar = models.SourceSettings{Enabled: true, ConnectionID: "cal-1"}

	f := newFixture(t, cfg)
	f.provider.MailErr = errors.New("token revoked")
	f.calendar.Events = []credentials.CalendarEvent{{ID: "e1", Summary: "Daily standup", Status: "confirmed", Updated: testNow}}
	f.calendar.NextSyncToken = "tok-1"

	result, err := f.orchestrator(Config{}).RunCycle(context.Background(), nodeID, models.TriggerCron)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.StateIdle, result.State)
	assert.Equal(t, []string{"email: credentials"}, result.Errors)
	assert.Equal(t, 1, result.EventsFetched)
	assert.Equal(t, 1, result.AlertsGenerated)
	assert.Equal(t, 1, result.SheetRowsLogged)
	assert.Equal(t, map[string]string{"calendar": "tok-1"}, result.UpdatedCursors)

	stored, node, err := f.store.Load(context.Background(), nodeID)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored.PollingSettings.Calendar.Cursor)
	assert.Empty(t, stored.PollingSettings.Email.Cursor)
	require.NotNil(t, node.LastBackgroundPollError)
	assert.Equal(t, "email: credentials", *node.LastBackgroundPollError)
}

// strictLeases fails the test when two holders ever overlap on a key.
type strictLeases struct {
	t        *testing.T
	mu       sync.Mutex
	held     map[string]string
	rejected int
}

func (s *strictLeases) Acquire(_ context.Context, key, holder string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.held[key]; ok {
		if current == holder {
			s.t.Errorf("holder %s acquired %s twice", holder, key)
		}

		s.rejected++

		return models.ErrLeaseHeld
	}

	s.held[key] = holder

	return nil
}

func (s *strictLeases) Release(_ context.Context, key, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held[key] != holder {
		s.t.Errorf("release of %s by non-holder", key)
	}

	delete(s.held, key)

	return nil
}

// blockingFetcher parks the first cycle inside Fetching.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
}

func (*blockingFetcher) Source() models.EventSource { return models.SourceEmail }

func (b *blockingFetcher) FetchFor(ctx context.Context, _ credentials.Provider, _ string, s models.SourceSettings) ([]models.SSMEvent, string, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}

	select {
	case <-b.release:
	case <-ctx.Done():
	}

	return nil, s.Cursor, nil
}

func TestSingleFlightPerNode(t *testing.T) {
	f := newFixture(t, invoiceConfig())

	leases := &strictLeases{t: t, held: make(map[string]string)}
	fetcher := &blockingFetcher{entered: make(chan struct{}, 1), release: make(chan struct{})}

	f.deps.Leases = leases
	f.deps.Fetchers = sources.Registry{models.SourceEmail: fetcher}
	o := f.orchestrator(Config{})

	done := make(chan *models.PollResult)

	go func() {
		result, err := o.RunCycle(context.Background(), nodeID, models.TriggerCron)
		assert.NoError(t, err)
		done <- result
	}()

	<-fetcher.entered

	_, err := o.RunCycle(context.Background(), nodeID, models.TriggerManual)
	require.ErrorIs(t, err, models.ErrCycleInProgress)

	close(fetcher.release)

	first := <-done
	assert.True(t, first.Success)
	assert.Equal(t, 1, leases.rejected)
	assert.Empty(t, leases.held)

	_, err = o.RunCycle(context.Background(), nodeID, models.TriggerManual)
	require.NoError(t, err)
}

// stallingSheets blocks calendar rows until the cycle deadline.
type stallingSheets struct {
	*credentialstest.Sheets
}

func (s *stallingSheets) AppendRow(ctx context.Context, id, tab string, row []string) error {
	if slices.Contains(row, string(models.SourceCalendar)) {
		<-ctx.Done()
		return ctx.Err()
	}

	return s.Sheets.AppendRow(ctx, id, tab, row)
}

type stallingProvider struct {
	*credentialstest.Provider
	sheets credentials.SheetsClient
}

func (p *stallingProvider) Sheets(context.Context, string, string) (credentials.SheetsClient, error) {
	return p.sheets, nil
}

func TestTimeoutCommitsFinishedSourcesOnly(t *testing.T) {
	cfg := invoiceConfig()
	cfg.AutoReply = nil
	cfg.Rules = append(cfg.Rules, models.Rule{ID: "review", Keyword: "review", Severity: models.SeverityMedium})
	cfg.PollingSettings.Calendar = models.SourceSettings{Enabled: true, ConnectionID: "cal-1"}

	f := newFixture(t, cfg)
	f.mail.Messages["m1"] = mailMessage("m1", "billing@vendor.com", "Invoice", "invoice due", time.Minute)
	f.calendar.Events = []credentials.CalendarEvent{{ID: "e1", Summary: "Invoice review", Status: "confirmed", Updated: testNow}}
	f.calendar.NextSyncToken = "tok-1"

	f.deps.Provider = &stallingProvider{Provider: f.provider, sheets: &stallingSheets{Sheets: f.sheets}}

	result, err := f.orchestrator(Config{CycleTimeout: 200 * time.Millisecond}).
		RunCycle(context.Background(), nodeID, models.TriggerCron)
	require.NoError(t, err)

	assert.Equal(t, models.StateAborted, result.State)
	assert.False(t, result.Success)
	assert.Contains(t, result.Errors, "cycle: timeout")
	assert.Equal(t, 1, result.SheetRowsLogged)

	watermark := strconv.FormatInt(testNow.Add(-time.Minute).UnixMilli(), 10)
	assert.Equal(t, map[string]string{"email": watermark}, result.UpdatedCursors)

	stored, _, err := f.store.Load(context.Background(), nodeID)
	require.NoError(t, err)
	assert.Equal(t, watermark, stored.PollingSettings.Email.Cursor)
	assert.Empty(t, stored.PollingSettings.Calendar.Cursor)
	assert.Equal(t, "sheet-1", stored.SpreadsheetSink.SpreadsheetID)
}

// editingFetcher changes the email connection while the cycle is running.
type editingFetcher struct {
	store *configstore.Store
}

func (*editingFetcher) Source() models.EventSource { return models.SourceEmail }

func (e *editingFetcher) FetchFor(ctx context.Context, _ credentials.Provider, _ string, _ models.SourceSettings) ([]models.SSMEvent, string, error) {
	cfg := invoiceConfig()
	cfg.PollingSettings.Email.ConnectionID = "gmail-2"

	if _, err := e.store.Sync(ctx, nodeID, owner, cfg, configstore.SyncOptions{EnablePolling: true}); err != nil {
		return nil, "", err
	}

	return nil, "12345", nil
}

func TestCursorDroppedWhenConnectionChanges(t *testing.T) {
	f := newFixture(t, invoiceConfig())
	f.deps.Fetchers = sources.Registry{models.SourceEmail: &editingFetcher{store: f.store}}

	result, err := f.orchestrator(Config{}).RunCycle(context.Background(), nodeID, models.TriggerCron)
	require.NoError(t, err)
	assert.Nil(t, result.UpdatedCursors)

	stored, _, err := f.store.Load(context.Background(), nodeID)
	require.NoError(t, err)
	assert.Equal(t, "gmail-2", stored.PollingSettings.Email.ConnectionID)
	assert.Empty(t, stored.PollingSettings.Email.Cursor)
}

func TestDecryptFailureAborts(t *testing.T) {
	f := newFixture(t, invoiceConfig())

	node, err := f.repo.GetNode(context.Background(), nodeID)
	require.NoError(t, err)

	node.ServerConfigEncrypted[len(node.ServerConfigEncrypted)-1] ^= 0xff
	f.repo.PutNode(node)

	result, err := f.orchestrator(Config{}).RunCycle(context.Background(), nodeID, models.TriggerCron)
	require.ErrorIs(t, err, models.ErrEncryption)
	assert.Equal(t, models.StateAborted, result.State)
	assert.Equal(t, []string{"load: encryption"}, result.Errors)
	assert.Zero(t, f.mail.SentCount())

	node, err = f.repo.GetNode(context.Background(), nodeID)
	require.NoError(t, err)
	require.NotNil(t, node.LastBackgroundPollError)
	assert.Equal(t, "load: encryption", *node.LastBackgroundPollError)
}

func TestLeaseBackendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	leases := NewMockLeaseStore(ctrl)
	store := NewMockConfigStore(ctrl)
	recorder := NewMockRecorder(ctrl)

	leases.EXPECT().Acquire(gomock.Any(), LeaseKey(nodeID), gomock.Any(), 150*time.Second).Return(errors.New("connection refused"))

	o := New(Dependencies{Store: store, Leases: leases, Metrics: recorder}, Config{}, logger.NewTestLogger())

	_, err := o.RunCycle(context.Background(), nodeID, models.TriggerCron)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrCycleInProgress)
}

func TestMetricsRecordedOncePerCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := NewMockRecorder(ctrl)

	f := newFixture(t, invoiceConfig())
	f.deps.Metrics = recorder

	recorder.EXPECT().RecordCycle(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r *models.PollResult) {
		assert.Equal(t, models.TriggerCron, r.Source)
	}).Times(1)

	_, err := f.orchestrator(Config{}).RunCycle(context.Background(), nodeID, models.TriggerCron)
	require.NoError(t, err)
}
