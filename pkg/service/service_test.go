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

package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/ssm/pkg/configstore"
	"github.com/carverauto/ssm/pkg/crypto/secrets"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/memstore"
	"github.com/carverauto/ssm/pkg/models"
)

const (
	nodeID = "node-1"
	owner  = "user-1"
	canvas = "canvas-1"
)

func newService(t *testing.T, runner CycleRunner) (*Service, *configstore.Store) {
	t.Helper()

	repo := memstore.New()
	repo.PutNode(&models.MonitoredNode{ID: nodeID, CanvasID: canvas, OwnerID: owner})

	envelope := secrets.NewEnvelope(secrets.NewStaticKeyProvider(bytes.Repeat([]byte{9}, 32)), secrets.InfoServerConfig)
	store := configstore.NewStore(repo, envelope, logger.NewTestLogger())

	return New(store, runner, logger.NewTestLogger()), store
}

func request() *SyncRequest {
	return &SyncRequest{
		CanvasID: canvas,
		Rules:    []models.Rule{{ID: "r1", Keyword: "invoice", Severity: models.SeverityHigh}},
		SpreadsheetSink: &models.SpreadsheetSinkSettings{
			Enabled: true, SheetName: "Alerts", CreateIfMissing: true,
		},
		PollingSettings: models.PollingSettings{
			Email:    models.SourceSettings{Enabled: true, ConnectionID: "gmail-1"},
			Calendar: models.SourceSettings{Enabled: true, ConnectionID: "cal-1"},
		},
		EnableBackgroundPolling: true,
	}
}

func TestSyncConfig(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	version, err := svc.SyncConfig(ctx, nodeID, owner, request())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	cfg, node, err := store.Load(ctx, nodeID)
	require.NoError(t, err)
	assert.True(t, node.BackgroundPollingEnabled)
	assert.Equal(t, "r1", cfg.Rules[0].ID)
	assert.Equal(t, owner, cfg.OwnerID)
}

func TestSyncMergesMachineState(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	_, err := svc.SyncConfig(ctx, nodeID, owner, request())
	require.NoError(t, err)

	_, err = store.SaveState(ctx, nodeID, 1, func(cfg *models.ServerConfig) {
		cfg.PollingSettings.Email.Cursor = "1700000000000"
		cfg.PollingSettings.Calendar.Cursor = "tok-9"
		cfg.SpreadsheetSink.SpreadsheetID = "sheet-1"
	})
	require.NoError(t, err)

	edit := request()
	edit.Rules[0].Keyword = "receipt"
	edit.PollingSettings.Calendar.ConnectionID = "cal-2"

	version, err := svc.SyncConfig(ctx, nodeID, owner, edit)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	cfg, _, err := store.Load(ctx, nodeID)
	require.NoError(t, err)
	assert.Equal(t, "receipt", cfg.Rules[0].Keyword)
	assert.Equal(t, "1700000000000", cfg.PollingSettings.Email.Cursor)
	assert.Empty(t, cfg.PollingSettings.Calendar.Cursor)
	assert.Equal(t, "sheet-1", cfg.SpreadsheetSink.SpreadsheetID)

	renamed := request()
	renamed.SpreadsheetSink.SheetName = "Other"

	_, err = svc.SyncConfig(ctx, nodeID, owner, renamed)
	require.NoError(t, err)

	cfg, _, err = store.Load(ctx, nodeID)
	require.NoError(t, err)
	assert.Empty(t, cfg.SpreadsheetSink.SpreadsheetID)
}

func TestSyncRejections(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	noRules := request()
	noRules.Rules = nil
	_, err := svc.SyncConfig(ctx, nodeID, owner, noRules)
	require.ErrorIs(t, err, models.ErrValidation)

	noCanvas := request()
	noCanvas.CanvasID = ""
	_, err = svc.SyncConfig(ctx, nodeID, owner, noCanvas)
	require.ErrorIs(t, err, models.ErrValidation)

	otherCanvas := request()
	otherCanvas.CanvasID = "canvas-2"
	_, err = svc.SyncConfig(ctx, nodeID, owner, otherCanvas)
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.SyncConfig(ctx, "missing", owner, request())
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.SyncConfig(ctx, nodeID, "intruder", request())
	require.ErrorIs(t, err, models.ErrOwnership)

	stale := request()
	zero := int64(0)
	stale.ExpectedVersion = &zero

	_, err = svc.SyncConfig(ctx, nodeID, owner, stale)
	require.NoError(t, err)

	_, err = svc.SyncConfig(ctx, nodeID, owner, stale)
	require.ErrorIs(t, err, models.ErrVersionConflict)
}

func TestClearConfig(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	_, err := svc.SyncConfig(ctx, nodeID, owner, request())
	require.NoError(t, err)

	require.ErrorIs(t, svc.ClearConfig(ctx, nodeID, owner, "canvas-2"), models.ErrNotFound)
	require.ErrorIs(t, svc.ClearConfig(ctx, nodeID, "intruder", canvas), models.ErrOwnership)
	require.NoError(t, svc.ClearConfig(ctx, nodeID, owner, canvas))

	_, _, err = store.Load(ctx, nodeID)
	require.ErrorIs(t, err, models.ErrNotConfigured)

	status, err := svc.Status(ctx, nodeID, owner)
	require.NoError(t, err)
	assert.False(t, status.Configured)
	assert.False(t, status.BackgroundPollingEnabled)
	assert.Equal(t, int64(1), status.ServerConfigVersion)
}

func TestRunNow(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := NewMockCycleRunner(ctrl)
	svc, _ := newService(t, runner)
	ctx := context.Background()

	runner.EXPECT().RunCycle(gomock.Any(), nodeID, models.TriggerManual).
		Return(&models.PollResult{Success: true, Source: models.TriggerManual}, nil)

	result, err := svc.RunNow(ctx, nodeID, owner)
	require.NoError(t, err)
	assert.True(t, result.Success)

	_, err = svc.RunNow(ctx, nodeID, "intruder")
	require.ErrorIs(t, err, models.ErrOwnership)
}

func TestStatus(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.SyncConfig(ctx, nodeID, owner, request())
	require.NoError(t, err)

	status, err := svc.Status(ctx, nodeID, owner)
	require.NoError(t, err)
	assert.True(t, status.Configured)
	assert.True(t, status.BackgroundPollingEnabled)
	assert.Equal(t, models.DefaultPollIntervalMinutes, status.PollIntervalMinutes)
	assert.NotNil(t, status.ServerConfigUpdatedAt)

	_, err = svc.Status(ctx, nodeID, "intruder")
	require.ErrorIs(t, err, models.ErrOwnership)
}
