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

// Package service implements the web-facing operations: sync, clear, run
// now and status. It owns request validation and the merge of machine state
// into user edits.
package service

//go:generate mockgen -destination=mock_service.go -package=service github.com/carverauto/ssm/pkg/service CycleRunner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/ssm/pkg/configstore"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
	"github.com/carverauto/ssm/pkg/rules"
)

const maxSyncAttempts = 3

// CycleRunner runs one poll cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context, nodeID string, trigger models.TriggerSource) (*models.PollResult, error)
}

// SyncRequest is the body of a config sync.
type SyncRequest struct {
	CanvasID                string                          `json:"canvas_id"`
	Rules                   []models.Rule                   `json:"rules"`
	AlertTemplates          []models.AlertTemplate          `json:"alert_templates,omitempty"`
	AutoReply               *models.AutoReplySettings       `json:"auto_reply,omitempty"`
	SpreadsheetSink         *models.SpreadsheetSinkSettings `json:"spreadsheet_sink,omitempty"`
	PollingSettings         models.PollingSettings          `json:"polling_settings"`
	EnableBackgroundPolling bool                            `json:"enable_background_polling"`
	ExpectedVersion         *int64                          `json:"expected_version,omitempty"`
}

// Config builds the ServerConfig carried by the request.
func (r *SyncRequest) Config() *models.ServerConfig {
	return &models.ServerConfig{
		Rules:           r.Rules,
		AlertTemplates:  r.AlertTemplates,
		AutoReply:       r.AutoReply,
		SpreadsheetSink: r.SpreadsheetSink,
		PollingSettings: r.PollingSettings,
	}
}

// NodeStatus is the plaintext audit view of a node.
type NodeStatus struct {
	NodeID                   string     `json:"node_id"`
	Configured               bool       `json:"configured"`
	BackgroundPollingEnabled bool       `json:"background_polling_enabled"`
	ServerConfigVersion      int64      `json:"server_config_version"`
	ServerConfigUpdatedAt    *time.Time `json:"server_config_updated_at,omitempty"`
	LastBackgroundPollAt     *time.Time `json:"last_background_poll_at,omitempty"`
	LastBackgroundPollError  *string    `json:"last_background_poll_error,omitempty"`
	PollIntervalMinutes      int        `json:"poll_interval_minutes"`
}

// Service is the entry point used by the HTTP layer and the CLI.
type Service struct {
	store  *configstore.Store
	runner CycleRunner
	logger logger.Logger
}

// New wires a Service.
func New(store *configstore.Store, runner CycleRunner, log logger.Logger) *Service {
	return &Service{store: store, runner: runner, logger: log}
}

// SyncConfig validates req, merges cursors and the cached sink id from the
// stored config, and writes the result as the next version.
func (s *Service) SyncConfig(ctx context.Context, nodeID, userID string, req *SyncRequest) (int64, error) {
	if req == nil {
		return 0, &models.ValidationError{Field: "body", Reason: "required"}
	}

	if req.CanvasID == "" {
		return 0, &models.ValidationError{Field: "canvas_id", Reason: "required"}
	}

	if err := rules.ValidateConfig(req.Config()); err != nil {
		return 0, err
	}

	for attempt := 1; ; attempt++ {
		node, err := s.authorize(ctx, nodeID, userID, req.CanvasID)
		if err != nil {
			return 0, err
		}

		cfg := req.Config()
		s.mergeState(ctx, node, cfg)

		expected := req.ExpectedVersion
		if expected == nil {
			current := node.ServerConfigVersion
			expected = &current
		}

		version, err := s.store.Sync(ctx, nodeID, userID, cfg, configstore.SyncOptions{
			EnablePolling:   req.EnableBackgroundPolling,
			ExpectedVersion: expected,
		})
		if err == nil {
			return version, nil
		}

		if !errors.Is(err, models.ErrVersionConflict) || req.ExpectedVersion != nil || attempt >= maxSyncAttempts {
			return 0, err
		}
	}
}

// mergeState carries machine-owned state across a user edit: a source keeps
// its cursor while its connection is unchanged, and the sink keeps its
// resolved spreadsheet id while its name and connection are unchanged.
func (s *Service) mergeState(ctx context.Context, node *models.MonitoredNode, cfg *models.ServerConfig) {
	if !node.HasConfig() {
		return
	}

	prev, _, err := s.store.Load(ctx, node.ID)
	if err != nil {
		s.logger.Warn().
			Str("node_id", node.ID).
			Str("error_class", models.ErrorClass(err)).
			Msg("Previous config unreadable, syncing without merge")

		return
	}

	for _, src := range models.AllSources {
		next, old := cfg.PollingSettings.ForSource(src), prev.PollingSettings.ForSource(src)
		if next.Cursor == "" && next.ConnectionID == old.ConnectionID {
			next.Cursor = old.Cursor
		}
	}

	if next, old := cfg.SpreadsheetSink, prev.SpreadsheetSink; next != nil && old != nil &&
		next.SpreadsheetID == "" && next.SheetName == old.SheetName && next.ConnectionID == old.ConnectionID {
		next.SpreadsheetID = old.SpreadsheetID
	}
}

// ClearConfig removes the node's config and disables polling.
func (s *Service) ClearConfig(ctx context.Context, nodeID, userID, canvasID string) error {
	if _, err := s.authorize(ctx, nodeID, userID, canvasID); err != nil {
		return err
	}

	return s.store.Clear(ctx, nodeID, userID)
}

// RunNow runs one cycle immediately on behalf of the owner.
func (s *Service) RunNow(ctx context.Context, nodeID, userID string) (*models.PollResult, error) {
	if _, err := s.store.OwnedNode(ctx, nodeID, userID); err != nil {
		return nil, err
	}

	return s.runner.RunCycle(ctx, nodeID, models.TriggerManual)
}

// Status returns the plaintext audit fields without decrypting anything.
func (s *Service) Status(ctx context.Context, nodeID, userID string) (*NodeStatus, error) {
	node, err := s.store.OwnedNode(ctx, nodeID, userID)
	if err != nil {
		return nil, err
	}

	return &NodeStatus{
		NodeID:                   node.ID,
		Configured:               node.HasConfig(),
		BackgroundPollingEnabled: node.BackgroundPollingEnabled,
		ServerConfigVersion:      node.ServerConfigVersion,
		ServerConfigUpdatedAt:    node.ServerConfigUpdatedAt,
		LastBackgroundPollAt:     node.LastBackgroundPollAt,
		LastBackgroundPollError:  node.LastBackgroundPollError,
		PollIntervalMinutes:      node.PollIntervalMinutes,
	}, nil
}

// authorize resolves the node, hiding it behind ErrNotFound when the canvas
// does not match and failing with ErrOwnership for another user's node.
func (s *Service) authorize(ctx context.Context, nodeID, userID, canvasID string) (*models.MonitoredNode, error) {
	node, err := s.store.Node(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if canvasID != "" && node.CanvasID != canvasID {
		return nil, fmt.Errorf("node %s on canvas %s: %w", nodeID, canvasID, models.ErrNotFound)
	}

	if node.OwnerID != userID {
		return nil, fmt.Errorf("node %s: %w", nodeID, models.ErrOwnership)
	}

	return node, nil
}
