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

// Package configstore holds the encrypted, versioned per-node server config.
package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
)

// maxWriteAttempts bounds reload-and-retry loops on version conflicts.
const maxWriteAttempts = 3

// SyncOptions carries the request fields that are not part of the blob.
type SyncOptions struct {
	EnablePolling bool
	// ExpectedVersion turns the write into a strict compare-and-swap against
	// the version the caller last observed. Nil writes on top of whatever is
	// current.
	ExpectedVersion *int64
}

// Store encrypts, versions and persists ServerConfig blobs.
type Store struct {
	repo   NodeRepository
	sealer Sealer
	logger logger.Logger
	now    func() time.Time
}

// NewStore wires a repository and sealer.
func NewStore(repo NodeRepository, sealer Sealer, log logger.Logger) *Store {
	return &Store{
		repo:   repo,
		sealer: sealer,
		logger: log,
		now:    time.Now,
	}
}

// Node returns the plaintext node record, checking nothing else.
func (s *Store) Node(ctx context.Context, nodeID string) (*models.MonitoredNode, error) {
	return s.repo.GetNode(ctx, nodeID)
}

// OwnedNode returns the node when ownerID owns it.
func (s *Store) OwnedNode(ctx context.Context, nodeID, ownerID string) (*models.MonitoredNode, error) {
	node, err := s.repo.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if node.OwnerID != ownerID {
		return nil, fmt.Errorf("node %s: %w", nodeID, models.ErrOwnership)
	}

	return node, nil
}

// Sync replaces the node's config with cfg at version current+1 and returns
// the new version.
func (s *Store) Sync(
	ctx context.Context, nodeID, ownerID string, cfg *models.ServerConfig, opts SyncOptions) (int64, error) {
	if cfg == nil {
		return 0, &models.ValidationError{Field: "config", Reason: "required"}
	}

	for attempt := 1; ; attempt++ {
		node, err := s.OwnedNode(ctx, nodeID, ownerID)
		if err != nil {
			return 0, err
		}

		if opts.ExpectedVersion != nil && *opts.ExpectedVersion != node.ServerConfigVersion {
			return 0, fmt.Errorf("node %s at version %d, caller saw %d: %w",
				nodeID, node.ServerConfigVersion, *opts.ExpectedVersion, models.ErrVersionConflict)
		}

		enabled := opts.EnablePolling

		version, err := s.write(ctx, node, cfg, &enabled)
		if err == nil {
			s.logger.Info().
				Str("node_id", nodeID).
				Int64("version", version).
				Int("rules", len(cfg.Rules)).
				Msg("Server config synced")

			return version, nil
		}

		if !errors.Is(err, models.ErrVersionConflict) || opts.ExpectedVersion != nil || attempt >= maxWriteAttempts {
			return 0, err
		}

		s.logger.Debug().Str("node_id", nodeID).Int("attempt", attempt).Msg("Version moved during sync, retrying")
	}
}

// Clear disables polling and erases the ciphertext. Version and audit
// history stay in place.
func (s *Store) Clear(ctx context.Context, nodeID, ownerID string) error {
	if _, err := s.OwnedNode(ctx, nodeID, ownerID); err != nil {
		return err
	}

	if err := s.repo.ClearConfig(ctx, nodeID, s.now().UTC()); err != nil {
		return fmt.Errorf("clear config for node %s: %w", nodeID, err)
	}

	s.logger.Info().Str("node_id", nodeID).Msg("Server config cleared")

	return nil
}

// Load decrypts the node's config. A failed authentication tag is
// models.ErrEncryption.
func (s *Store) Load(ctx context.Context, nodeID string) (*models.ServerConfig, *models.MonitoredNode, error) {
	node, err := s.repo.GetNode(ctx, nodeID)
	if err != nil {
		return nil, nil, err
	}

	if !node.HasConfig() {
		return nil, node, fmt.Errorf("node %s: %w", nodeID, models.ErrNotConfigured)
	}

	plaintext, err := s.sealer.Open(ctx, node.ServerConfigEncrypted, []byte(nodeID))
	if err != nil {
		return nil, node, fmt.Errorf("decrypt config for node %s: %w: %w", nodeID, models.ErrEncryption, err)
	}

	var cfg models.ServerConfig
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return nil, node, fmt.Errorf("decode config for node %s: %w: %w", nodeID, models.ErrEncryption, err)
	}

	if cfg.Version != node.ServerConfigVersion {
		s.logger.Warn().
			Str("node_id", nodeID).
			Int64("blob_version", cfg.Version).
			Int64("node_version", node.ServerConfigVersion).
			Msg("Config blob version differs from node record")

		cfg.Version = node.ServerConfigVersion
	}

	return &cfg, node, nil
}

// SaveState applies mutate to the latest config and writes it back as a
// compare-and-swap. When the version moved since expectedVersion, mutate is
// re-applied on the newer config, so it must be safe to run more than once.
func (s *Store) SaveState(
	ctx context.Context, nodeID string, expectedVersion int64, mutate func(*models.ServerConfig)) (int64, error) {
	var lastErr error

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		cfg, node, err := s.Load(ctx, nodeID)
		if err != nil {
			return 0, err
		}

		if node.ServerConfigVersion != expectedVersion {
			s.logger.Debug().
				Str("node_id", nodeID).
				Int64("expected_version", expectedVersion).
				Int64("current_version", node.ServerConfigVersion).
				Msg("Config changed during cycle, re-applying state on latest version")
		}

		mutate(cfg)

		version, err := s.write(ctx, node, cfg, nil)
		if err == nil {
			return version, nil
		}

		if !errors.Is(err, models.ErrVersionConflict) {
			return 0, err
		}

		lastErr = err
	}

	return 0, lastErr
}

// RecordPoll updates the audit fields without touching the version.
func (s *Store) RecordPoll(ctx context.Context, nodeID string, at time.Time, errText *string) error {
	return s.repo.RecordPoll(ctx, nodeID, at, errText)
}

func (s *Store) write(
	ctx context.Context, node *models.MonitoredNode, cfg *models.ServerConfig, pollingEnabled *bool) (int64, error) {
	now := s.now().UTC()

	blob := *cfg
	blob.Version = node.ServerConfigVersion + 1
	blob.OwnerID = node.OwnerID
	blob.NodeID = node.ID
	blob.SyncedAt = now

	plaintext, err := json.Marshal(&blob)
	if err != nil {
		return 0, fmt.Errorf("encode config for node %s: %w", node.ID, err)
	}

	ciphertext, err := s.sealer.Seal(ctx, plaintext, []byte(node.ID))
	if err != nil {
		return 0, fmt.Errorf("encrypt config for node %s: %w: %w", node.ID, models.ErrEncryption, err)
	}

	err = s.repo.WriteConfig(ctx, &models.ConfigWrite{
		NodeID:          node.ID,
		PreviousVersion: node.ServerConfigVersion,
		Version:         blob.Version,
		Ciphertext:      ciphertext,
		UpdatedAt:       now,
		PollingEnabled:  pollingEnabled,
		IntervalMinutes: blob.PollingSettings.Interval(),
	})
	if err != nil {
		return 0, err
	}

	return blob.Version, nil
}
