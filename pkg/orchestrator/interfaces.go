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

//go:generate mockgen -destination=mock_orchestrator.go -package=orchestrator github.com/carverauto/ssm/pkg/orchestrator LeaseStore,ConfigStore,Recorder

import (
	"context"
	"time"

	"github.com/carverauto/ssm/pkg/models"
)

// LeaseStore grants one holder at a time per key until the TTL lapses.
// Acquire returns models.ErrLeaseHeld when another holder owns the key.
type LeaseStore interface {
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) error
	Release(ctx context.Context, key, holder string) error
}

// ConfigStore is the subset of *configstore.Store a cycle needs.
type ConfigStore interface {
	Load(ctx context.Context, nodeID string) (*models.ServerConfig, *models.MonitoredNode, error)
	SaveState(ctx context.Context, nodeID string, expectedVersion int64, mutate func(*models.ServerConfig)) (int64, error)
	RecordPoll(ctx context.Context, nodeID string, at time.Time, errText *string) error
}

// Recorder receives one call per finished cycle.
type Recorder interface {
	RecordCycle(ctx context.Context, result *models.PollResult)
}

type nopRecorder struct{}

func (nopRecorder) RecordCycle(context.Context, *models.PollResult) {}
