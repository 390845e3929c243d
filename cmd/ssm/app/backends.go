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

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/ssm/pkg/actions"
	"github.com/carverauto/ssm/pkg/configstore"
	"github.com/carverauto/ssm/pkg/db"
	"github.com/carverauto/ssm/pkg/kv"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/memstore"
	"github.com/carverauto/ssm/pkg/models"
	"github.com/carverauto/ssm/pkg/orchestrator"
	"github.com/carverauto/ssm/pkg/scheduler"
	"github.com/carverauto/ssm/pkg/workspace"
)

// nodeStore is what both durable backends provide for node records.
type nodeStore interface {
	configstore.NodeRepository
	scheduler.NodeLister
	workspace.TokenStore
}

// coordinator is a lease and counter backend.
type coordinator interface {
	orchestrator.LeaseStore
	actions.RateCounter
}

// expiryCleaner drops lapsed leases and rate windows.
type expiryCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// backends holds the storage selected by ServiceConfig.Store and Leases.
type backends struct {
	nodes  nodeStore
	coord  coordinator
	db     *db.DB
	mem    *memstore.Store
	nats   *kv.NatsStore
	logger logger.Logger
}

func openBackends(ctx context.Context, cfg *models.ServiceConfig, log logger.Logger) (*backends, error) {
	b := &backends{logger: log}

	switch cfg.Store {
	case models.BackendPostgres:
		database, err := b.database(ctx, cfg)
		if err != nil {
			return nil, err
		}

		b.nodes = database
	default:
		b.nodes = b.memory()
	}

	switch cfg.Leases {
	case models.BackendPostgres:
		database, err := b.database(ctx, cfg)
		if err != nil {
			b.Close()
			return nil, err
		}

		b.coord = database
	case models.BackendNATS:
		store, err := kv.NewNatsStore(ctx, kv.Options{
			URL:       cfg.NATS.URL,
			CredsFile: cfg.NATS.CredsFile,
			Domain:    cfg.NATS.Domain,
			Bucket:    cfg.NATS.Bucket,
			TTL:       natsTTL(cfg),
		}, log)
		if err != nil {
			b.Close()
			return nil, err
		}

		b.nats = store
		b.coord = store
	default:
		b.coord = b.memory()
	}

	return b, nil
}

func (b *backends) database(ctx context.Context, cfg *models.ServiceConfig) (*db.DB, error) {
	if b.db != nil {
		return b.db, nil
	}

	database, err := db.New(ctx, cfg.Database, b.logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	b.db = database

	return database, nil
}

func (b *backends) memory() *memstore.Store {
	if b.mem == nil {
		b.mem = memstore.New()
	}

	return b.mem
}

// cleaners lists the opened backends that need periodic expiry sweeps. NATS
// buckets expire entries on their own.
func (b *backends) cleaners() []expiryCleaner {
	var out []expiryCleaner

	if b.db != nil {
		out = append(out, b.db)
	}

	if b.mem != nil {
		out = append(out, b.mem)
	}

	return out
}

// natsTTL keeps bucket entries at least as long as the longest record the
// store writes: a lease or a rate window.
func natsTTL(cfg *models.ServiceConfig) time.Duration {
	return max(cfg.LeaseTTL(), time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
}

// Close releases every opened backend.
func (b *backends) Close() {
	if b.nats != nil {
		if err := b.nats.Close(); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to close NATS connection")
		}
	}

	if b.db != nil {
		b.db.Close()
	}
}
