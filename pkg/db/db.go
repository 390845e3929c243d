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

// Package db is the CNPG/Postgres backend for node records, auto-reply
// counters, cycle leases and sealed OAuth tokens.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
)

// executor is the subset of pgx shared by pools, pooled connections and
// transactions.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB implements the node repository, rate counter, lease store and token
// store on one pgx pool.
type DB struct {
	pool     *pgxpool.Pool
	executor executor
	logger   logger.Logger
	now      func() time.Time
}

// New connects to the configured cluster.
func New(ctx context.Context, cfg *models.DatabaseConfig, log logger.Logger) (*DB, error) {
	pool, err := NewCNPGPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if pool == nil {
		return nil, ErrDatabaseError
	}

	return &DB{pool: pool, executor: pool, logger: log, now: time.Now}, nil
}

// Migrate applies pending schema migrations.
func (db *DB) Migrate(ctx context.Context) (int, error) {
	return RunCNPGMigrations(ctx, db.pool, db.logger)
}

// Close releases the pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// SetClock overrides the time source used for lease and counter expiry.
func (db *DB) SetClock(now func() time.Time) {
	db.now = now
}
