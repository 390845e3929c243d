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

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/ssm/pkg/models"
)

const nodeColumns = `id, canvas_id, owner_id, background_polling_enabled, server_config_encrypted,
	server_config_version, server_config_updated_at, last_background_poll_at,
	last_background_poll_error, poll_interval_minutes`

const (
	getNodeSQL = `SELECT ` + nodeColumns + ` FROM ssm_nodes WHERE id = $1`

	registerNodeSQL = `INSERT INTO ssm_nodes (id, canvas_id, owner_id, poll_interval_minutes)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO NOTHING`

	writeConfigSQL = `UPDATE ssm_nodes SET
		server_config_encrypted = $3,
		server_config_version = $4,
		server_config_updated_at = $5,
		background_polling_enabled = COALESCE($6::boolean, background_polling_enabled),
		poll_interval_minutes = CASE WHEN $7::int > 0 THEN $7::int ELSE poll_interval_minutes END
	WHERE id = $1 AND server_config_version = $2`

	nodeVersionSQL = `SELECT server_config_version FROM ssm_nodes WHERE id = $1`

	clearConfigSQL = `UPDATE ssm_nodes SET
		background_polling_enabled = FALSE,
		server_config_encrypted = NULL,
		server_config_updated_at = $2
	WHERE id = $1`

	recordPollSQL = `UPDATE ssm_nodes SET
		last_background_poll_at = $2,
		last_background_poll_error = $3
	WHERE id = $1`

	listDueNodesSQL = `SELECT ` + nodeColumns + ` FROM ssm_nodes
	WHERE background_polling_enabled
	  AND server_config_encrypted IS NOT NULL
	  AND (last_background_poll_at IS NULL
	       OR last_background_poll_at + make_interval(mins => CASE WHEN poll_interval_minutes > 0
	              THEN poll_interval_minutes ELSE $3 END) <= $1)
	ORDER BY last_background_poll_at ASC NULLS FIRST, id
	LIMIT $2`
)

// RegisterNode creates the node record a configuration attaches to.
func (db *DB) RegisterNode(ctx context.Context, node *models.MonitoredNode) error {
	if node == nil || node.ID == "" {
		return ErrNodeIDRequired
	}

	interval := node.PollIntervalMinutes
	if interval <= 0 {
		interval = models.DefaultPollIntervalMinutes
	}

	tag, err := db.executor.Exec(ctx, registerNodeSQL, node.ID, node.CanvasID, node.OwnerID, interval)
	if err != nil {
		return fmt.Errorf("%w node %s: %w", ErrFailedToInsert, node.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", node.ID, ErrNodeExists)
	}

	return nil
}

// GetNode loads one node or returns models.ErrNotFound.
func (db *DB) GetNode(ctx context.Context, nodeID string) (*models.MonitoredNode, error) {
	node, err := scanNode(db.executor.QueryRow(ctx, getNodeSQL, nodeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("%w node %s: %w", ErrFailedToQuery, nodeID, err)
	}

	return node, nil
}

// WriteConfig replaces the ciphertext only when the stored version is
// w.PreviousVersion.
func (db *DB) WriteConfig(ctx context.Context, w *models.ConfigWrite) error {
	tag, err := db.executor.Exec(ctx, writeConfigSQL,
		w.NodeID,
		w.PreviousVersion,
		w.Ciphertext,
		w.Version,
		w.UpdatedAt.UTC(),
		w.PollingEnabled,
		w.IntervalMinutes,
	)
	if err != nil {
		return fmt.Errorf("%w node %s: %w", ErrFailedToUpdate, w.NodeID, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var current int64

	err = db.executor.QueryRow(ctx, nodeVersionSQL, w.NodeID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("node %s: %w", w.NodeID, models.ErrNotFound)
	}

	if err != nil {
		return fmt.Errorf("%w node %s: %w", ErrFailedToQuery, w.NodeID, err)
	}

	return fmt.Errorf("node %s at version %d, expected %d: %w",
		w.NodeID, current, w.PreviousVersion, models.ErrVersionConflict)
}

// ClearConfig disables polling and drops the ciphertext.
func (db *DB) ClearConfig(ctx context.Context, nodeID string, at time.Time) error {
	return db.updateOne(ctx, nodeID, clearConfigSQL, nodeID, at.UTC())
}

// RecordPoll writes the audit fields of a finished cycle.
func (db *DB) RecordPoll(ctx context.Context, nodeID string, at time.Time, errText *string) error {
	return db.updateOne(ctx, nodeID, recordPollSQL, nodeID, at.UTC(), errText)
}

func (db *DB) updateOne(ctx context.Context, nodeID, sql string, args ...any) error {
	tag, err := db.executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%w node %s: %w", ErrFailedToUpdate, nodeID, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound)
	}

	return nil
}

// ListDueNodes returns nodes due at now, least recently polled first.
func (db *DB) ListDueNodes(ctx context.Context, now time.Time, limit int) ([]*models.MonitoredNode, error) {
	rows, err := db.executor.Query(ctx, listDueNodesSQL, now.UTC(), limit, models.DefaultPollIntervalMinutes)
	if err != nil {
		return nil, fmt.Errorf("%w due nodes: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	nodes := make([]*models.MonitoredNode, 0)

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("%w due node: %w", ErrFailedToScan, err)
		}

		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w due nodes: %w", ErrFailedToQuery, err)
	}

	return nodes, nil
}

func scanNode(row pgx.Row) (*models.MonitoredNode, error) {
	var (
		node     models.MonitoredNode
		interval int32
	)

	if err := row.Scan(
		&node.ID,
		&node.CanvasID,
		&node.OwnerID,
		&node.BackgroundPollingEnabled,
		&node.ServerConfigEncrypted,
		&node.ServerConfigVersion,
		&node.ServerConfigUpdatedAt,
		&node.LastBackgroundPollAt,
		&node.LastBackgroundPollError,
		&interval,
	); err != nil {
		return nil, err
	}

	node.PollIntervalMinutes = int(interval)

	return &node, nil
}
