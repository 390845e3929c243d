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

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/ssm/pkg/models"
)

const (
	getTokenSQL = `SELECT token_encrypted FROM ssm_oauth_tokens WHERE user_id = $1 AND connection_id = $2`

	putTokenSQL = `INSERT INTO ssm_oauth_tokens (user_id, connection_id, token_encrypted, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, connection_id) DO UPDATE SET
		token_encrypted = EXCLUDED.token_encrypted,
		updated_at = EXCLUDED.updated_at`
)

// GetSealedToken returns the sealed token for a user connection.
func (db *DB) GetSealedToken(ctx context.Context, userID, connectionID string) ([]byte, error) {
	var sealed []byte

	err := db.executor.QueryRow(ctx, getTokenSQL, userID, connectionID).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("token for connection %s: %w", connectionID, models.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("%w token: %w", ErrFailedToQuery, err)
	}

	return sealed, nil
}

// PutSealedToken stores or replaces a sealed token.
func (db *DB) PutSealedToken(ctx context.Context, userID, connectionID string, sealed []byte) error {
	if _, err := db.executor.Exec(ctx, putTokenSQL, userID, connectionID, sealed, db.now().UTC()); err != nil {
		return fmt.Errorf("%w token: %w", ErrFailedToInsert, err)
	}

	return nil
}
