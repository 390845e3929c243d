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
	"fmt"
	"time"

	"github.com/carverauto/ssm/pkg/models"
)

const (
	acquireLeaseSQL = `INSERT INTO ssm_leases (key, holder, expires_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
	WHERE ssm_leases.expires_at <= $4 OR ssm_leases.holder = EXCLUDED.holder`

	releaseLeaseSQL = `DELETE FROM ssm_leases WHERE key = $1 AND holder = $2`
)

// Acquire takes the lease for key or returns models.ErrLeaseHeld. An expired
// lease is taken over.
func (db *DB) Acquire(ctx context.Context, key, holder string, ttl time.Duration) error {
	now := db.now().UTC()

	tag, err := db.executor.Exec(ctx, acquireLeaseSQL, key, holder, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("%w lease %s: %w", ErrFailedToInsert, key, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", key, models.ErrLeaseHeld)
	}

	return nil
}

// Release drops the lease if holder still owns it.
func (db *DB) Release(ctx context.Context, key, holder string) error {
	if _, err := db.executor.Exec(ctx, releaseLeaseSQL, key, holder); err != nil {
		return fmt.Errorf("%w lease %s: %w", ErrFailedToUpdate, key, err)
	}

	return nil
}
