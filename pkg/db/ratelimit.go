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
)

const incrementSQL = `INSERT INTO ssm_rate_limits (key, count, expires_at)
	VALUES ($1, 1, $2)
	ON CONFLICT (key) DO UPDATE SET
		count = CASE WHEN ssm_rate_limits.expires_at <= $3 THEN 1 ELSE ssm_rate_limits.count + 1 END,
		expires_at = CASE WHEN ssm_rate_limits.expires_at <= $3 THEN EXCLUDED.expires_at ELSE ssm_rate_limits.expires_at END
	RETURNING count`

// Increment bumps the counter for key and returns the new value. The row
// resets once window has elapsed since its first increment.
func (db *DB) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := db.now().UTC()

	var count int64
	if err := db.executor.QueryRow(ctx, incrementSQL, key, now.Add(window), now).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w rate limit: %w", ErrFailedToUpdate, err)
	}

	return count, nil
}
