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
)

// CleanExpired removes rate-limit windows and leases that have lapsed.
func (db *DB) CleanExpired(ctx context.Context) (int64, error) {
	cutoff := db.now().UTC()

	tables := []string{
		"ssm_rate_limits",
		"ssm_leases",
	}

	var removed int64

	for _, table := range tables {
		query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < $1", table)

		tag, err := db.executor.Exec(ctx, query, cutoff)
		if err != nil {
			return removed, fmt.Errorf("%w %s: %w", ErrFailedToClean, table, err)
		}

		removed += tag.RowsAffected()
	}

	return removed, nil
}
