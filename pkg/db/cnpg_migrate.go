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
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/ssm/pkg/logger"
)

const cnpgMigrationsTable = "ssm_schema_migrations"

//go:embed cnpg/migrations/*.sql
var cnpgMigrationsFS embed.FS

// RunCNPGMigrations applies every embedded .up.sql file not yet recorded in
// the tracking table, in file-name order.
func RunCNPGMigrations(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) (int, error) {
	if pool == nil {
		return 0, nil
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("cnpg migrations: acquire connection: %w", err)
	}
	defer conn.Release()

	return runMigrations(ctx, conn, cnpgMigrationsFS, log)
}

func runMigrations(ctx context.Context, conn executor, migrations fs.FS, log logger.Logger) (int, error) {
	if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, cnpgMigrationsTable)); err != nil {
		return 0, fmt.Errorf("cnpg migrations: create tracking table: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	filenames, err := pendingFiles(migrations, applied)
	if err != nil {
		return 0, err
	}

	for _, name := range filenames {
		log.Info().Str("migration", name).Msg("Applying CNPG migration")

		content, err := fs.ReadFile(migrations, "cnpg/migrations/"+name)
		if err != nil {
			return 0, fmt.Errorf("cnpg migrations: read %s: %w", name, err)
		}

		for idx, stmt := range splitSQLStatements(string(content)) {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return 0, fmt.Errorf("cnpg migrations: statement %d in %s failed: %w", idx+1, name, err)
			}
		}

		if _, err := conn.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (version) VALUES ($1)`, cnpgMigrationsTable), extractVersion(name)); err != nil {
			return 0, fmt.Errorf("cnpg migrations: record %s: %w", name, err)
		}
	}

	return len(filenames), nil
}

func appliedVersions(ctx context.Context, conn executor) (map[string]struct{}, error) {
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT version FROM %s`, cnpgMigrationsTable))
	if err != nil {
		return nil, fmt.Errorf("cnpg migrations: list applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("cnpg migrations: scan applied version: %w", err)
		}

		applied[version] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cnpg migrations: iterate applied versions: %w", err)
	}

	return applied, nil
}

func pendingFiles(migrations fs.FS, applied map[string]struct{}) ([]string, error) {
	entries, err := fs.ReadDir(migrations, "cnpg/migrations")
	if err != nil {
		return nil, fmt.Errorf("cnpg migrations: read embedded migrations: %w", err)
	}

	filenames := make([]string, 0, len(entries))

	for _, entry := range entries {
		// .down.sql files are for manual rollbacks only
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}

		if _, ok := applied[extractVersion(entry.Name())]; ok {
			continue
		}

		filenames = append(filenames, entry.Name())
	}

	sort.Strings(filenames)

	return filenames, nil
}
