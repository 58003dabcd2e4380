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
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/routerwatch/pkg/logger"
)

const (
	migrationsTable = "routerwatch_schema_migrations"
	migrationsDir   = "migrations"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunCNPGMigrations applies every embedded .up.sql file that has not been
// recorded in the tracking table, in file name order.
func RunCNPGMigrations(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) error {
	if pool == nil {
		return nil
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("migrations: acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, migrationsTable)); err != nil {
		return fmt.Errorf("migrations: create tracking table: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(migrationsFS, applied)
	if err != nil {
		return err
	}

	for _, name := range pending {
		log.Info().Str("migration", name).Msg("Applying migration")

		content, err := migrationsFS.ReadFile(path.Join(migrationsDir, name))
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}

		for idx, stmt := range splitSQLStatements(string(content)) {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrations: statement %d in %s failed: %w", idx+1, name, err)
			}
		}

		if _, err := conn.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (version) VALUES ($1)`, migrationsTable),
			extractVersion(name),
		); err != nil {
			return fmt.Errorf("migrations: record %s: %w", name, err)
		}
	}

	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("Migrations complete")
	}

	return nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]struct{}, error) {
	rows, err := pool.Query(ctx, fmt.Sprintf(`SELECT version FROM %s`, migrationsTable))
	if err != nil {
		return nil, fmt.Errorf("migrations: list applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("migrations: scan applied version: %w", err)
		}

		applied[version] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("migrations: iterate applied versions: %w", err)
	}

	return applied, nil
}

// pendingMigrations lists .up.sql files under migrations/ whose version is
// not in applied, sorted by name. Down files are for manual rollback only.
func pendingMigrations(fsys fs.FS, applied map[string]struct{}) ([]string, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: read embedded migrations: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}

		if _, ok := applied[extractVersion(entry.Name())]; ok {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	return names, nil
}

func extractVersion(filename string) string {
	version, _, _ := strings.Cut(filename, "_")

	return version
}
