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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
)

// CNPG is the Postgres-backed Service.
type CNPG struct {
	pool *pgxpool.Pool
	log  logger.Logger
	now  func() time.Time
}

var _ Service = (*CNPG)(nil)

// NewCNPG connects to Postgres and applies pending migrations unless
// cfg.SkipMigrations is set.
func NewCNPG(ctx context.Context, cfg *models.CNPGDatabase, log logger.Logger) (*CNPG, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: database config is nil", ErrFailedOpenDB)
	}

	pool, err := NewCNPGPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipMigrations {
		if err := RunCNPGMigrations(ctx, pool, log); err != nil {
			pool.Close()

			return nil, err
		}
	}

	return &CNPG{
		pool: pool,
		log:  log,
		now:  nowUTC,
	}, nil
}

// Close releases every pooled Postgres connection.
func (db *CNPG) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}

	return nil
}

func (db *CNPG) sendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults {
	return db.pool.SendBatch(ctx, batch)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func sanitizeTimestamp(ts, fallback time.Time) time.Time {
	if ts.IsZero() {
		return fallback.UTC()
	}

	return ts.UTC()
}
