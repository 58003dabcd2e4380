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

// Package command runs RouterOS sentences on pooled connections with a
// per-call deadline.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/routerwatch/pkg/devicepool"
	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/routeros"
)

var errEmptySentence = errors.New("command: empty sentence")

// Discarder drops a connection after a fatal error.
type Discarder interface {
	Discard(c *devicepool.Conn)
}

// Executor issues commands. It is safe for concurrent use; commands on the
// same connection are serialized by the connection itself.
type Executor struct {
	pool   Discarder
	logger logger.Logger
}

// NewExecutor returns an Executor that reports lost connections to pool.
func NewExecutor(pool Discarder, log logger.Logger) *Executor {
	return &Executor{pool: pool, logger: log}
}

type result struct {
	rows []models.Row
	err  error
}

// Run executes args on conn and waits at most timeout for the reply.
//
// The protocol's "no rows" reply is returned as an empty result with a nil
// error. On timeout the call is abandoned, not cancelled: the connection
// stays busy until the router answers, and that answer is discarded.
// Connection-loss errors evict conn from the pool before returning.
func (e *Executor) Run(ctx context.Context, conn *devicepool.Conn, args []string, timeout time.Duration) ([]models.Row, error) {
	if len(args) == 0 {
		return nil, errEmptySentence
	}

	cmd := args[0]
	start := time.Now()

	rows, err := e.run(ctx, conn, args, timeout)

	class := routeros.Classify(err)
	recordCommand(ctx, cmd, class, time.Since(start))

	switch class {
	case routeros.ClassNone:
		return rows, nil
	case routeros.ClassEmpty:
		return []models.Row{}, nil
	case routeros.ClassConnectionLost:
		e.logger.Warn().
			Err(err).
			Str("group_key", conn.GroupKey()).
			Str("command", cmd).
			Msg("Device connection lost, evicting")

		e.pool.Discard(conn)

		return nil, fmt.Errorf("%s: %w", cmd, err)
	default:
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
}

func (*Executor) run(ctx context.Context, conn *devicepool.Conn, args []string, timeout time.Duration) ([]models.Row, error) {
	if !conn.Connected() {
		return nil, routeros.ErrNotConnected
	}

	done := make(chan result, 1)

	go func() {
		rows, err := conn.Exec(args)
		done <- result{rows: rows, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.rows, r.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", routeros.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
