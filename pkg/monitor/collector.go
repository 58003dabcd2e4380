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

package monitor

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

const defaultStallLimit = 3

// ErrStalled is returned after several consecutive cycles in which the
// device answered nothing. The connection is discarded so the next cycle
// redials.
var ErrStalled = errors.New("monitor: device stopped answering")

// Runner issues one command with a deadline. Implemented by command.Executor.
type Runner interface {
	Run(ctx context.Context, conn *devicepool.Conn, args []string, timeout time.Duration) ([]models.Row, error)
}

// Discarder drops a connection that can no longer be trusted.
type Discarder interface {
	Discard(c *devicepool.Conn)
}

// Timeouts are the per-command deadlines of a cycle.
type Timeouts struct {
	Resource time.Duration
	Command  time.Duration
	Traffic  time.Duration
}

// Scope selects how much of the device a cycle reads.
type Scope int

const (
	// ScopeFull reads resource, sessions, interfaces and traffic.
	ScopeFull Scope = iota
	// ScopeSessions reads resource and sessions only.
	ScopeSessions
)

func (s Scope) String() string {
	if s == ScopeSessions {
		return "sessions"
	}

	return "full"
}

// Collector runs the command sequence of one monitoring cycle.
type Collector struct {
	runner     Runner
	discarder  Discarder
	state      *State
	timeouts   Timeouts
	stallLimit int
	now        func() time.Time
	logger     logger.Logger
}

// NewCollector returns a Collector. now defaults to time.Now.
func NewCollector(runner Runner, discarder Discarder, state *State, timeouts Timeouts, now func() time.Time, log logger.Logger) *Collector {
	if now == nil {
		now = time.Now
	}

	return &Collector{
		runner:     runner,
		discarder:  discarder,
		state:      state,
		timeouts:   timeouts,
		stallLimit: defaultStallLimit,
		now:        now,
		logger:     log,
	}
}

type step struct {
	field   string
	args    []string
	timeout time.Duration
	apply   func(rows []models.Row)
}

// Collect reads the device behind conn one command at a time.
//
// A timed-out command leaves its field empty and marks it degraded; the
// sequence continues. Connection loss and unclassified errors end the cycle
// with an error. The returned payload is never mutated again and may be
// shared across workspaces.
func (c *Collector) Collect(ctx context.Context, conn *devicepool.Conn, scope Scope) (*models.BatchPayload, error) {
	p := models.NewBatchPayload(c.now())

	steps := []step{
		{
			field:   models.FieldResource,
			args:    routeros.Sentence(routeros.CmdSystemResource),
			timeout: c.timeouts.Resource,
			apply:   func(rows []models.Row) { p.Resource = parseResource(rows) },
		},
		{
			field:   models.FieldActiveUsers,
			args:    routeros.Sentence(routeros.CmdPPPActive),
			timeout: c.timeouts.Command,
			apply:   func(rows []models.Row) { p.ActiveUsers = parseSessions(rows) },
		},
	}

	if scope == ScopeFull {
		steps = append(steps, step{
			field:   models.FieldActiveInterfaces,
			args:    routeros.Sentence(routeros.CmdInterfaces),
			timeout: c.timeouts.Command,
			apply:   func(rows []models.Row) { p.ActiveInterfaces = parseInterfaces(rows) },
		})
	}

	timedOut := 0

	for _, s := range steps {
		rows, err := c.runner.Run(ctx, conn, s.args, s.timeout)
		if err == nil {
			s.apply(rows)

			continue
		}

		if routeros.Classify(err) != routeros.ClassTimeout {
			return nil, err
		}

		timedOut++

		p.MarkDegraded(s.field)

		c.logger.Warn().
			Err(err).
			Str("group_key", conn.GroupKey()).
			Str("command", s.args[0]).
			Stringer("scope", scope).
			Msg("Command timed out, field left empty")
	}

	if c.state.ObserveStall(conn.GroupKey(), timedOut == len(steps)) >= c.stallLimit {
		c.state.ObserveStall(conn.GroupKey(), false)
		c.discarder.Discard(conn)

		return nil, fmt.Errorf("%w: %d cycles without a reply", ErrStalled, c.stallLimit)
	}

	if scope == ScopeFull {
		if err := c.collectTraffic(ctx, conn, p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// collectTraffic samples each interface in turn. After the first timeout the
// channel is still busy with the abandoned call, so the remaining interfaces
// fall back to cached samples instead of queueing behind it.
func (c *Collector) collectTraffic(ctx context.Context, conn *devicepool.Conn, p *models.BatchPayload) error {
	blocked := false

	for _, iface := range p.ActiveInterfaces {
		if blocked {
			c.fallbackTraffic(conn.GroupKey(), iface.Name, p)

			continue
		}

		rows, err := c.runner.Run(ctx, conn, routeros.MonitorTraffic(iface.Name), c.timeouts.Traffic)
		if err != nil {
			if ctx.Err() != nil || routeros.Classify(err) == routeros.ClassConnectionLost {
				return err
			}

			blocked = routeros.Classify(err) == routeros.ClassTimeout

			c.logger.Warn().
				Err(err).
				Str("group_key", conn.GroupKey()).
				Str("interface", iface.Name).
				Msg("Traffic sample failed")

			c.fallbackTraffic(conn.GroupKey(), iface.Name, p)

			continue
		}

		if len(rows) == 0 {
			continue
		}

		sample := parseTraffic(rows[0], c.now())
		p.Traffic[iface.Name] = sample
		c.state.RememberTraffic(conn.GroupKey(), iface.Name, sample)
	}

	return nil
}

func (c *Collector) fallbackTraffic(groupKey, iface string, p *models.BatchPayload) {
	p.MarkDegraded(models.FieldTraffic)

	if last, ok := c.state.LastTraffic(groupKey, iface, c.now()); ok {
		p.Traffic[iface] = last
	}
}

// cycleOutcome labels a finished cycle for metrics.
func cycleOutcome(p *models.BatchPayload) string {
	if len(p.Degraded) > 0 {
		return outcomePartial
	}

	return outcomeOK
}
