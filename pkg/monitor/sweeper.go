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
	"sync"
	"time"

	"github.com/carverauto/routerwatch/pkg/devicegroup"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/routeros"
	"github.com/carverauto/routerwatch/pkg/scheduler"
)

// AlarmPolicy configures the alarms raised by the sweep.
type AlarmPolicy struct {
	CPUThreshold        int
	CPUSustainedSamples int
}

// Sweeper polls every registered device group, regardless of listeners, and
// feeds the shared session list to the tracker of each workspace in the
// group.
type Sweeper struct {
	deps        Deps
	guard       *Guard
	idleTimeout time.Duration
	alarms      AlarmPolicy
	wg          sync.WaitGroup
}

// NewSweeper returns a Sweeper. Connections it acquires use the background
// idleTimeout class.
func NewSweeper(deps Deps, guard *Guard, idleTimeout time.Duration, alarms AlarmPolicy) (*Sweeper, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	return &Sweeper{
		deps:        deps,
		guard:       guard,
		idleTimeout: idleTimeout,
		alarms:      alarms,
	}, nil
}

// Tick groups the registry and starts one sweep per group. It does not wait
// for them; a slow group only delays itself.
func (s *Sweeper) Tick(ctx context.Context) error {
	devices, err := s.deps.Devices.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	for _, g := range devicegroup.Group(devices) {
		scheduler.Go(ctx, s.deps.Logger, "sweep:"+shortKey(g.GroupKey), &s.wg, func(ctx context.Context) error {
			s.sweepGroup(ctx, &g)

			return nil
		})
	}

	return nil
}

// Wait blocks until every sweep started by Tick has finished.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) sweepGroup(ctx context.Context, g *models.DeviceGroup) {
	now := s.deps.Now()

	if !s.guard.TryStart(g.GroupKey, now) {
		recordCycle(ctx, pathSweep, outcomeSkipped)

		return
	}
	defer s.guard.Done(g.GroupKey)

	payload, outcome := s.poll(ctx, g, now)
	recordCycle(ctx, pathSweep, outcome)

	if payload == nil {
		return
	}

	s.checkCPU(ctx, g, payload)
	s.deps.applyPresence(ctx, g, g.WorkspaceIDs(), payload)
}

func (s *Sweeper) poll(ctx context.Context, g *models.DeviceGroup, now time.Time) (*models.BatchPayload, string) {
	if p, ok := s.deps.State.RecentResult(g.GroupKey, now); ok {
		return p, outcomeReused
	}

	conn, err := s.deps.Pool.Acquire(ctx, g.GroupKey, g.Credentials, s.idleTimeout)
	if err != nil {
		s.deps.Logger.Warn().
			Err(err).
			Str("group_key", shortKey(g.GroupKey)).
			Msg("Device unreachable")

		s.raiseOffline(ctx, g, err)

		return nil, outcomeOffline
	}
	defer s.deps.Pool.Release(conn)

	if !conn.Connected() {
		s.deps.Pool.Discard(conn)
		s.raiseOffline(ctx, g, routeros.ErrNotConnected)

		return nil, outcomeOffline
	}

	p, err := s.deps.Collector.Collect(ctx, conn, ScopeSessions)
	if err != nil {
		s.deps.Logger.Warn().
			Err(err).
			Str("group_key", shortKey(g.GroupKey)).
			Msg("Sweep cycle failed")

		if errors.Is(err, ErrStalled) || routeros.Classify(err) == routeros.ClassConnectionLost {
			s.raiseOffline(ctx, g, err)
		}

		return nil, outcomeFailed
	}

	if p.IsDegraded(models.FieldActiveUsers) {
		return p, outcomeNoSessions
	}

	return p, cycleOutcome(p)
}

func (s *Sweeper) checkCPU(ctx context.Context, g *models.DeviceGroup, p *models.BatchPayload) {
	if s.deps.Alarms == nil || s.alarms.CPUThreshold <= 0 || p.Resource == nil {
		return
	}

	load := p.Resource.CPULoad

	streak := s.deps.State.ObserveCPU(g.GroupKey, load, s.alarms.CPUThreshold)
	if streak < s.alarms.CPUSustainedSamples {
		return
	}

	for _, ref := range g.Members {
		s.deps.Alarms.RaiseAlarm(ctx, &models.AlarmNotification{
			WorkspaceID: ref.WorkspaceID,
			DeviceID:    ref.DeviceID,
			Kind:        models.AlarmHighCPU,
			Message:     fmt.Sprintf("CPU load on device %s is %d%% for %d consecutive samples", ref.DeviceID, load, streak),
			Value:       load,
		})
	}
}

func (s *Sweeper) raiseOffline(ctx context.Context, g *models.DeviceGroup, cause error) {
	if s.deps.Alarms == nil {
		return
	}

	for _, ref := range g.Members {
		s.deps.Alarms.RaiseAlarm(ctx, &models.AlarmNotification{
			WorkspaceID: ref.WorkspaceID,
			DeviceID:    ref.DeviceID,
			Kind:        models.AlarmOffline,
			Message:     fmt.Sprintf("Device %s is unreachable: %v", ref.DeviceID, cause),
		})
	}
}
