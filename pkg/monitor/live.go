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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/routerwatch/pkg/devicegroup"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/scheduler"
)

// LiveMonitor polls the devices that have at least one live listener.
type LiveMonitor struct {
	deps        Deps
	guard       *Guard
	idleTimeout time.Duration

	mu   sync.Mutex
	subs map[models.DeviceRef]int

	wg sync.WaitGroup
}

// NewLiveMonitor returns a LiveMonitor. Connections it acquires use the
// interactive idleTimeout class.
func NewLiveMonitor(deps Deps, guard *Guard, idleTimeout time.Duration) (*LiveMonitor, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	return &LiveMonitor{
		deps:        deps,
		guard:       guard,
		idleTimeout: idleTimeout,
		subs:        make(map[models.DeviceRef]int),
	}, nil
}

// Subscribe starts live polling of ref. Calls are counted; polling stops when
// every Subscribe has been matched by Unsubscribe.
func (m *LiveMonitor) Subscribe(ref models.DeviceRef) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs[ref]++

	if m.subs[ref] == 1 {
		m.deps.Logger.Info().
			Str("workspace_id", ref.WorkspaceID).
			Str("device_id", ref.DeviceID).
			Msg("Live monitoring started")
	}
}

// Unsubscribe drops one subscription of ref.
func (m *LiveMonitor) Unsubscribe(ref models.DeviceRef) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.subs[ref]
	if !ok {
		return
	}

	if n > 1 {
		m.subs[ref] = n - 1

		return
	}

	delete(m.subs, ref)
	m.guard.Forget(ref.String())

	m.deps.Logger.Info().
		Str("workspace_id", ref.WorkspaceID).
		Str("device_id", ref.DeviceID).
		Msg("Live monitoring stopped")
}

// Subscriptions returns the watched keys in a stable order.
func (m *LiveMonitor) Subscriptions() []models.DeviceRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.DeviceRef, 0, len(m.subs))
	for ref := range m.subs {
		out = append(out, ref)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out
}

// Tick starts one cycle per device group that has watched keys and returns
// without waiting for them. Keys whose previous cycle is still running are
// skipped by the guard.
func (m *LiveMonitor) Tick(ctx context.Context) error {
	refs := m.Subscriptions()
	if len(refs) == 0 {
		return nil
	}

	devices, err := m.deps.Devices.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	groups := devicegroup.Group(devices)
	watched := make(map[string][]models.DeviceRef)
	byKey := make(map[string]models.DeviceGroup)

	for _, ref := range refs {
		g, ok := devicegroup.Find(groups, ref)
		// The subscription count belongs to the viewers; an unregistered
		// device is skipped for this tick and resumes once it is back.
		if !ok {
			m.deps.Logger.Debug().
				Str("workspace_id", ref.WorkspaceID).
				Str("device_id", ref.DeviceID).
				Msg("Watched device is not registered, skipping tick")

			continue
		}

		watched[g.GroupKey] = append(watched[g.GroupKey], ref)
		byKey[g.GroupKey] = g
	}

	for key, members := range watched {
		g := byKey[key]

		scheduler.Go(ctx, m.deps.Logger, "live:"+shortKey(key), &m.wg, func(ctx context.Context) error {
			return m.runGroup(ctx, &g, members)
		})
	}

	return nil
}

// Wait blocks until every cycle started by Tick has finished.
func (m *LiveMonitor) Wait() {
	m.wg.Wait()
}

func (m *LiveMonitor) runGroup(ctx context.Context, g *models.DeviceGroup, refs []models.DeviceRef) error {
	now := m.deps.Now()

	started := make([]models.DeviceRef, 0, len(refs))

	for _, ref := range refs {
		if m.guard.TryStart(ref.String(), now) {
			started = append(started, ref)
		}
	}

	defer func() {
		for _, ref := range started {
			m.guard.Done(ref.String())
		}
	}()

	if len(started) == 0 {
		recordCycle(ctx, pathLive, outcomeSkipped)

		return nil
	}

	payload, outcome, err := m.poll(ctx, g, now)
	recordCycle(ctx, pathLive, outcome)

	if err != nil {
		m.deps.Logger.Warn().
			Err(err).
			Str("group_key", shortKey(g.GroupKey)).
			Msg("Live cycle failed")

		return nil
	}

	if payload == nil {
		return nil
	}

	workspaces := make([]string, 0, len(started))
	seen := make(map[string]struct{}, len(started))

	for _, ref := range started {
		if m.deps.Publisher != nil {
			m.deps.Publisher.Publish(ref.WorkspaceID, models.Message{
				Type:    models.MessageBatchUpdate,
				Payload: models.BatchUpdate{DeviceID: ref.DeviceID, Data: payload},
			})
		}

		if m.deps.Snapshots != nil {
			if err := m.deps.Snapshots.Write(ctx, ref, payload); err != nil {
				m.deps.Logger.Error().
					Err(err).
					Str("workspace_id", ref.WorkspaceID).
					Str("device_id", ref.DeviceID).
					Msg("Failed to write dashboard snapshot")
			}
		}

		if _, ok := seen[ref.WorkspaceID]; !ok {
			seen[ref.WorkspaceID] = struct{}{}
			workspaces = append(workspaces, ref.WorkspaceID)
		}
	}

	m.deps.applyPresence(ctx, g, workspaces, payload)

	return nil
}

// poll returns a fresh or recently fetched full result for the group. A nil
// payload with a nil error means the cycle was abandoned.
func (m *LiveMonitor) poll(ctx context.Context, g *models.DeviceGroup, now time.Time) (*models.BatchPayload, string, error) {
	if p, ok := m.deps.State.RecentResult(g.GroupKey, now); ok {
		return p, outcomeReused, nil
	}

	conn, err := m.deps.Pool.Acquire(ctx, g.GroupKey, g.Credentials, m.idleTimeout)
	if err != nil {
		return nil, outcomeOffline, fmt.Errorf("acquire: %w", err)
	}
	defer m.deps.Pool.Release(conn)

	if !conn.Connected() {
		m.deps.Pool.Discard(conn)

		return nil, outcomeOffline, nil
	}

	p, err := m.deps.Collector.Collect(ctx, conn, ScopeFull)
	if err != nil {
		return nil, outcomeFailed, err
	}

	m.deps.State.StoreResult(g.GroupKey, p, now)

	return p, cycleOutcome(p), nil
}
