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

// Package monitor polls devices. The live path reads everything about the
// devices someone is watching; the sweep reads sessions from every device
// group so presence is tracked for all workspaces.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/carverauto/routerwatch/pkg/db"
	"github.com/carverauto/routerwatch/pkg/devicepool"
	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/notify"
	"github.com/carverauto/routerwatch/pkg/presence"
)

var errDepsIncomplete = errors.New("monitor: devices, pool and collector are required")

// Acquirer hands out pooled device connections.
type Acquirer interface {
	Acquire(ctx context.Context, groupKey string, creds models.Credentials, idleTimeout time.Duration) (*devicepool.Conn, error)
	Release(c *devicepool.Conn)
	Discard(c *devicepool.Conn)
}

// PresenceApplier runs the per-workspace session diff.
type PresenceApplier interface {
	Apply(ctx context.Context, workspaceID string, deviceIDs []string, sessions []models.ActiveSession, now time.Time) (*presence.Transitions, error)
}

// SnapshotWriter persists the latest payload per device.
type SnapshotWriter interface {
	Write(ctx context.Context, ref models.DeviceRef, payload *models.BatchPayload) error
}

// AlarmRaiser surfaces cooldown-gated alarms.
type AlarmRaiser interface {
	RaiseAlarm(ctx context.Context, alarm *models.AlarmNotification) bool
}

// Deps are the collaborators shared by the live monitor and the sweeper.
// Publisher, Snapshots, Tracker and Alarms are optional.
type Deps struct {
	Devices   db.DeviceStore
	Pool      Acquirer
	Collector *Collector
	State     *State
	Publisher notify.Publisher
	Snapshots SnapshotWriter
	Tracker   PresenceApplier
	Alarms    AlarmRaiser
	Now       func() time.Time
	Logger    logger.Logger
}

func (d *Deps) validate() error {
	if d.Devices == nil || d.Pool == nil || d.Collector == nil {
		return errDepsIncomplete
	}

	if d.State == nil {
		d.State = d.Collector.state
	}

	if d.Now == nil {
		d.Now = time.Now
	}

	if d.Logger == nil {
		d.Logger = logger.NewTestLogger()
	}

	return nil
}

// applyPresence feeds one shared session list to the tracker of each
// workspace, once per workspace. A degraded list is not applied: an empty
// list caused by a timeout would mark every user down.
func (d *Deps) applyPresence(ctx context.Context, g *models.DeviceGroup, workspaces []string, p *models.BatchPayload) {
	if d.Tracker == nil {
		return
	}

	if p.IsDegraded(models.FieldActiveUsers) {
		d.Logger.Debug().
			Str("group_key", shortKey(g.GroupKey)).
			Msg("Session list unavailable, presence not updated")

		return
	}

	now := d.Now()

	for _, ws := range workspaces {
		ids := deviceIDsIn(g, ws)
		if len(ids) == 0 {
			continue
		}

		if _, err := d.Tracker.Apply(ctx, ws, ids, p.ActiveUsers, now); err != nil {
			d.Logger.Error().
				Err(err).
				Str("workspace_id", ws).
				Str("group_key", shortKey(g.GroupKey)).
				Msg("Failed to apply presence transitions")
		}
	}
}

func deviceIDsIn(g *models.DeviceGroup, workspaceID string) []string {
	var ids []string

	for _, m := range g.Members {
		if m.WorkspaceID == workspaceID {
			ids = append(ids, m.DeviceID)
		}
	}

	return ids
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}

	return key
}
