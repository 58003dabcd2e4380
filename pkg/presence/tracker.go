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

// Package presence turns the polled PPP session list into per-user status
// changes and downtime events.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/routerwatch/pkg/db"
	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
)

// ReconnectHandler is told about every downtime event the tracker closes.
type ReconnectHandler interface {
	HandleReconnect(ctx context.Context, event *models.DowntimeEvent)
}

// Transitions lists the events a single Apply opened and closed.
type Transitions struct {
	Opened []*models.DowntimeEvent
	Closed []*models.DowntimeEvent
}

// Empty reports whether nothing changed.
func (t *Transitions) Empty() bool {
	return t == nil || (len(t.Opened) == 0 && len(t.Closed) == 0)
}

// Tracker applies session lists to stored user state. Applies for the same
// workspace are serialized so two pollers cannot both open an event.
type Tracker struct {
	store      db.PresenceStore
	reconnects ReconnectHandler
	logger     logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTracker returns a tracker. reconnects may be nil.
func NewTracker(store db.PresenceStore, reconnects ReconnectHandler, log logger.Logger) *Tracker {
	return &Tracker{
		store:      store,
		reconnects: reconnects,
		logger:     log,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (t *Tracker) workspaceLock(workspaceID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[workspaceID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[workspaceID] = lock
	}

	return lock
}

// Apply diffs sessions, the active list of one physical device, against the
// stored state of workspaceID. deviceIDs are the workspace's registry entries
// for that device; only users last seen on one of them can be marked down.
func (t *Tracker) Apply(
	ctx context.Context,
	workspaceID string,
	deviceIDs []string,
	sessions []models.ActiveSession,
	now time.Time,
) (*Transitions, error) {
	result, err := t.apply(ctx, workspaceID, deviceIDs, sessions, now)

	// the workspace lock is released before reconnects go out, so a slow
	// outbound channel never holds up the next Apply
	if t.reconnects != nil && result != nil {
		for _, ev := range result.Closed {
			t.reconnects.HandleReconnect(ctx, ev)
		}
	}

	return result, err
}

func (t *Tracker) apply(
	ctx context.Context,
	workspaceID string,
	deviceIDs []string,
	sessions []models.ActiveSession,
	now time.Time,
) (*Transitions, error) {
	lock := t.workspaceLock(workspaceID)

	lock.Lock()
	defer lock.Unlock()

	statuses, err := t.store.GetUserStatuses(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load user statuses: %w", err)
	}

	openEvents, err := t.store.GetOpenDowntimeEvents(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load open downtime events: %w", err)
	}

	open := make(map[string]*models.DowntimeEvent, len(openEvents))
	for _, ev := range openEvents {
		open[ev.PPPoEUser] = ev
	}

	ownDevices := make(map[string]struct{}, len(deviceIDs))
	for _, id := range deviceIDs {
		ownDevices[id] = struct{}{}
	}

	seenOn := primaryDevice(deviceIDs)
	active := activeNames(sessions)

	var (
		result  Transitions
		updates []*models.UserStatus
		errs    []error
	)

	for _, st := range statuses {
		if !st.IsActive {
			continue
		}

		if _, up := active[st.PPPoEUser]; up {
			continue
		}

		if _, mine := ownDevices[st.DeviceID]; !mine && st.DeviceID != "" {
			continue
		}

		if _, exists := open[st.PPPoEUser]; !exists {
			ev := &models.DowntimeEvent{
				WorkspaceID: workspaceID,
				PPPoEUser:   st.PPPoEUser,
				StartTime:   now,
			}

			created, err := t.store.OpenDowntimeEvent(ctx, ev)
			if err != nil {
				errs = append(errs, fmt.Errorf("open downtime event for %s: %w", st.PPPoEUser, err))

				continue
			}

			if created {
				result.Opened = append(result.Opened, ev)
			}
		}

		down := *st
		down.IsActive = false
		updates = append(updates, &down)
	}

	for _, name := range sortedNames(active) {
		if _, wasDown := open[name]; wasDown {
			closed, err := t.store.CloseDowntimeEvent(ctx, workspaceID, name, now)

			switch {
			case errors.Is(err, db.ErrNoOpenEvent):
			case err != nil:
				errs = append(errs, fmt.Errorf("close downtime event for %s: %w", name, err))
			default:
				result.Closed = append(result.Closed, closed)
			}
		}

		updates = append(updates, &models.UserStatus{
			WorkspaceID:    workspaceID,
			PPPoEUser:      name,
			DeviceID:       seenOn,
			IsActive:       true,
			LastSeenActive: now,
		})
	}

	if err := t.store.UpsertUserStatuses(ctx, updates); err != nil {
		errs = append(errs, fmt.Errorf("upsert user statuses: %w", err))
	}

	if len(result.Opened) > 0 || len(result.Closed) > 0 {
		t.logger.Debug().
			Str("workspace_id", workspaceID).
			Int("opened", len(result.Opened)).
			Int("closed", len(result.Closed)).
			Msg("Presence transitions")
	}

	return &result, errors.Join(errs...)
}

func activeNames(sessions []models.ActiveSession) map[string]struct{} {
	names := make(map[string]struct{}, len(sessions))

	for i := range sessions {
		if sessions[i].Name != "" {
			names[sessions[i].Name] = struct{}{}
		}
	}

	return names
}

func sortedNames(names map[string]struct{}) []string {
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

// primaryDevice picks a stable device id when a workspace registered the
// same router more than once.
func primaryDevice(deviceIDs []string) string {
	if len(deviceIDs) == 0 {
		return ""
	}

	ids := append([]string(nil), deviceIDs...)
	sort.Strings(ids)

	return ids[0]
}
