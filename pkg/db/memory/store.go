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

// Package memory is an in-process db.Service used by tests and by
// deployments that run with database.driver = "memory".
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/routerwatch/pkg/db"
	"github.com/carverauto/routerwatch/pkg/models"
)

type userKey struct {
	workspaceID string
	pppoeUser   string
}

type snapshotKey struct {
	workspaceID string
	deviceID    string
}

// Store keeps every table in maps guarded by one mutex. Returned values are
// copies; callers may mutate them freely.
type Store struct {
	mu        sync.Mutex
	devices   []models.Device
	statuses  map[userKey]models.UserStatus
	events    []*models.DowntimeEvent
	open      map[userKey]*models.DowntimeEvent
	snapshots map[snapshotKey]models.DashboardSnapshot
}

var _ db.Service = (*Store)(nil)

// New returns a store seeded with the given registry.
func New(devices []models.Device) *Store {
	s := &Store{
		statuses:  make(map[userKey]models.UserStatus),
		open:      make(map[userKey]*models.DowntimeEvent),
		snapshots: make(map[snapshotKey]models.DashboardSnapshot),
	}

	s.SetDevices(devices)

	return s
}

// SetDevices replaces the registry.
func (s *Store) SetDevices(devices []models.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices = append([]models.Device(nil), devices...)
}

func (s *Store) ListDevices(_ context.Context) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Device, len(s.devices))
	copy(out, s.devices)

	return out, nil
}

func (s *Store) GetUserStatuses(_ context.Context, workspaceID string) ([]*models.UserStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.UserStatus

	for key, status := range s.statuses {
		if key.workspaceID != workspaceID {
			continue
		}

		st := status
		out = append(out, &st)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PPPoEUser < out[j].PPPoEUser })

	return out, nil
}

func (s *Store) UpsertUserStatuses(_ context.Context, statuses []*models.UserStatus) error {
	for _, status := range statuses {
		if status == nil || status.WorkspaceID == "" {
			return db.ErrWorkspaceIDRequired
		}

		if status.PPPoEUser == "" {
			return db.ErrPPPoEUserRequired
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, status := range statuses {
		s.statuses[userKey{status.WorkspaceID, status.PPPoEUser}] = *status
	}

	return nil
}

func (s *Store) GetOpenDowntimeEvents(_ context.Context, workspaceID string) ([]*models.DowntimeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.DowntimeEvent

	for key, event := range s.open {
		if key.workspaceID == workspaceID {
			out = append(out, cloneEvent(event))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PPPoEUser < out[j].PPPoEUser })

	return out, nil
}

func (s *Store) OpenDowntimeEvent(_ context.Context, event *models.DowntimeEvent) (bool, error) {
	if event == nil {
		return false, db.ErrDowntimeEventNil
	}

	if event.WorkspaceID == "" {
		return false, db.ErrWorkspaceIDRequired
	}

	if event.PPPoEUser == "" {
		return false, db.ErrPPPoEUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey{event.WorkspaceID, event.PPPoEUser}
	if _, exists := s.open[key]; exists {
		return false, nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if event.StartTime.IsZero() {
		event.StartTime = time.Now().UTC()
	}

	stored := &models.DowntimeEvent{
		ID:          event.ID,
		WorkspaceID: event.WorkspaceID,
		PPPoEUser:   event.PPPoEUser,
		StartTime:   event.StartTime,
	}

	s.open[key] = stored
	s.events = append(s.events, stored)

	return true, nil
}

func (s *Store) CloseDowntimeEvent(
	_ context.Context,
	workspaceID, pppoeUser string,
	endTime time.Time,
) (*models.DowntimeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey{workspaceID, pppoeUser}

	event, ok := s.open[key]
	if !ok {
		return nil, db.ErrNoOpenEvent
	}

	duration := int64(endTime.Sub(event.StartTime) / time.Second)
	if duration < 0 {
		duration = 0
	}

	end := endTime
	event.EndTime = &end
	event.DurationSeconds = &duration

	delete(s.open, key)

	return cloneEvent(event), nil
}

func (s *Store) ClaimDueDowntimeEvents(_ context.Context, startedBefore time.Time) ([]*models.DowntimeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.DowntimeEvent

	for _, event := range s.open {
		if event.NotificationSent || event.StartTime.After(startedBefore) {
			continue
		}

		event.NotificationSent = true
		out = append(out, cloneEvent(event))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkspaceID != out[j].WorkspaceID {
			return out[i].WorkspaceID < out[j].WorkspaceID
		}

		return out[i].PPPoEUser < out[j].PPPoEUser
	})

	return out, nil
}

func (s *Store) UpsertDashboardSnapshot(_ context.Context, snapshot *models.DashboardSnapshot) error {
	if snapshot == nil {
		return db.ErrSnapshotNil
	}

	if snapshot.WorkspaceID == "" {
		return db.ErrWorkspaceIDRequired
	}

	if snapshot.DeviceID == "" {
		return db.ErrDeviceIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshotKey{snapshot.WorkspaceID, snapshot.DeviceID}] = *snapshot

	return nil
}

func (s *Store) GetDashboardSnapshot(_ context.Context, workspaceID, deviceID string) (*models.DashboardSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.snapshots[snapshotKey{workspaceID, deviceID}]
	if !ok {
		return nil, db.ErrSnapshotNotFound
	}

	return &snapshot, nil
}

// Events returns every downtime event ever opened, oldest first.
func (s *Store) Events() []*models.DowntimeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.DowntimeEvent, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, cloneEvent(event))
	}

	return out
}

// SnapshotCount returns the number of stored snapshot rows.
func (s *Store) SnapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.snapshots)
}

func (*Store) Close() error {
	return nil
}

func cloneEvent(event *models.DowntimeEvent) *models.DowntimeEvent {
	out := *event

	if event.EndTime != nil {
		end := *event.EndTime
		out.EndTime = &end
	}

	if event.DurationSeconds != nil {
		d := *event.DurationSeconds
		out.DurationSeconds = &d
	}

	return &out
}
