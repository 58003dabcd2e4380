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

// Package db persists user presence, downtime events and dashboard
// snapshots, and reads the device registry.
package db

import (
	"context"
	"time"

	"github.com/carverauto/routerwatch/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/carverauto/routerwatch/pkg/db Service

// DeviceStore reads the device registry. The registry schema is owned by
// the management API.
type DeviceStore interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// PresenceStore holds per-user connectivity state and the downtime log.
//
// At most one downtime event per (workspace, user) may be open; OpenDowntimeEvent
// reports false instead of creating a second one.
type PresenceStore interface {
	GetUserStatuses(ctx context.Context, workspaceID string) ([]*models.UserStatus, error)
	UpsertUserStatuses(ctx context.Context, statuses []*models.UserStatus) error

	GetOpenDowntimeEvents(ctx context.Context, workspaceID string) ([]*models.DowntimeEvent, error)
	OpenDowntimeEvent(ctx context.Context, event *models.DowntimeEvent) (bool, error)
	// CloseDowntimeEvent ends the open event of the user and returns it with
	// the notification flag as of closing. ErrNoOpenEvent when none is open.
	CloseDowntimeEvent(ctx context.Context, workspaceID, pppoeUser string, endTime time.Time) (*models.DowntimeEvent, error)
	// ClaimDueDowntimeEvents marks every open, unnotified event that started
	// at or before startedBefore as notified and returns them. An event is
	// returned by at most one call.
	ClaimDueDowntimeEvents(ctx context.Context, startedBefore time.Time) ([]*models.DowntimeEvent, error)
}

// SnapshotStore holds the latest dashboard payload per (workspace, device).
type SnapshotStore interface {
	UpsertDashboardSnapshot(ctx context.Context, snapshot *models.DashboardSnapshot) error
	GetDashboardSnapshot(ctx context.Context, workspaceID, deviceID string) (*models.DashboardSnapshot, error)
}

// Service is the full persistence surface.
type Service interface {
	DeviceStore
	PresenceStore
	SnapshotStore

	Close() error
}
