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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/routerwatch/pkg/models"
)

const (
	upsertSnapshotSQL = `
INSERT INTO dashboard_snapshot (
	workspace_id, device_id, resource, traffic, active_users, active_interfaces, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (workspace_id, device_id) DO UPDATE SET
	resource          = EXCLUDED.resource,
	traffic           = EXCLUDED.traffic,
	active_users      = EXCLUDED.active_users,
	active_interfaces = EXCLUDED.active_interfaces,
	updated_at        = EXCLUDED.updated_at`

	getSnapshotSQL = `
SELECT workspace_id, device_id, resource, traffic, active_users, active_interfaces, updated_at
FROM dashboard_snapshot
WHERE workspace_id = $1 AND device_id = $2`
)

// UpsertDashboardSnapshot replaces the stored snapshot for the device.
func (db *CNPG) UpsertDashboardSnapshot(ctx context.Context, snapshot *models.DashboardSnapshot) error {
	args, err := buildSnapshotArgs(snapshot, db.now())
	if err != nil {
		return err
	}

	if _, err := db.pool.Exec(ctx, upsertSnapshotSQL, args...); err != nil {
		return fmt.Errorf("%w: dashboard snapshot: %w", ErrFailedToInsert, err)
	}

	return nil
}

func buildSnapshotArgs(snapshot *models.DashboardSnapshot, now time.Time) ([]interface{}, error) {
	if snapshot == nil {
		return nil, ErrSnapshotNil
	}

	if snapshot.WorkspaceID == "" {
		return nil, ErrWorkspaceIDRequired
	}

	if snapshot.DeviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	var resource interface{}

	if snapshot.Resource != nil {
		raw, err := json.Marshal(snapshot.Resource)
		if err != nil {
			return nil, fmt.Errorf("marshal snapshot resource: %w", err)
		}

		resource = raw
	}

	traffic := snapshot.Traffic
	if traffic == nil {
		traffic = map[string]models.TrafficSample{}
	}

	users := snapshot.ActiveUsers
	if users == nil {
		users = []models.ActiveSession{}
	}

	ifaces := snapshot.ActiveInterfaces
	if ifaces == nil {
		ifaces = []models.NetInterface{}
	}

	trafficJSON, err := json.Marshal(traffic)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot traffic: %w", err)
	}

	usersJSON, err := json.Marshal(users)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot users: %w", err)
	}

	ifacesJSON, err := json.Marshal(ifaces)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot interfaces: %w", err)
	}

	return []interface{}{
		snapshot.WorkspaceID,
		snapshot.DeviceID,
		resource,
		trafficJSON,
		usersJSON,
		ifacesJSON,
		sanitizeTimestamp(snapshot.UpdatedAt, now),
	}, nil
}

// GetDashboardSnapshot returns ErrSnapshotNotFound when the device has
// never been written.
func (db *CNPG) GetDashboardSnapshot(ctx context.Context, workspaceID, deviceID string) (*models.DashboardSnapshot, error) {
	var (
		snapshot                         models.DashboardSnapshot
		resource, traffic, users, ifaces []byte
	)

	err := db.pool.QueryRow(ctx, getSnapshotSQL, workspaceID, deviceID).Scan(
		&snapshot.WorkspaceID,
		&snapshot.DeviceID,
		&resource,
		&traffic,
		&users,
		&ifaces,
		&snapshot.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w: dashboard snapshot: %w", ErrFailedToScan, err)
	}

	if err := decodeSnapshotColumns(&snapshot, resource, traffic, users, ifaces); err != nil {
		return nil, err
	}

	snapshot.UpdatedAt = snapshot.UpdatedAt.UTC()

	return &snapshot, nil
}

func decodeSnapshotColumns(snapshot *models.DashboardSnapshot, resource, traffic, users, ifaces []byte) error {
	if len(resource) > 0 && string(resource) != "null" {
		snapshot.Resource = &models.SystemResource{}
		if err := json.Unmarshal(resource, snapshot.Resource); err != nil {
			return fmt.Errorf("%w: snapshot resource: %w", ErrFailedToScan, err)
		}
	}

	if len(traffic) > 0 {
		if err := json.Unmarshal(traffic, &snapshot.Traffic); err != nil {
			return fmt.Errorf("%w: snapshot traffic: %w", ErrFailedToScan, err)
		}
	}

	if len(users) > 0 {
		if err := json.Unmarshal(users, &snapshot.ActiveUsers); err != nil {
			return fmt.Errorf("%w: snapshot users: %w", ErrFailedToScan, err)
		}
	}

	if len(ifaces) > 0 {
		if err := json.Unmarshal(ifaces, &snapshot.ActiveInterfaces); err != nil {
			return fmt.Errorf("%w: snapshot interfaces: %w", ErrFailedToScan, err)
		}
	}

	return nil
}
