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

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/routerwatch/pkg/models"
)

const listDevicesSQL = `
SELECT
	id,
	workspace_id,
	COALESCE(name, ''),
	host,
	COALESCE(port, 0),
	COALESCE(username, ''),
	COALESCE(password, '')
FROM devices
ORDER BY workspace_id, id`

// ListDevices reads the full device registry.
func (db *CNPG) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := db.pool.Query(ctx, listDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	devices := make([]models.Device, 0)

	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}

		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate devices: %w", ErrFailedToQuery, err)
	}

	return devices, nil
}

func scanDevice(row pgx.Row) (models.Device, error) {
	var (
		device models.Device
		port   int32
	)

	if err := row.Scan(
		&device.DeviceID,
		&device.WorkspaceID,
		&device.Name,
		&device.Host,
		&port,
		&device.Username,
		&device.Password,
	); err != nil {
		return models.Device{}, fmt.Errorf("%w: device row: %w", ErrFailedToScan, err)
	}

	device.Port = int(port)

	return device, nil
}
