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
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/routerwatch/pkg/models"
)

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = r.values[i].(string)
		case *bool:
			*d = r.values[i].(bool)
		case *time.Time:
			*d = r.values[i].(time.Time)
		case **time.Time:
			*d, _ = r.values[i].(*time.Time)
		case **int64:
			*d, _ = r.values[i].(*int64)
		case *int32:
			*d = r.values[i].(int32)
		}
	}

	return nil
}

func TestBuildUserStatusArgs(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-time.Minute)

	args, err := buildUserStatusArgs(&models.UserStatus{
		WorkspaceID:    "ws-1",
		PPPoEUser:      "alice",
		DeviceID:       "dev-1",
		IsActive:       true,
		LastSeenActive: seen,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"ws-1", "alice", "dev-1", true, seen, now}, args)

	args, err = buildUserStatusArgs(&models.UserStatus{WorkspaceID: "ws-1", PPPoEUser: "bob"}, now)
	require.NoError(t, err)
	assert.Nil(t, args[4], "zero last_seen_active is stored as NULL")

	_, err = buildUserStatusArgs(&models.UserStatus{PPPoEUser: "bob"}, now)
	require.ErrorIs(t, err, ErrWorkspaceIDRequired)

	_, err = buildUserStatusArgs(&models.UserStatus{WorkspaceID: "ws-1"}, now)
	require.ErrorIs(t, err, ErrPPPoEUserRequired)

	_, err = buildUserStatusArgs(nil, now)
	require.ErrorIs(t, err, ErrWorkspaceIDRequired)
}

func TestBuildOpenDowntimeEventArgsFillsDefaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &models.DowntimeEvent{WorkspaceID: "ws-1", PPPoEUser: "alice"}

	args, err := buildOpenDowntimeEventArgs(event, now)
	require.NoError(t, err)
	require.Len(t, args, 4)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, event.ID, args[0])
	assert.Equal(t, now, event.StartTime)

	_, err = buildOpenDowntimeEventArgs(nil, now)
	require.ErrorIs(t, err, ErrDowntimeEventNil)

	_, err = buildOpenDowntimeEventArgs(&models.DowntimeEvent{PPPoEUser: "a"}, now)
	require.ErrorIs(t, err, ErrWorkspaceIDRequired)

	_, err = buildOpenDowntimeEventArgs(&models.DowntimeEvent{WorkspaceID: "ws"}, now)
	require.ErrorIs(t, err, ErrPPPoEUserRequired)
}

func TestScanDowntimeEvent(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	end := start.Add(200 * time.Second)
	duration := int64(200)

	event, err := scanDowntimeEvent(fakeRow{values: []interface{}{
		"ev-1", "ws-1", "bob", start, &end, &duration, true,
	}})
	require.NoError(t, err)

	assert.Equal(t, time.UTC, event.StartTime.Location())
	require.NotNil(t, event.EndTime)
	assert.True(t, event.EndTime.Equal(end))
	assert.Equal(t, int64(200), *event.DurationSeconds)
	assert.True(t, event.NotificationSent)
	assert.False(t, event.Open())

	_, err = scanDowntimeEvent(fakeRow{err: pgx.ErrNoRows})
	require.ErrorIs(t, err, pgx.ErrNoRows)

	_, err = scanDowntimeEvent(fakeRow{err: errBoom})
	require.ErrorIs(t, err, ErrFailedToScan)
}

func TestScanDevice(t *testing.T) {
	device, err := scanDevice(fakeRow{values: []interface{}{
		"dev-1", "ws-1", "core", "10.0.0.1", int32(8729), "admin", "secret",
	}})
	require.NoError(t, err)

	assert.Equal(t, 8729, device.Port)
	assert.Equal(t, "10.0.0.1", device.Host)
	assert.Equal(t, "secret", device.Password)
}

func TestBuildSnapshotArgs(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	args, err := buildSnapshotArgs(&models.DashboardSnapshot{WorkspaceID: "ws-1", DeviceID: "dev-1"}, now)
	require.NoError(t, err)
	require.Len(t, args, 7)

	assert.Nil(t, args[2])
	assert.JSONEq(t, `{}`, string(args[3].([]byte)))
	assert.JSONEq(t, `[]`, string(args[4].([]byte)))
	assert.JSONEq(t, `[]`, string(args[5].([]byte)))
	assert.Equal(t, now, args[6])

	_, err = buildSnapshotArgs(nil, now)
	require.ErrorIs(t, err, ErrSnapshotNil)

	_, err = buildSnapshotArgs(&models.DashboardSnapshot{WorkspaceID: "ws-1"}, now)
	require.ErrorIs(t, err, ErrDeviceIDRequired)
}

func TestSnapshotColumnsRoundTrip(t *testing.T) {
	in := &models.DashboardSnapshot{
		WorkspaceID: "ws-1",
		DeviceID:    "dev-1",
		Resource:    &models.SystemResource{CPULoad: 42, Version: "7.14"},
		Traffic: map[string]models.TrafficSample{
			"ether1": {RxBitsPerSecond: 1000, TxBitsPerSecond: 2000},
		},
		ActiveUsers:      []models.ActiveSession{{Name: "alice"}},
		ActiveInterfaces: []models.NetInterface{{Name: "ether1", Running: true}},
	}

	args, err := buildSnapshotArgs(in, time.Now())
	require.NoError(t, err)

	out := &models.DashboardSnapshot{}
	require.NoError(t, decodeSnapshotColumns(out,
		args[2].([]byte), args[3].([]byte), args[4].([]byte), args[5].([]byte)))

	assert.Equal(t, in.Resource, out.Resource)
	assert.Equal(t, in.Traffic, out.Traffic)
	assert.Equal(t, in.ActiveUsers, out.ActiveUsers)
	assert.Equal(t, in.ActiveInterfaces, out.ActiveInterfaces)
}

func TestDecodeSnapshotColumnsRejectsGarbage(t *testing.T) {
	err := decodeSnapshotColumns(&models.DashboardSnapshot{}, nil, json.RawMessage(`[`), nil, nil)
	require.ErrorIs(t, err, ErrFailedToScan)
}
