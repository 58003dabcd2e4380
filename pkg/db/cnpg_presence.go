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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/routerwatch/pkg/models"
)

const (
	getUserStatusesSQL = `
SELECT workspace_id, pppoe_user, device_id, is_active, last_seen_active
FROM pppoe_user_status
WHERE workspace_id = $1`

	upsertUserStatusSQL = `
INSERT INTO pppoe_user_status (
	workspace_id, pppoe_user, device_id, is_active, last_seen_active, updated_at
) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (workspace_id, pppoe_user) DO UPDATE SET
	device_id        = EXCLUDED.device_id,
	is_active        = EXCLUDED.is_active,
	last_seen_active = EXCLUDED.last_seen_active,
	updated_at       = EXCLUDED.updated_at`

	downtimeEventColumns = `id, workspace_id, pppoe_user, start_time, end_time, duration_seconds, notification_sent`

	getOpenDowntimeEventsSQL = `
SELECT ` + downtimeEventColumns + `
FROM downtime_events
WHERE workspace_id = $1 AND end_time IS NULL`

	openDowntimeEventSQL = `
INSERT INTO downtime_events (id, workspace_id, pppoe_user, start_time, notification_sent)
VALUES ($1, $2, $3, $4, false)
ON CONFLICT (workspace_id, pppoe_user) WHERE end_time IS NULL DO NOTHING`

	closeDowntimeEventSQL = `
UPDATE downtime_events
SET end_time = $3,
	duration_seconds = GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($3 - start_time))))::bigint
WHERE workspace_id = $1 AND pppoe_user = $2 AND end_time IS NULL
RETURNING ` + downtimeEventColumns

	claimDueDowntimeEventsSQL = `
UPDATE downtime_events
SET notification_sent = true
WHERE end_time IS NULL
	AND notification_sent = false
	AND start_time <= $1
RETURNING ` + downtimeEventColumns
)

// GetUserStatuses returns every known user of the workspace.
func (db *CNPG) GetUserStatuses(ctx context.Context, workspaceID string) ([]*models.UserStatus, error) {
	rows, err := db.pool.Query(ctx, getUserStatusesSQL, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("%w: user statuses: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var statuses []*models.UserStatus

	for rows.Next() {
		var (
			status   models.UserStatus
			lastSeen *time.Time
		)

		if err := rows.Scan(
			&status.WorkspaceID,
			&status.PPPoEUser,
			&status.DeviceID,
			&status.IsActive,
			&lastSeen,
		); err != nil {
			return nil, fmt.Errorf("%w: user status: %w", ErrFailedToScan, err)
		}

		if lastSeen != nil {
			status.LastSeenActive = lastSeen.UTC()
		}

		statuses = append(statuses, &status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate user statuses: %w", ErrFailedToQuery, err)
	}

	return statuses, nil
}

// UpsertUserStatuses writes every status in one batch.
func (db *CNPG) UpsertUserStatuses(ctx context.Context, statuses []*models.UserStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := db.now()

	for _, status := range statuses {
		args, err := buildUserStatusArgs(status, now)
		if err != nil {
			return err
		}

		batch.Queue(upsertUserStatusSQL, args...)
	}

	if _, err := sendBatchExecAll(ctx, batch, db.sendBatch, "user status"); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

func buildUserStatusArgs(status *models.UserStatus, now time.Time) ([]interface{}, error) {
	if status == nil || status.WorkspaceID == "" {
		return nil, ErrWorkspaceIDRequired
	}

	if status.PPPoEUser == "" {
		return nil, ErrPPPoEUserRequired
	}

	var lastSeen interface{}
	if !status.LastSeenActive.IsZero() {
		lastSeen = status.LastSeenActive.UTC()
	}

	return []interface{}{
		status.WorkspaceID,
		status.PPPoEUser,
		status.DeviceID,
		status.IsActive,
		lastSeen,
		now.UTC(),
	}, nil
}

// GetOpenDowntimeEvents returns the events of users currently down.
func (db *CNPG) GetOpenDowntimeEvents(ctx context.Context, workspaceID string) ([]*models.DowntimeEvent, error) {
	return db.queryDowntimeEvents(ctx, "open downtime events", getOpenDowntimeEventsSQL, workspaceID)
}

// OpenDowntimeEvent inserts the event unless one is already open for the
// user. A missing ID is filled with a new UUID.
func (db *CNPG) OpenDowntimeEvent(ctx context.Context, event *models.DowntimeEvent) (bool, error) {
	args, err := buildOpenDowntimeEventArgs(event, db.now())
	if err != nil {
		return false, err
	}

	tag, err := db.pool.Exec(ctx, openDowntimeEventSQL, args...)
	if err != nil {
		return false, fmt.Errorf("%w: open downtime event: %w", ErrFailedToInsert, err)
	}

	return tag.RowsAffected() == 1, nil
}

func buildOpenDowntimeEventArgs(event *models.DowntimeEvent, now time.Time) ([]interface{}, error) {
	if event == nil {
		return nil, ErrDowntimeEventNil
	}

	if event.WorkspaceID == "" {
		return nil, ErrWorkspaceIDRequired
	}

	if event.PPPoEUser == "" {
		return nil, ErrPPPoEUserRequired
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	event.StartTime = sanitizeTimestamp(event.StartTime, now)

	return []interface{}{event.ID, event.WorkspaceID, event.PPPoEUser, event.StartTime}, nil
}

// CloseDowntimeEvent ends the open event of the user at endTime.
func (db *CNPG) CloseDowntimeEvent(
	ctx context.Context,
	workspaceID, pppoeUser string,
	endTime time.Time,
) (*models.DowntimeEvent, error) {
	row := db.pool.QueryRow(ctx, closeDowntimeEventSQL, workspaceID, pppoeUser, sanitizeTimestamp(endTime, db.now()))

	event, err := scanDowntimeEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoOpenEvent
	}

	if err != nil {
		return nil, err
	}

	return event, nil
}

// ClaimDueDowntimeEvents flips notification_sent in the same statement that
// selects the events, so concurrent sweeps never claim the same row.
func (db *CNPG) ClaimDueDowntimeEvents(ctx context.Context, startedBefore time.Time) ([]*models.DowntimeEvent, error) {
	return db.queryDowntimeEvents(ctx, "claim downtime events", claimDueDowntimeEventsSQL, startedBefore.UTC())
}

func (db *CNPG) queryDowntimeEvents(
	ctx context.Context,
	operation, query string,
	args ...interface{},
) ([]*models.DowntimeEvent, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFailedToQuery, operation, err)
	}
	defer rows.Close()

	var events []*models.DowntimeEvent

	for rows.Next() {
		event, err := scanDowntimeEvent(rows)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFailedToQuery, operation, err)
	}

	return events, nil
}

func scanDowntimeEvent(row pgx.Row) (*models.DowntimeEvent, error) {
	var event models.DowntimeEvent

	err := row.Scan(
		&event.ID,
		&event.WorkspaceID,
		&event.PPPoEUser,
		&event.StartTime,
		&event.EndTime,
		&event.DurationSeconds,
		&event.NotificationSent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if err != nil {
		return nil, fmt.Errorf("%w: downtime event: %w", ErrFailedToScan, err)
	}

	event.StartTime = event.StartTime.UTC()

	if event.EndTime != nil {
		end := event.EndTime.UTC()
		event.EndTime = &end
	}

	return &event, nil
}
