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

package models

import "time"

// UserStatus is the persisted connectivity state of one PPPoE user in a workspace.
type UserStatus struct {
	WorkspaceID    string    `json:"workspace_id"`
	PPPoEUser      string    `json:"pppoe_user"`
	DeviceID       string    `json:"device_id"`
	IsActive       bool      `json:"is_active"`
	LastSeenActive time.Time `json:"last_seen_active"`
}

// DowntimeEvent is one continuous period a user was not seen active.
// EndTime is nil while the user is still down.
type DowntimeEvent struct {
	ID               string     `json:"id"`
	WorkspaceID      string     `json:"workspace_id"`
	PPPoEUser        string     `json:"pppoe_user"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	DurationSeconds  *int64     `json:"duration_seconds,omitempty"`
	NotificationSent bool       `json:"notification_sent"`
}

// Open reports whether the event still models a user that is down.
func (e *DowntimeEvent) Open() bool {
	return e.EndTime == nil
}

// Duration returns the recorded duration, or the elapsed time until now for
// an open event.
func (e *DowntimeEvent) Duration(now time.Time) time.Duration {
	if e.DurationSeconds != nil {
		return time.Duration(*e.DurationSeconds) * time.Second
	}

	return now.Sub(e.StartTime)
}
