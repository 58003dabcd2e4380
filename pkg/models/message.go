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

// Realtime message types pushed to workspace listeners.
const (
	MessageBatchUpdate           = "batch-update"
	MessageDowntimeNotification  = "downtime-notification"
	MessageReconnectNotification = "reconnect-notification"
	MessageAlarmNotification     = "alarm-notification"
)

// Message is the envelope delivered to realtime listeners.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// BatchUpdate is the payload of a batch-update message.
type BatchUpdate struct {
	DeviceID string        `json:"device_id"`
	Data     *BatchPayload `json:"data"`
}

// DowntimeUser is one user listed in a disconnect notification.
type DowntimeUser struct {
	PPPoEUser string    `json:"pppoe_user"`
	StartTime time.Time `json:"start_time"`
}

// DowntimeNotification aggregates every user of a workspace that crossed the
// dwell threshold in one disconnect sweep.
type DowntimeNotification struct {
	WorkspaceID string         `json:"workspace_id"`
	Users       []DowntimeUser `json:"users"`
	SentAt      time.Time      `json:"sent_at"`
}

// ReconnectNotification reports a user that came back after a surfaced outage.
type ReconnectNotification struct {
	WorkspaceID     string    `json:"workspace_id"`
	PPPoEUser       string    `json:"pppoe_user"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds int64     `json:"duration"`
}

// Alarm kinds for the cooldown-gated alarm path.
const (
	AlarmHighCPU = "high-cpu"
	AlarmOffline = "device-offline"
)

// AlarmNotification is the payload of an alarm-notification message.
type AlarmNotification struct {
	WorkspaceID string    `json:"workspace_id"`
	DeviceID    string    `json:"device_id"`
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	Value       int       `json:"value,omitempty"`
	RaisedAt    time.Time `json:"raised_at"`
}
