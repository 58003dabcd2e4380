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

// Package notify decides when connectivity changes and alarms are surfaced,
// and hands them to the realtime layer and the outbound chat channel.
package notify

import (
	"context"
	"time"

	"github.com/carverauto/routerwatch/pkg/models"
)

// Notification kinds, also used as the outbound subject suffix.
const (
	KindDisconnect = "disconnect"
	KindReconnect  = "reconnect"
	KindAlarm      = "alarm"
)

// Publisher delivers realtime messages to a workspace's live listeners.
type Publisher interface {
	Publish(workspaceID string, msg models.Message)
}

// Notification is one outbound chat message. Resolving the workspace to a
// chat destination is up to the receiving worker.
type Notification struct {
	Kind        string      `json:"kind"`
	WorkspaceID string      `json:"workspace_id"`
	Text        string      `json:"text"`
	Payload     interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

//go:generate mockgen -destination=mock_notify.go -package=notify github.com/carverauto/routerwatch/pkg/notify Sender

// Sender hands a notification to the outbound channel.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}
