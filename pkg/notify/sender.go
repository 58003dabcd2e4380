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

package notify

import (
	"context"
	"fmt"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/natsutil"
)

// DefaultSubjectPrefix is the JetStream subject prefix for outbound chat.
const DefaultSubjectPrefix = "routerwatch.notifications"

// NATSSender publishes notifications to JetStream on <prefix>.<kind>, where
// the chat delivery worker picks them up.
type NATSSender struct {
	publisher *natsutil.EventPublisher
	prefix    string
}

// NewNATSSender returns a sender publishing through publisher.
func NewNATSSender(publisher *natsutil.EventPublisher, prefix string) *NATSSender {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &NATSSender{publisher: publisher, prefix: prefix}
}

// Subjects returns the stream subjects this sender needs.
func (s *NATSSender) Subjects() []string {
	return []string{s.prefix + ".*"}
}

func (s *NATSSender) Send(ctx context.Context, n *Notification) error {
	if _, err := s.publisher.Publish(ctx, s.prefix+"."+n.Kind, "routerwatch.notification."+n.Kind, n); err != nil {
		return fmt.Errorf("send %s notification: %w", n.Kind, err)
	}

	return nil
}

// LogSender writes notifications to the log. Used when NATS is not configured.
type LogSender struct {
	logger logger.Logger
}

func NewLogSender(log logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) Send(_ context.Context, n *Notification) error {
	s.logger.Info().
		Str("kind", n.Kind).
		Str("workspace_id", n.WorkspaceID).
		Str("text", n.Text).
		Msg("Notification")

	return nil
}
