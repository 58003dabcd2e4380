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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/routerwatch/pkg/db"
	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/scheduler"
)

const (
	DefaultDwellThreshold = 120 * time.Second
	defaultSendTimeout    = 10 * time.Second
	maxInFlightSends      = 16
)

// Dispatcher applies the dwell-time rules to downtime events and the
// cooldown gate to alarms. Realtime messages are published inline; outbound
// delivery runs in the background so Send latency never delays a Publish.
type Dispatcher struct {
	store       db.PresenceStore
	publisher   Publisher
	sender      Sender
	alarms      *AlarmGate
	dwell       time.Duration
	sendTimeout time.Duration
	now         func() time.Time
	logger      logger.Logger

	inflight chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithSendTimeout bounds each outbound Send.
func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// NewDispatcher returns a dispatcher. sender and alarms may be nil.
func NewDispatcher(
	store db.PresenceStore,
	publisher Publisher,
	sender Sender,
	alarms *AlarmGate,
	dwell time.Duration,
	log logger.Logger,
	opts ...Option,
) *Dispatcher {
	if dwell <= 0 {
		dwell = DefaultDwellThreshold
	}

	d := &Dispatcher{
		store:       store,
		publisher:   publisher,
		sender:      sender,
		alarms:      alarms,
		dwell:       dwell,
		sendTimeout: defaultSendTimeout,
		now:         time.Now,
		logger:      log,
		inflight:    make(chan struct{}, maxInFlightSends),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// ShouldNotifyReconnect reports whether a closed event's outage was, or
// would have been, surfaced as a disconnect.
func ShouldNotifyReconnect(event *models.DowntimeEvent, dwell time.Duration) bool {
	if event == nil || event.DurationSeconds == nil {
		return false
	}

	return event.NotificationSent || time.Duration(*event.DurationSeconds)*time.Second >= dwell
}

// SweepDisconnects claims every open event older than the dwell threshold
// and sends one aggregated disconnect notification per workspace. It
// returns the number of events surfaced.
func (d *Dispatcher) SweepDisconnects(ctx context.Context) (int, error) {
	now := d.now()

	due, err := d.store.ClaimDueDowntimeEvents(ctx, now.Add(-d.dwell))
	if err != nil {
		return 0, fmt.Errorf("claim due downtime events: %w", err)
	}

	if len(due) == 0 {
		return 0, nil
	}

	byWorkspace := make(map[string][]models.DowntimeUser)

	for _, ev := range due {
		byWorkspace[ev.WorkspaceID] = append(byWorkspace[ev.WorkspaceID], models.DowntimeUser{
			PPPoEUser: ev.PPPoEUser,
			StartTime: ev.StartTime,
		})
	}

	workspaces := make([]string, 0, len(byWorkspace))
	for ws := range byWorkspace {
		workspaces = append(workspaces, ws)
	}

	sort.Strings(workspaces)

	notifications := make([]*Notification, 0, len(workspaces))

	for _, ws := range workspaces {
		users := byWorkspace[ws]
		sort.Slice(users, func(i, j int) bool { return users[i].PPPoEUser < users[j].PPPoEUser })

		payload := &models.DowntimeNotification{
			WorkspaceID: ws,
			Users:       users,
			SentAt:      now,
		}

		d.publish(ws, models.MessageDowntimeNotification, payload)

		notifications = append(notifications, &Notification{
			Kind:        KindDisconnect,
			WorkspaceID: ws,
			Text:        disconnectText(users, d.dwell),
			Payload:     payload,
			CreatedAt:   now,
		})
	}

	for _, n := range notifications {
		d.deliver(ctx, n)
	}

	d.logger.Info().
		Int("events", len(due)).
		Int("workspaces", len(workspaces)).
		Msg("Surfaced disconnects")

	return len(due), nil
}

// HandleReconnect is called for every closed downtime event.
func (d *Dispatcher) HandleReconnect(ctx context.Context, event *models.DowntimeEvent) {
	if !ShouldNotifyReconnect(event, d.dwell) {
		return
	}

	end := d.now()
	if event.EndTime != nil {
		end = *event.EndTime
	}

	payload := &models.ReconnectNotification{
		WorkspaceID:     event.WorkspaceID,
		PPPoEUser:       event.PPPoEUser,
		StartTime:       event.StartTime,
		EndTime:         end,
		DurationSeconds: *event.DurationSeconds,
	}

	d.publish(event.WorkspaceID, models.MessageReconnectNotification, payload)
	d.deliver(ctx, &Notification{
		Kind:        KindReconnect,
		WorkspaceID: event.WorkspaceID,
		Text: fmt.Sprintf("%s reconnected after %s",
			event.PPPoEUser, (time.Duration(*event.DurationSeconds) * time.Second).String()),
		Payload:   payload,
		CreatedAt: end,
	})
}

// RaiseAlarm surfaces the alarm unless its cooldown is running. It reports
// whether the alarm fired.
func (d *Dispatcher) RaiseAlarm(ctx context.Context, alarm *models.AlarmNotification) bool {
	if d.alarms != nil && !d.alarms.Allow(alarm.WorkspaceID, alarm.Kind) {
		return false
	}

	if alarm.RaisedAt.IsZero() {
		alarm.RaisedAt = d.now()
	}

	d.publish(alarm.WorkspaceID, models.MessageAlarmNotification, alarm)
	d.deliver(ctx, &Notification{
		Kind:        KindAlarm,
		WorkspaceID: alarm.WorkspaceID,
		Text:        alarm.Message,
		Payload:     alarm,
		CreatedAt:   alarm.RaisedAt,
	})

	return true
}

func (d *Dispatcher) publish(workspaceID, msgType string, payload interface{}) {
	if d.publisher == nil {
		return
	}

	d.publisher.Publish(workspaceID, models.Message{Type: msgType, Payload: payload})
}

// Wait blocks until every outbound delivery started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// deliver hands n to the sender in the background. At most maxInFlightSends
// run at once; the rest queue without blocking the caller.
func (d *Dispatcher) deliver(ctx context.Context, n *Notification) {
	if d.sender == nil {
		recordNotification(ctx, n.Kind, "skipped")

		return
	}

	scheduler.Go(context.WithoutCancel(ctx), d.logger, "notify-"+n.Kind, &d.wg, func(ctx context.Context) error {
		d.inflight <- struct{}{}
		defer func() { <-d.inflight }()

		d.send(ctx, n)

		return nil
	})
}

func (d *Dispatcher) send(ctx context.Context, n *Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, n); err != nil {
		recordNotification(ctx, n.Kind, "failed")
		d.logger.Warn().
			Err(err).
			Str("workspace_id", n.WorkspaceID).
			Str("kind", n.Kind).
			Msg("Outbound notification failed")

		return
	}

	recordNotification(ctx, n.Kind, "sent")
}

func disconnectText(users []models.DowntimeUser, dwell time.Duration) string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.PPPoEUser)
	}

	return fmt.Sprintf("%d user(s) offline for more than %s: %s", len(users), dwell, strings.Join(names, ", "))
}
