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

package monitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/routerwatch/pkg/devicepool"
	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/presence"
	"github.com/carverauto/routerwatch/pkg/routeros"
)

var (
	routerCreds = models.Credentials{Host: "10.20.0.1", Username: "api", Password: "secret"}
	baseTime    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func row(kv ...string) models.Row {
	r := make(models.Row, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		r = append(r, models.Pair{Key: kv[i], Value: kv[i+1]})
	}

	return r
}

func resourceRows(cpu string) []models.Row {
	return []models.Row{row(
		"uptime", "3d4h", "version", "7.14.2", "board-name", "CCR2004",
		"architecture-name", "arm64", "cpu-load", cpu, "cpu-count", "4",
		"free-memory", "1000", "total-memory", "4000",
	)}
}

func sessionRows(names ...string) []models.Row {
	out := make([]models.Row, 0, len(names))
	for i, n := range names {
		out = append(out, row(".id", "*"+string(rune('A'+i)), "name", n, "service", "pppoe", "address", "100.64.0.1"))
	}

	return out
}

func interfaceRows() []models.Row {
	return []models.Row{
		row(".id", "*1", "name", "ether1", "type", "ether", "running", "true", "disabled", "false"),
		row(".id", "*2", "name", "ether2", "type", "ether", "running", "false", "disabled", "true"),
		row(".id", "*3", "name", "<pppoe-alice>", "type", "pppoe-in", "running", "true", "disabled", "false"),
	}
}

func trafficRows() []models.Row {
	return []models.Row{row(
		"name", "ether1", "rx-bits-per-second", "8000", "tx-bits-per-second", "16000",
		"rx-packets-per-second", "10", "tx-packets-per-second", "20",
	)}
}

func trafficCmd(iface string) string {
	return strings.Join(routeros.MonitorTraffic(iface)[:2], " ")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// newPooledConn dials session through a real pool and returns the held
// connection.
func newPooledConn(t *testing.T, session routeros.Session) (*devicepool.Pool, *devicepool.Conn) {
	t.Helper()

	ctrl := gomock.NewController(t)

	dialer := routeros.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), routerCreds).Return(session, nil).Times(1)

	pool := devicepool.New(dialer, logger.NewTestLogger())

	conn, err := pool.Acquire(context.Background(), "group-1", routerCreds, time.Minute)
	require.NoError(t, err)

	return pool, conn
}

type runResult struct {
	rows []models.Row
	err  error
}

// scriptedRunner answers commands from a table and records what it was asked.
type scriptedRunner struct {
	mu      sync.Mutex
	replies map[string]runResult
	calls   []string
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{replies: make(map[string]runResult)}
}

func (r *scriptedRunner) on(cmd string, rows []models.Row, err error) *scriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.replies[cmd] = runResult{rows: rows, err: err}

	return r
}

func (r *scriptedRunner) Run(_ context.Context, _ *devicepool.Conn, args []string, _ time.Duration) ([]models.Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := args[0]
	if key == routeros.CmdMonitorTraffic {
		key = args[0] + " " + args[1]
	}

	r.calls = append(r.calls, key)

	res, ok := r.replies[key]
	if !ok {
		return []models.Row{}, nil
	}

	return res.rows, res.err
}

func (r *scriptedRunner) count(cmd string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, c := range r.calls {
		if c == cmd {
			n++
		}
	}

	return n
}

type discardRecorder struct {
	mu        sync.Mutex
	discarded []*devicepool.Conn
}

func (d *discardRecorder) Discard(c *devicepool.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.discarded = append(d.discarded, c)
}

type applyCall struct {
	workspaceID string
	deviceIDs   []string
	sessions    []models.ActiveSession
}

type recordingTracker struct {
	mu    sync.Mutex
	calls []applyCall
}

func (r *recordingTracker) Apply(
	_ context.Context,
	workspaceID string,
	deviceIDs []string,
	sessions []models.ActiveSession,
	_ time.Time,
) (*presence.Transitions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, applyCall{workspaceID: workspaceID, deviceIDs: deviceIDs, sessions: sessions})

	return &presence.Transitions{}, nil
}

func (r *recordingTracker) snapshot() []applyCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]applyCall(nil), r.calls...)
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][]models.Message
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{messages: make(map[string][]models.Message)}
}

func (p *recordingPublisher) Publish(workspaceID string, msg models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages[workspaceID] = append(p.messages[workspaceID], msg)
}

func (p *recordingPublisher) messagesFor(workspaceID string) []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]models.Message(nil), p.messages[workspaceID]...)
}

type recordingAlarms struct {
	mu     sync.Mutex
	raised []*models.AlarmNotification
}

func (a *recordingAlarms) RaiseAlarm(_ context.Context, alarm *models.AlarmNotification) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.raised = append(a.raised, alarm)

	return true
}

func (a *recordingAlarms) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.raised))
	for _, al := range a.raised {
		out = append(out, al.Kind)
	}

	return out
}
