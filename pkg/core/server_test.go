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

package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/notify"
	"github.com/carverauto/routerwatch/pkg/routeros"
)

var errUnreachable = errors.New("dial tcp 10.9.0.1:8728: connect: no route to host")

func testConfig() *Config {
	cfg := &Config{
		ListenAddr: "127.0.0.1:0",
		Database:   &models.CNPGDatabase{Driver: models.DatabaseDriverMemory},
		Devices: []SeedDevice{
			{DeviceID: "dev-a", WorkspaceID: "ws-a", Host: "10.9.0.1", Username: "api", Password: "pw"},
			{DeviceID: "dev-b", WorkspaceID: "ws-b", Host: "10.9.0.1", Username: "api", Password: "pw"},
		},
	}

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return cfg
}

func row(kv ...string) models.Row {
	r := make(models.Row, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		r = append(r, models.Pair{Key: kv[i], Value: kv[i+1]})
	}

	return r
}

// routerSession answers every monitoring command with a fixed healthy reply.
func routerSession(ctrl *gomock.Controller) *routeros.MockSession {
	session := routeros.NewMockSession(ctrl)
	session.EXPECT().Close().Return(nil).AnyTimes()
	session.EXPECT().Run(gomock.Any()).DoAndReturn(func(args []string) ([]models.Row, error) {
		switch args[0] {
		case routeros.CmdSystemResource:
			return []models.Row{row("cpu-load", "7", "board-name", "hEX")}, nil
		case routeros.CmdPPPActive:
			return []models.Row{row(".id", "*1", "name", "alice", "service", "pppoe")}, nil
		case routeros.CmdInterfaces:
			return []models.Row{row(".id", "*1", "name", "ether1", "type", "ether")}, nil
		default:
			return []models.Row{row("rx-bits-per-second", "100", "tx-bits-per-second", "200")}, nil
		}
	}).AnyTimes()

	return session
}

func newTestServer(t *testing.T, dialer routeros.Dialer) *Server {
	t.Helper()

	ctrl := gomock.NewController(t)

	sender := notify.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s, err := NewServer(context.Background(), testConfig(), logger.NewTestLogger(), WithDialer(dialer), WithSender(sender))
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = s.Stop(ctx)
	})

	return s
}

func healthyDialer(t *testing.T) *routeros.MockDialer {
	t.Helper()

	ctrl := gomock.NewController(t)

	dialer := routeros.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(routerSession(ctrl), nil).AnyTimes()

	return dialer
}

func TestNewServerRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewServer(context.Background(), nil, nil)
	require.ErrorIs(t, err, errConfigRequired)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, healthyDialer(t))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health models.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))

	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, models.DatabaseDriverMemory, health.DatabaseDriver)
	assert.False(t, health.OutboundEnabled)
}

func TestSnapshotEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, healthyDialer(t))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	get := func(query string) *http.Response {
		resp, err := http.Get(srv.URL + "/api/snapshot" + query)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		return resp
	}

	assert.Equal(t, http.StatusBadRequest, get("?workspace=ws-a").StatusCode)
	assert.Equal(t, http.StatusNotFound, get("?workspace=ws-a&device=dev-a").StatusCode)

	payload := models.NewBatchPayload(time.Now())
	payload.ActiveUsers = []models.ActiveSession{{Name: "alice"}}
	require.NoError(t, s.snapshots.Write(context.Background(), models.DeviceRef{WorkspaceID: "ws-a", DeviceID: "dev-a"}, payload))

	resp := get("?workspace=ws-a&device=dev-a")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap models.DashboardSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Len(t, snap.ActiveUsers, 1)
	assert.Equal(t, "alice", snap.ActiveUsers[0].Name)
}

func TestSweepTracksPresenceAcrossWorkspaces(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, healthyDialer(t))

	require.NoError(t, s.sweeper.Tick(context.Background()))
	s.sweeper.Wait()

	for _, ws := range []string{"ws-a", "ws-b"} {
		statuses, err := s.store.GetUserStatuses(context.Background(), ws)
		require.NoError(t, err)
		require.Len(t, statuses, 1)
		assert.Equal(t, "alice", statuses[0].PPPoEUser)
	}

	assert.Equal(t, 1, s.Pool().Size(), "both workspaces share one connection")
}

func TestSweepRaisesOfflineAlarmOverRealtime(t *testing.T) {
	t.Parallel()

	dialer := routeros.NewMockDialer(gomock.NewController(t))
	dialer.EXPECT().Dial(gomock.Any(), gomock.Any()).Return(nil, errUnreachable).AnyTimes()

	s := newTestServer(t, dialer)
	listener := s.hub.Subscribe("ws-a")

	require.NoError(t, s.sweeper.Tick(context.Background()))
	s.sweeper.Wait()

	select {
	case msg := <-listener.Messages():
		assert.Equal(t, models.MessageAlarmNotification, msg.Type)

		alarm, ok := msg.Payload.(*models.AlarmNotification)
		require.True(t, ok)
		assert.Equal(t, models.AlarmOffline, alarm.Kind)
		assert.Equal(t, "dev-a", alarm.DeviceID)
	case <-time.After(2 * time.Second):
		t.Fatal("no alarm published")
	}
}

func TestWebsocketListenerReceivesLiveUpdates(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, healthyDialer(t))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?workspace=ws-b&device=dev-b"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
		_ = resp.Body.Close()
	}()

	require.Eventually(t, func() bool {
		return len(s.LiveMonitor().Subscriptions()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.live.Tick(context.Background()))
	s.live.Wait()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg struct {
		Type    string             `json:"type"`
		Payload models.BatchUpdate `json:"payload"`
	}

	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, models.MessageBatchUpdate, msg.Type)
	assert.Equal(t, "dev-b", msg.Payload.DeviceID)
	require.NotNil(t, msg.Payload.Data)
	assert.Contains(t, msg.Payload.Data.Traffic, "ether1")
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, healthyDialer(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx), "second Stop is a no-op")
	assert.Equal(t, 0, s.Pool().Size())
}
