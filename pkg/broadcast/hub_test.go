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

package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
)

func msg(n int) models.Message {
	return models.Message{Type: models.MessageBatchUpdate, Payload: n}
}

func TestPublishDeliversInOrderToWorkspaceOnly(t *testing.T) {
	hub := NewHub(16, logger.NewTestLogger())

	a := hub.Subscribe("ws-1")
	b := hub.Subscribe("ws-1")
	other := hub.Subscribe("ws-2")

	for i := 0; i < 10; i++ {
		hub.Publish("ws-1", msg(i))
	}

	for _, l := range []*Listener{a, b} {
		for i := 0; i < 10; i++ {
			got := <-l.Messages()
			assert.Equal(t, i, got.Payload)
		}
	}

	assert.Empty(t, other.Messages())
}

func TestSlowListenerIsDroppedWithoutAffectingOthers(t *testing.T) {
	hub := NewHub(2, logger.NewTestLogger())

	slow := hub.Subscribe("ws-1")
	fast := hub.Subscribe("ws-1")

	received := make(chan int, 10)

	go func() {
		for m := range fast.Messages() {
			received <- m.Payload.(int)
		}
	}()

	for i := 0; i < 5; i++ {
		hub.Publish("ws-1", msg(i))

		select {
		case got := <-received:
			assert.Equal(t, i, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("fast listener did not receive message %d", i)
		}
	}

	assert.Equal(t, 1, hub.ListenerCount("ws-1"))

	// slow got its buffer, then its channel was closed
	var drained []int
	for m := range slow.Messages() {
		drained = append(drained, m.Payload.(int))
	}

	assert.Equal(t, []int{0, 1}, drained)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(1, logger.NewTestLogger())
	l := hub.Subscribe("ws-1")

	hub.Unsubscribe(l)
	hub.Unsubscribe(l)
	hub.Publish("ws-1", msg(1))

	_, ok := <-l.Messages()
	assert.False(t, ok)
	assert.Zero(t, hub.ListenerCount("ws-1"))
}

type fakeLive struct {
	mu     sync.Mutex
	active map[models.DeviceRef]int
}

func (f *fakeLive) Subscribe(ref models.DeviceRef) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.active[ref]++
}

func (f *fakeLive) Unsubscribe(ref models.DeviceRef) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.active[ref]--
}

func (f *fakeLive) count(ref models.DeviceRef) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.active[ref]
}

func TestHandlerStreamsWorkspaceMessages(t *testing.T) {
	hub := NewHub(8, logger.NewTestLogger())
	live := &fakeLive{active: make(map[models.DeviceRef]int)}
	srv := httptest.NewServer(NewHandler(hub, live, nil, logger.NewTestLogger()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?workspace=ws-1&device=dev-1"
	ref := models.DeviceRef{WorkspaceID: "ws-1", DeviceID: "dev-1"}

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Eventually(t, func() bool {
		return hub.ListenerCount("ws-1") == 1 && live.count(ref) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Publish("ws-1", models.Message{Type: models.MessageBatchUpdate, Payload: map[string]string{"device_id": "dev-1"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.MessageBatchUpdate, got.Type)
	assert.Equal(t, "dev-1", got.Payload["device_id"])

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return hub.ListenerCount("ws-1") == 0 && live.count(ref) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandlerRequiresWorkspace(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)

	NewHandler(NewHub(1, logger.NewTestLogger()), nil, nil, logger.NewTestLogger()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsUnknownOrigin(t *testing.T) {
	srv := httptest.NewServer(NewHandler(NewHub(1, logger.NewTestLogger()), nil,
		[]string{"https://app.example.com"}, logger.NewTestLogger()))
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/?workspace=ws-1", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
