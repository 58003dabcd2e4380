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
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// LiveSubscriber starts and stops live polling for a device while a
// listener is watching it.
type LiveSubscriber interface {
	Subscribe(ref models.DeviceRef)
	Unsubscribe(ref models.DeviceRef)
}

// Handler upgrades GET /ws?workspace=<id>[&device=<id>] to a websocket and
// streams the workspace's messages as JSON.
type Handler struct {
	hub      *Hub
	live     LiveSubscriber
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewHandler returns a handler. live may be nil. An empty allowedOrigins
// accepts every origin.
func NewHandler(hub *Hub, live LiveSubscriber, allowedOrigins []string, log logger.Logger) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &Handler{
		hub:    hub,
		live:   live,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}

				_, ok := origins[r.Header.Get("Origin")]

				return ok
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace")
	if workspaceID == "" {
		http.Error(w, "workspace is required", http.StatusBadRequest)

		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return
	}
	defer func() { _ = conn.Close() }()

	listener := h.hub.Subscribe(workspaceID)
	defer h.hub.Unsubscribe(listener)

	if deviceID := r.URL.Query().Get("device"); deviceID != "" && h.live != nil {
		ref := models.DeviceRef{WorkspaceID: workspaceID, DeviceID: deviceID}

		h.live.Subscribe(ref)
		defer h.live.Unsubscribe(ref)
	}

	h.logger.Debug().
		Str("remote_addr", r.RemoteAddr).
		Str("workspace_id", workspaceID).
		Msg("Realtime listener connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.readLoop(conn, cancel)

	if err := h.writeLoop(ctx, conn, listener); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug().
			Err(err).
			Str("workspace_id", workspaceID).
			Msg("Realtime listener closed")
	}
}

// readLoop discards client frames and cancels ctx when the peer goes away.
func (h *Handler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Msg("Unexpected WebSocket close")
			}

			return
		}
	}
}

func (*Handler) writeLoop(ctx context.Context, conn *websocket.Conn, listener *Listener) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-listener.Messages():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "listener dropped"),
					time.Now().Add(writeTimeout))

				return nil
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}
