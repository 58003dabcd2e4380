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

// Package broadcast fans realtime messages out to the live listeners of a
// workspace.
package broadcast

import (
	"sync"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
)

const defaultBuffer = 64

// Listener receives the messages published to one workspace. Messages is
// closed when the listener is unsubscribed or dropped for falling behind.
type Listener struct {
	id          uint64
	workspaceID string
	ch          chan models.Message
	closed      bool
}

// Messages returns the delivery channel.
func (l *Listener) Messages() <-chan models.Message {
	return l.ch
}

// WorkspaceID returns the workspace the listener is subscribed to.
func (l *Listener) WorkspaceID() string {
	return l.workspaceID
}

// Hub is the Broadcaster. Publish never blocks: a listener whose buffer is
// full is dropped so one dead socket cannot stall the pollers.
type Hub struct {
	mu        sync.Mutex
	listeners map[string]map[uint64]*Listener
	nextID    uint64
	buffer    int
	logger    logger.Logger
}

// NewHub returns a hub giving each listener a buffer of the given size.
func NewHub(buffer int, log logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	return &Hub{
		listeners: make(map[string]map[uint64]*Listener),
		buffer:    buffer,
		logger:    log,
	}
}

// Subscribe registers a listener for workspaceID.
func (h *Hub) Subscribe(workspaceID string) *Listener {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++

	l := &Listener{
		id:          h.nextID,
		workspaceID: workspaceID,
		ch:          make(chan models.Message, h.buffer),
	}

	set, ok := h.listeners[workspaceID]
	if !ok {
		set = make(map[uint64]*Listener)
		h.listeners[workspaceID] = set
	}

	set[l.id] = l

	return l
}

// Unsubscribe removes the listener and closes its channel. Safe to call
// more than once.
func (h *Hub) Unsubscribe(l *Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(l)
}

func (h *Hub) removeLocked(l *Listener) {
	if l.closed {
		return
	}

	l.closed = true
	close(l.ch)

	set := h.listeners[l.workspaceID]
	delete(set, l.id)

	if len(set) == 0 {
		delete(h.listeners, l.workspaceID)
	}
}

// Publish delivers msg to every listener of workspaceID. Messages to one
// workspace are enqueued in call order.
func (h *Hub) Publish(workspaceID string, msg models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.listeners[workspaceID] {
		select {
		case l.ch <- msg:
		default:
			h.logger.Warn().
				Str("workspace_id", workspaceID).
				Uint64("listener", l.id).
				Str("type", msg.Type).
				Msg("Dropping slow realtime listener")
			h.removeLocked(l)
		}
	}
}

// ListenerCount returns the number of listeners of workspaceID.
func (h *Hub) ListenerCount(workspaceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.listeners[workspaceID])
}

// Close drops every listener.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.listeners {
		for _, l := range set {
			h.removeLocked(l)
		}
	}
}
