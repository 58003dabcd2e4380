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

package devicepool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/routeros"
)

// Conn is a pooled session. Commands on one Conn are serialized: Exec holds
// the call lock for the whole round trip, including one its caller has
// stopped waiting for, so a late reply is always consumed by the call that
// asked for it.
type Conn struct {
	groupKey  string
	session   routeros.Session
	createdAt time.Time
	connected atomic.Bool

	callMu sync.Mutex

	mu          sync.Mutex
	lastUsed    time.Time
	idleTimeout time.Duration
	subscribers int
}

// GroupKey returns the credential fingerprint the connection serves.
func (c *Conn) GroupKey() string {
	return c.groupKey
}

// Connected reports whether the session is still usable. Callers skip the
// cycle when it is false.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

// Subscribers returns the number of outstanding Acquire references.
func (c *Conn) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.subscribers
}

// IdleTimeout returns the idle class the connection currently holds.
func (c *Conn) IdleTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.idleTimeout
}

// Exec runs one sentence. It blocks while another command is in flight.
func (c *Conn) Exec(args []string) ([]models.Row, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if !c.Connected() {
		return nil, routeros.ErrNotConnected
	}

	return c.session.Run(args)
}

func (c *Conn) idleSince(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.subscribers == 0 && now.Sub(c.lastUsed) > c.idleTimeout
}
