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
	"sync"
	"time"
)

// Guard suppresses overlapping and too-frequent cycles per key.
type Guard struct {
	mu         sync.Mutex
	running    map[string]bool
	lastStart  map[string]time.Time
	minSpacing time.Duration
}

// NewGuard returns a Guard that requires minSpacing between cycle starts.
func NewGuard(minSpacing time.Duration) *Guard {
	return &Guard{
		running:    make(map[string]bool),
		lastStart:  make(map[string]time.Time),
		minSpacing: minSpacing,
	}
}

// TryStart marks key running and reports true, or reports false when the
// previous cycle is still running or started less than minSpacing ago.
func (g *Guard) TryStart(key string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running[key] {
		return false
	}

	if last, ok := g.lastStart[key]; ok && now.Sub(last) < g.minSpacing {
		return false
	}

	g.running[key] = true
	g.lastStart[key] = now

	return true
}

// Done returns key to idle.
func (g *Guard) Done(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.running, key)
}

// Running reports whether a cycle for key is in flight.
func (g *Guard) Running(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.running[key]
}

// Forget drops all state for key.
func (g *Guard) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.running, key)
	delete(g.lastStart, key)
}
