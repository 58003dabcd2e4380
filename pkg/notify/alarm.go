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
	"sync"
	"time"
)

type alarmKey struct {
	workspaceID string
	kind        string
}

// AlarmGate suppresses repeats of the same alarm kind for a workspace until
// the kind's cooldown has passed since it last fired.
type AlarmGate struct {
	mu          sync.Mutex
	next        map[alarmKey]time.Time
	cooldowns   map[string]time.Duration
	defaultWait time.Duration
	now         func() time.Time
}

// NewAlarmGate returns a gate with per-kind cooldowns. Kinds without an
// entry use defaultCooldown.
func NewAlarmGate(cooldowns map[string]time.Duration, defaultCooldown time.Duration, now func() time.Time) *AlarmGate {
	if now == nil {
		now = time.Now
	}

	c := make(map[string]time.Duration, len(cooldowns))
	for k, v := range cooldowns {
		c[k] = v
	}

	return &AlarmGate{
		next:        make(map[alarmKey]time.Time),
		cooldowns:   c,
		defaultWait: defaultCooldown,
		now:         now,
	}
}

// Allow reports whether the alarm may fire now and, if so, starts its
// cooldown.
func (g *AlarmGate) Allow(workspaceID, kind string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	key := alarmKey{workspaceID, kind}

	if next, ok := g.next[key]; ok && now.Before(next) {
		return false
	}

	wait, ok := g.cooldowns[kind]
	if !ok {
		wait = g.defaultWait
	}

	g.next[key] = now.Add(wait)

	return true
}

// Prune drops expired entries.
func (g *AlarmGate) Prune() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0

	for key, next := range g.next {
		if !now.Before(next) {
			delete(g.next, key)
			removed++
		}
	}

	return removed
}
