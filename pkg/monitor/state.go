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

	"github.com/carverauto/routerwatch/pkg/models"
)

type trafficKey struct {
	groupKey string
	iface    string
}

type cachedResult struct {
	payload   *models.BatchPayload
	fetchedAt time.Time
}

// State is the process-local memory shared by the live and sweep paths:
// the latest full result per device group, the last good traffic sample per
// interface and the CPU streak used by the alarm check. Everything here is
// derivable from the next poll and is lost on restart.
type State struct {
	mu          sync.Mutex
	results     map[string]cachedResult
	traffic     map[trafficKey]models.TrafficSample
	cpuStreak   map[string]int
	stalls      map[string]int
	reuseWindow time.Duration
	trafficTTL  time.Duration
}

// NewState returns an empty State.
func NewState(reuseWindow, trafficTTL time.Duration) *State {
	return &State{
		results:     make(map[string]cachedResult),
		traffic:     make(map[trafficKey]models.TrafficSample),
		cpuStreak:   make(map[string]int),
		stalls:      make(map[string]int),
		reuseWindow: reuseWindow,
		trafficTTL:  trafficTTL,
	}
}

// StoreResult records payload as the latest result for groupKey. The payload
// must not be mutated afterwards.
func (s *State) StoreResult(groupKey string, payload *models.BatchPayload, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[groupKey] = cachedResult{payload: payload, fetchedAt: now}
}

// RecentResult returns the result for groupKey if it was fetched within the
// reuse window.
func (s *State) RecentResult(groupKey string, now time.Time) (*models.BatchPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[groupKey]
	if !ok || now.Sub(r.fetchedAt) >= s.reuseWindow {
		return nil, false
	}

	return r.payload, true
}

// RememberTraffic stores the last good sample of iface.
func (s *State) RememberTraffic(groupKey, iface string, sample models.TrafficSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traffic[trafficKey{groupKey: groupKey, iface: iface}] = sample
}

// LastTraffic returns the last good sample of iface marked stale, if it is
// younger than the sample TTL.
func (s *State) LastTraffic(groupKey, iface string, now time.Time) (models.TrafficSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := trafficKey{groupKey: groupKey, iface: iface}

	sample, ok := s.traffic[k]
	if !ok {
		return models.TrafficSample{}, false
	}

	if now.Sub(sample.SampledAt) >= s.trafficTTL {
		delete(s.traffic, k)

		return models.TrafficSample{}, false
	}

	sample.Stale = true

	return sample, true
}

// ObserveCPU updates the consecutive high-load streak for groupKey and
// returns it.
func (s *State) ObserveCPU(groupKey string, load, threshold int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if load < threshold {
		delete(s.cpuStreak, groupKey)

		return 0
	}

	s.cpuStreak[groupKey]++

	return s.cpuStreak[groupKey]
}

// ObserveStall counts consecutive cycles in which every command timed out.
// A cycle with any answer resets the count.
func (s *State) ObserveStall(groupKey string, stalled bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !stalled {
		delete(s.stalls, groupKey)

		return 0
	}

	s.stalls[groupKey]++

	return s.stalls[groupKey]
}

// Forget drops everything known about groupKey.
func (s *State) Forget(groupKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.results, groupKey)
	delete(s.cpuStreak, groupKey)
	delete(s.stalls, groupKey)

	for k := range s.traffic {
		if k.groupKey == groupKey {
			delete(s.traffic, k)
		}
	}
}
