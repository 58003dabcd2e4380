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

package models

import "time"

// SystemResource is the parsed reply of /system/resource/print.
type SystemResource struct {
	Uptime        string `json:"uptime"`
	Version       string `json:"version"`
	BoardName     string `json:"board_name"`
	Architecture  string `json:"architecture"`
	CPULoad       int    `json:"cpu_load"`
	CPUCount      int    `json:"cpu_count"`
	FreeMemory    uint64 `json:"free_memory"`
	TotalMemory   uint64 `json:"total_memory"`
	FreeHDDSpace  uint64 `json:"free_hdd_space"`
	TotalHDDSpace uint64 `json:"total_hdd_space"`
}

// ActiveSession is one row of /ppp/active/print.
type ActiveSession struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Service  string `json:"service"`
	CallerID string `json:"caller_id"`
	Address  string `json:"address"`
	Uptime   string `json:"uptime"`
	Encoding string `json:"encoding,omitempty"`
}

// NetInterface is one row of /interface/print.
type NetInterface struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	MacAddress string `json:"mac_address,omitempty"`
	MTU        string `json:"mtu,omitempty"`
	Running    bool   `json:"running"`
	Disabled   bool   `json:"disabled"`
	Comment    string `json:"comment,omitempty"`
}

// TrafficSample is one /interface/monitor-traffic reading.
type TrafficSample struct {
	RxBitsPerSecond    uint64    `json:"rx_bits_per_second"`
	TxBitsPerSecond    uint64    `json:"tx_bits_per_second"`
	RxPacketsPerSecond uint64    `json:"rx_packets_per_second"`
	TxPacketsPerSecond uint64    `json:"tx_packets_per_second"`
	SampledAt          time.Time `json:"sampled_at"`
	Stale              bool      `json:"stale,omitempty"`
}

// Payload fields that can be degraded by a failed command.
const (
	FieldResource         = "resource"
	FieldActiveUsers      = "active_users"
	FieldActiveInterfaces = "active_interfaces"
	FieldTraffic          = "traffic"
)

// BatchPayload is everything one monitoring cycle learned about a router.
// It is built once per physical device and shared read-only by every
// workspace in the device group.
type BatchPayload struct {
	Resource         *SystemResource          `json:"resource"`
	ActiveUsers      []ActiveSession          `json:"active_users"`
	ActiveInterfaces []NetInterface           `json:"active_interfaces"`
	Traffic          map[string]TrafficSample `json:"traffic"`
	CollectedAt      time.Time                `json:"collected_at"`
	// Degraded lists fields left empty because their command failed.
	Degraded []string `json:"degraded,omitempty"`
}

// NewBatchPayload returns a payload with empty, non-nil collections.
func NewBatchPayload(collectedAt time.Time) *BatchPayload {
	return &BatchPayload{
		ActiveUsers:      []ActiveSession{},
		ActiveInterfaces: []NetInterface{},
		Traffic:          map[string]TrafficSample{},
		CollectedAt:      collectedAt,
	}
}

// MarkDegraded records that field could not be fetched.
func (p *BatchPayload) MarkDegraded(field string) {
	if p.IsDegraded(field) {
		return
	}

	p.Degraded = append(p.Degraded, field)
}

// IsDegraded reports whether field could not be fetched.
func (p *BatchPayload) IsDegraded(field string) bool {
	for _, f := range p.Degraded {
		if f == field {
			return true
		}
	}

	return false
}

// DashboardSnapshot is the cold-read copy of the latest payload for one
// (workspace, device). It is a cache and never the source of truth.
type DashboardSnapshot struct {
	WorkspaceID      string                   `json:"workspace_id"`
	DeviceID         string                   `json:"device_id"`
	Resource         *SystemResource          `json:"resource"`
	Traffic          map[string]TrafficSample `json:"traffic"`
	ActiveUsers      []ActiveSession          `json:"active_users"`
	ActiveInterfaces []NetInterface           `json:"active_interfaces"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// NewDashboardSnapshot copies a payload into a snapshot row.
func NewDashboardSnapshot(ref DeviceRef, payload *BatchPayload, updatedAt time.Time) *DashboardSnapshot {
	return &DashboardSnapshot{
		WorkspaceID:      ref.WorkspaceID,
		DeviceID:         ref.DeviceID,
		Resource:         payload.Resource,
		Traffic:          payload.Traffic,
		ActiveUsers:      payload.ActiveUsers,
		ActiveInterfaces: payload.ActiveInterfaces,
		UpdatedAt:        updatedAt,
	}
}
