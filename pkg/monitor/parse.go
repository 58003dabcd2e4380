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
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/routerwatch/pkg/models"
)

// tunnelTypes are dynamic per-subscriber interfaces. Sampling them would
// cost one round trip per connected user.
//
//nolint:gochecknoglobals // read-only table
var tunnelTypes = map[string]struct{}{
	"pppoe-in":  {},
	"pppoe-out": {},
	"pptp-in":   {},
	"pptp-out":  {},
	"l2tp-in":   {},
	"l2tp-out":  {},
	"ovpn-in":   {},
	"ovpn-out":  {},
	"sstp-in":   {},
	"sstp-out":  {},
}

func parseResource(rows []models.Row) *models.SystemResource {
	if len(rows) == 0 {
		return nil
	}

	r := rows[0]

	return &models.SystemResource{
		Uptime:        r.Get("uptime"),
		Version:       r.Get("version"),
		BoardName:     r.Get("board-name"),
		Architecture:  r.Get("architecture-name"),
		CPULoad:       parseInt(r.Get("cpu-load")),
		CPUCount:      parseInt(r.Get("cpu-count")),
		FreeMemory:    parseUint(r.Get("free-memory")),
		TotalMemory:   parseUint(r.Get("total-memory")),
		FreeHDDSpace:  parseUint(r.Get("free-hdd-space")),
		TotalHDDSpace: parseUint(r.Get("total-hdd-space")),
	}
}

func parseSessions(rows []models.Row) []models.ActiveSession {
	out := make([]models.ActiveSession, 0, len(rows))

	for _, r := range rows {
		name := r.Get("name")
		if name == "" {
			continue
		}

		out = append(out, models.ActiveSession{
			ID:       r.Get(".id"),
			Name:     name,
			Service:  r.Get("service"),
			CallerID: r.Get("caller-id"),
			Address:  r.Get("address"),
			Uptime:   r.Get("uptime"),
			Encoding: r.Get("encoding"),
		})
	}

	return out
}

// parseInterfaces keeps the interfaces worth sampling: administratively
// enabled and not a PPP tunnel.
func parseInterfaces(rows []models.Row) []models.NetInterface {
	out := make([]models.NetInterface, 0, len(rows))

	for _, r := range rows {
		iface := models.NetInterface{
			ID:         r.Get(".id"),
			Name:       r.Get("name"),
			Type:       r.Get("type"),
			MacAddress: r.Get("mac-address"),
			MTU:        firstNonEmpty(r.Get("actual-mtu"), r.Get("mtu")),
			Running:    parseBool(r.Get("running")),
			Disabled:   parseBool(r.Get("disabled")),
			Comment:    r.Get("comment"),
		}

		if !sampleable(iface) {
			continue
		}

		out = append(out, iface)
	}

	return out
}

func sampleable(iface models.NetInterface) bool {
	if iface.Name == "" || iface.Disabled {
		return false
	}

	_, tunnel := tunnelTypes[strings.ToLower(iface.Type)]

	return !tunnel
}

func parseTraffic(r models.Row, sampledAt time.Time) models.TrafficSample {
	return models.TrafficSample{
		RxBitsPerSecond:    parseUint(r.Get("rx-bits-per-second")),
		TxBitsPerSecond:    parseUint(r.Get("tx-bits-per-second")),
		RxPacketsPerSecond: parseUint(r.Get("rx-packets-per-second")),
		TxPacketsPerSecond: parseUint(r.Get("tx-packets-per-second")),
		SampledAt:          sampledAt,
	}
}

// parseInt tolerates the unit suffixes some firmware appends ("12%").
func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimRight(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0
	}

	return n
}

func parseUint(s string) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}

	return n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
