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

import (
	"net"
	"strconv"
)

// DefaultAPIPort is the plain-text RouterOS API port.
const DefaultAPIPort = 8728

// Credentials are the connection parameters of a physical router.
type Credentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-" sensitive:"true"`
}

// Address returns host:port, defaulting to the plain API port.
func (c Credentials) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultAPIPort
	}

	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Device is one registry entry. Several devices in different workspaces may
// point at the same physical router.
type Device struct {
	DeviceID    string `json:"device_id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name,omitempty"`
	Credentials
}

// DeviceRef identifies a device inside a workspace.
type DeviceRef struct {
	WorkspaceID string `json:"workspace_id"`
	DeviceID    string `json:"device_id"`
}

// String returns "workspace/device", used as a map key and in logs.
func (r DeviceRef) String() string {
	return r.WorkspaceID + "/" + r.DeviceID
}

// DeviceGroup is the set of registry entries that share credentials and are
// therefore polled as one physical router. Recomputed on every tick.
type DeviceGroup struct {
	GroupKey    string      `json:"-"`
	Credentials Credentials `json:"-"`
	Members     []DeviceRef `json:"members"`
}

// WorkspaceIDs returns the distinct workspaces of the group in member order.
func (g *DeviceGroup) WorkspaceIDs() []string {
	seen := make(map[string]struct{}, len(g.Members))
	out := make([]string, 0, len(g.Members))

	for _, m := range g.Members {
		if _, ok := seen[m.WorkspaceID]; ok {
			continue
		}

		seen[m.WorkspaceID] = struct{}{}
		out = append(out, m.WorkspaceID)
	}

	return out
}
