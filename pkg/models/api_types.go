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

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	// Error message
	Message string `json:"message" example:"workspace and device are required"`
	// HTTP status code
	Status int `json:"status" example:"400"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status          string `json:"status"`
	Connections     int    `json:"connections"`
	LiveDevices     int    `json:"live_devices"`
	DatabaseDriver  string `json:"database_driver"`
	OutboundEnabled bool   `json:"outbound_enabled"`
}
