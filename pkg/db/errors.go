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

package db

import "errors"

var (
	ErrDatabaseError = errors.New("database error")

	ErrFailedToScan   = errors.New("failed to scan")
	ErrFailedToQuery  = errors.New("failed to query")
	ErrFailedToInsert = errors.New("failed to insert")
	ErrFailedOpenDB   = errors.New("failed to open database")

	ErrNoOpenEvent       = errors.New("no open downtime event")
	ErrSnapshotNotFound  = errors.New("dashboard snapshot not found")
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// Validation.

	ErrWorkspaceIDRequired = errors.New("workspace id is required")
	ErrPPPoEUserRequired   = errors.New("pppoe user is required")
	ErrDeviceIDRequired    = errors.New("device id is required")
	ErrSnapshotNil         = errors.New("dashboard snapshot is nil")
	ErrDowntimeEventNil    = errors.New("downtime event is nil")

	// TLS helpers.

	ErrCNPGLackingTLSFiles = errors.New("cnpg tls requires cert_file, key_file, and ca_file")
	ErrCNPGAppendCACert    = errors.New("cnpg tls: unable to append CA certificate")
)
