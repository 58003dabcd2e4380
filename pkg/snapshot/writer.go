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

// Package snapshot materializes the latest payload of each device for
// cold reads by dashboards that have not received a realtime update yet.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/routerwatch/pkg/db"
	"github.com/carverauto/routerwatch/pkg/models"
)

// Writer keeps the latest snapshot per (workspace, device) in memory and
// writes it through to the store. Latest serves from memory first.
type Writer struct {
	store db.SnapshotStore
	now   func() time.Time

	mu     sync.RWMutex
	latest map[models.DeviceRef]*models.DashboardSnapshot
}

// NewWriter returns a writer over store. now may be nil.
func NewWriter(store db.SnapshotStore, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}

	return &Writer{
		store:  store,
		now:    now,
		latest: make(map[models.DeviceRef]*models.DashboardSnapshot),
	}
}

// Write replaces the snapshot of ref with payload. The in-memory copy is
// updated even when the store write fails.
func (w *Writer) Write(ctx context.Context, ref models.DeviceRef, payload *models.BatchPayload) error {
	if payload == nil {
		return db.ErrSnapshotNil
	}

	updatedAt := payload.CollectedAt
	if updatedAt.IsZero() {
		updatedAt = w.now()
	}

	snap := models.NewDashboardSnapshot(ref, payload, updatedAt.UTC())

	w.mu.Lock()
	w.latest[ref] = snap
	w.mu.Unlock()

	if err := w.store.UpsertDashboardSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("write snapshot %s: %w", ref, err)
	}

	return nil
}

// Latest returns the newest snapshot of ref, loading it from the store
// after a restart. db.ErrSnapshotNotFound when none exists.
func (w *Writer) Latest(ctx context.Context, ref models.DeviceRef) (*models.DashboardSnapshot, error) {
	w.mu.RLock()
	snap, ok := w.latest[ref]
	w.mu.RUnlock()

	if ok {
		return snap, nil
	}

	snap, err := w.store.GetDashboardSnapshot(ctx, ref.WorkspaceID, ref.DeviceID)
	if err != nil {
		if errors.Is(err, db.ErrSnapshotNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("read snapshot %s: %w", ref, err)
	}

	w.mu.Lock()
	if _, raced := w.latest[ref]; !raced {
		w.latest[ref] = snap
	}
	w.mu.Unlock()

	return snap, nil
}
