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

package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/routerwatch/pkg/db"
	"github.com/carverauto/routerwatch/pkg/db/memory"
	"github.com/carverauto/routerwatch/pkg/models"
)

var errWriteFailed = errors.New("write failed")

func payload() *models.BatchPayload {
	return &models.BatchPayload{
		Resource:    &models.SystemResource{CPULoad: 12},
		ActiveUsers: []models.ActiveSession{{Name: "alice"}},
		Traffic: map[string]models.TrafficSample{
			"ether1": {RxBitsPerSecond: 10},
		},
		CollectedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWriteTwiceLeavesOneIdenticalRow(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	w := NewWriter(store, nil)
	ref := models.DeviceRef{WorkspaceID: "ws-1", DeviceID: "dev-1"}

	require.NoError(t, w.Write(ctx, ref, payload()))

	first, err := store.GetDashboardSnapshot(ctx, "ws-1", "dev-1")
	require.NoError(t, err)

	require.NoError(t, w.Write(ctx, ref, payload()))

	second, err := store.GetDashboardSnapshot(ctx, "ws-1", "dev-1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.SnapshotCount())
	assert.Equal(t, first, second)
}

func TestWriteReplacesPreviousPayload(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(memory.New(nil), nil)
	ref := models.DeviceRef{WorkspaceID: "ws-1", DeviceID: "dev-1"}

	require.NoError(t, w.Write(ctx, ref, payload()))

	next := payload()
	next.ActiveUsers = nil
	next.Resource = nil
	require.NoError(t, w.Write(ctx, ref, next))

	snap, err := w.Latest(ctx, ref)
	require.NoError(t, err)
	assert.Nil(t, snap.Resource)
	assert.Empty(t, snap.ActiveUsers)
}

func TestLatestFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	ref := models.DeviceRef{WorkspaceID: "ws-1", DeviceID: "dev-1"}

	require.NoError(t, NewWriter(store, nil).Write(ctx, ref, payload()))

	// a fresh writer, as after a restart
	snap, err := NewWriter(store, nil).Latest(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 12, snap.Resource.CPULoad)

	_, err = NewWriter(store, nil).Latest(ctx, models.DeviceRef{WorkspaceID: "ws-1", DeviceID: "nope"})
	require.ErrorIs(t, err, db.ErrSnapshotNotFound)
}

func TestStoreFailureKeepsMemoryCopy(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	ref := models.DeviceRef{WorkspaceID: "ws-1", DeviceID: "dev-1"}

	store.EXPECT().UpsertDashboardSnapshot(gomock.Any(), gomock.Any()).Return(errWriteFailed)

	w := NewWriter(store, nil)
	require.ErrorIs(t, w.Write(context.Background(), ref, payload()), errWriteFailed)

	snap, err := w.Latest(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "ws-1", snap.WorkspaceID)
}
