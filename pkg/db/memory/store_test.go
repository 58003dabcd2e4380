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

package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/routerwatch/pkg/db"
	"github.com/carverauto/routerwatch/pkg/models"
)

func TestOpenDowntimeEventAllowsOneOpenPerUser(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := store.OpenDowntimeEvent(ctx, &models.DowntimeEvent{
				WorkspaceID: "ws-1",
				PPPoEUser:   "alice",
				StartTime:   start,
			})
			assert.NoError(t, err)

			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, created)

	open, err := store.GetOpenDowntimeEvents(ctx, "ws-1")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCloseThenReopen(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	ok, err := store.OpenDowntimeEvent(ctx, &models.DowntimeEvent{WorkspaceID: "ws-1", PPPoEUser: "bob", StartTime: start})
	require.NoError(t, err)
	require.True(t, ok)

	closed, err := store.CloseDowntimeEvent(ctx, "ws-1", "bob", start.Add(200*time.Second))
	require.NoError(t, err)
	require.NotNil(t, closed.DurationSeconds)
	assert.Equal(t, int64(200), *closed.DurationSeconds)

	_, err = store.CloseDowntimeEvent(ctx, "ws-1", "bob", start.Add(300*time.Second))
	require.ErrorIs(t, err, db.ErrNoOpenEvent)

	ok, err = store.OpenDowntimeEvent(ctx, &models.DowntimeEvent{WorkspaceID: "ws-1", PPPoEUser: "bob", StartTime: start.Add(400 * time.Second)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, store.Events(), 2)
}

func TestClaimDueDowntimeEventsClaimsOnce(t *testing.T) {
	ctx := context.Background()
	store := New(nil)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, user := range []string{"old", "new"} {
		_, err := store.OpenDowntimeEvent(ctx, &models.DowntimeEvent{
			WorkspaceID: "ws-1",
			PPPoEUser:   user,
			StartTime:   base.Add(time.Duration(i) * 100 * time.Second),
		})
		require.NoError(t, err)
	}

	due, err := store.ClaimDueDowntimeEvents(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "old", due[0].PPPoEUser)
	assert.True(t, due[0].NotificationSent)

	again, err := store.ClaimDueDowntimeEvents(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSnapshotUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := New(nil)

	snap := &models.DashboardSnapshot{
		WorkspaceID: "ws-1",
		DeviceID:    "dev-1",
		ActiveUsers: []models.ActiveSession{{Name: "alice"}},
	}

	require.NoError(t, store.UpsertDashboardSnapshot(ctx, snap))
	require.NoError(t, store.UpsertDashboardSnapshot(ctx, snap))

	assert.Equal(t, 1, store.SnapshotCount())

	got, err := store.GetDashboardSnapshot(ctx, "ws-1", "dev-1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	_, err = store.GetDashboardSnapshot(ctx, "ws-1", "missing")
	require.ErrorIs(t, err, db.ErrSnapshotNotFound)
}

func TestUserStatusesAreScopedByWorkspace(t *testing.T) {
	ctx := context.Background()
	store := New(nil)

	var statuses []*models.UserStatus
	for i := 0; i < 3; i++ {
		statuses = append(statuses, &models.UserStatus{
			WorkspaceID: fmt.Sprintf("ws-%d", i%2),
			PPPoEUser:   fmt.Sprintf("user-%d", i),
			IsActive:    true,
		})
	}

	require.NoError(t, store.UpsertUserStatuses(ctx, statuses))

	got, err := store.GetUserStatuses(ctx, "ws-0")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "user-0", got[0].PPPoEUser)
	assert.Equal(t, "user-2", got[1].PPPoEUser)

	require.ErrorIs(t, store.UpsertUserStatuses(ctx, []*models.UserStatus{{PPPoEUser: "x"}}), db.ErrWorkspaceIDRequired)
}
