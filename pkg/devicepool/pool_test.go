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

package devicepool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/routeros"
)

var (
	testCreds = models.Credentials{Host: "10.0.0.1", Username: "admin", Password: "pw"}

	errRefused = errors.New("connection refused")
)

const groupKey = "group-a"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestAcquireConcurrentColdStartDialsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)

	session := routeros.NewMockSession(ctrl)
	session.EXPECT().Close().Return(nil).Times(1)

	dialer := routeros.NewMockDialer(ctrl)
	dialer.EXPECT().
		Dial(gomock.Any(), testCreds).
		DoAndReturn(func(context.Context, models.Credentials) (routeros.Session, error) {
			time.Sleep(20 * time.Millisecond)

			return session, nil
		}).
		Times(1)

	pool := New(dialer, logger.NewTestLogger())

	const callers = 32

	conns := make([]*Conn, callers)

	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			c, err := pool.Acquire(context.Background(), groupKey, testCreds, 10*time.Minute)
			assert.NoError(t, err)

			conns[i] = c
		}(i)
	}

	wg.Wait()

	for _, c := range conns {
		assert.Same(t, conns[0], c)
	}

	assert.Equal(t, 1, pool.Size())
	assert.Equal(t, callers, conns[0].Subscribers())

	pool.Close()
}

func TestDialLocksArePrunedAfterAcquire(t *testing.T) {
	ctrl := gomock.NewController(t)

	dialer := routeros.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), testCreds).Return(nil, errRefused).Times(3)

	pool := New(dialer, logger.NewTestLogger())

	for _, key := range []string{"group-a", "group-b", "group-c"} {
		_, err := pool.Acquire(context.Background(), key, testCreds, time.Minute)
		require.ErrorIs(t, err, ErrDialFailed)
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	assert.Empty(t, pool.locks, "no dial in flight, no lock kept")
}

func TestAcquireDialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	dialer := routeros.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), testCreds).Return(nil, errRefused)

	pool := New(dialer, logger.NewTestLogger())

	_, err := pool.Acquire(context.Background(), groupKey, testCreds, time.Minute)
	require.ErrorIs(t, err, ErrDialFailed)
	require.ErrorIs(t, err, errRefused)
	assert.Zero(t, pool.Size())
}

func TestDiscardForcesFreshConnection(t *testing.T) {
	ctrl := gomock.NewController(t)

	first := routeros.NewMockSession(ctrl)
	first.EXPECT().Close().Return(nil).Times(1)

	second := routeros.NewMockSession(ctrl)
	second.EXPECT().Close().Return(nil).Times(1)

	dialer := routeros.NewMockDialer(ctrl)
	gomock.InOrder(
		dialer.EXPECT().Dial(gomock.Any(), testCreds).Return(first, nil),
		dialer.EXPECT().Dial(gomock.Any(), testCreds).Return(second, nil),
	)

	pool := New(dialer, logger.NewTestLogger())

	c1, err := pool.Acquire(context.Background(), groupKey, testCreds, time.Minute)
	require.NoError(t, err)

	pool.Discard(c1)
	assert.False(t, c1.Connected())
	assert.Zero(t, pool.Size())

	_, err = c1.Exec([]string{routeros.CmdSystemResource})
	require.ErrorIs(t, err, routeros.ErrNotConnected)

	c2, err := pool.Acquire(context.Background(), groupKey, testCreds, time.Minute)
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	assert.True(t, c2.Connected())

	// a stale failure on the old handle must not tear down its successor
	pool.Discard(c1)
	assert.Equal(t, 1, pool.Size())

	current, ok := pool.Lookup(groupKey)
	require.True(t, ok)
	assert.Same(t, c2, current)

	pool.Close()
}

func TestEvictIgnoresSubscribers(t *testing.T) {
	ctrl := gomock.NewController(t)

	session := routeros.NewMockSession(ctrl)
	session.EXPECT().Close().Return(nil).Times(1)

	dialer := routeros.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), testCreds).Return(session, nil)

	pool := New(dialer, logger.NewTestLogger())

	c, err := pool.Acquire(context.Background(), groupKey, testCreds, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, c.Subscribers())

	pool.Evict(groupKey)

	assert.Zero(t, pool.Size())
	assert.False(t, c.Connected())
}

func TestReapIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := newFakeClock()

	background := routeros.NewMockSession(ctrl)
	background.EXPECT().Close().Return(nil).Times(1)

	interactive := routeros.NewMockSession(ctrl)
	interactive.EXPECT().Close().Return(nil).Times(1)

	other := models.Credentials{Host: "10.0.0.2", Username: "admin", Password: "pw"}

	dialer := routeros.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), testCreds).Return(background, nil)
	dialer.EXPECT().Dial(gomock.Any(), other).Return(interactive, nil)

	pool := New(dialer, logger.NewTestLogger(), WithClock(clock.Now))

	bg, err := pool.Acquire(context.Background(), "bg", testCreds, 10*time.Minute)
	require.NoError(t, err)

	live, err := pool.Acquire(context.Background(), "live", other, 24*time.Hour)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Zero(t, pool.ReapIdle(), "held connections are never reaped")

	pool.Release(bg)
	pool.Release(live)

	clock.Advance(9 * time.Minute)
	assert.Zero(t, pool.ReapIdle())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, pool.ReapIdle())

	_, ok := pool.Lookup("bg")
	assert.False(t, ok)

	_, ok = pool.Lookup("live")
	assert.True(t, ok)

	pool.Close()
	assert.Zero(t, pool.Size())
}

func TestAcquireKeepsLongestIdleClass(t *testing.T) {
	ctrl := gomock.NewController(t)

	session := routeros.NewMockSession(ctrl)
	session.EXPECT().Close().Return(nil).AnyTimes()

	dialer := routeros.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), testCreds).Return(session, nil)

	pool := New(dialer, logger.NewTestLogger())

	c, err := pool.Acquire(context.Background(), groupKey, testCreds, 10*time.Minute)
	require.NoError(t, err)

	_, err = pool.Acquire(context.Background(), groupKey, testCreds, 24*time.Hour)
	require.NoError(t, err)

	_, err = pool.Acquire(context.Background(), groupKey, testCreds, 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, c.IdleTimeout())
	assert.Equal(t, 3, c.Subscribers())

	pool.Close()
}

func TestAcquireAfterClose(t *testing.T) {
	ctrl := gomock.NewController(t)

	pool := New(routeros.NewMockDialer(ctrl), logger.NewTestLogger())
	pool.Close()

	_, err := pool.Acquire(context.Background(), groupKey, testCreds, time.Minute)
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestExecSerializesCalls(t *testing.T) {
	ctrl := gomock.NewController(t)

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)

	session := routeros.NewMockSession(ctrl)
	session.EXPECT().Run(gomock.Any()).DoAndReturn(func([]string) ([]models.Row, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()

		return nil, nil
	}).Times(8)
	session.EXPECT().Close().Return(nil)

	dialer := routeros.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), testCreds).Return(session, nil)

	pool := New(dialer, logger.NewTestLogger())

	c, err := pool.Acquire(context.Background(), groupKey, testCreds, time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := c.Exec([]string{routeros.CmdInterfaces})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	pool.Close()

	assert.Equal(t, 1, maxSeen)
}
