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

// Package devicepool keeps at most one live RouterOS session per physical
// device group and shares it between every poller that needs the device.
package devicepool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/routeros"
)

var (
	ErrPoolClosed = errors.New("devicepool: pool closed")
	ErrDialFailed = errors.New("devicepool: dial failed")
)

// Eviction reasons, used in logs and metrics.
const (
	ReasonIdle           = "idle"
	ReasonConnectionLost = "connection_lost"
	ReasonManual         = "manual"
	ReasonShutdown       = "shutdown"
)

// Pool owns the live connections. The zero value is not usable; use New.
type Pool struct {
	dialer routeros.Dialer
	logger logger.Logger
	now    func() time.Time

	mu     sync.Mutex
	conns  map[string]*Conn
	locks  map[string]*dialLock
	closed bool
}

// dialLock serializes cold-start dials for one group key. It stays in the
// pool's map only while callers hold or wait on it.
type dialLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// New returns an empty pool dialing through dialer.
func New(dialer routeros.Dialer, log logger.Logger, opts ...Option) *Pool {
	p := &Pool{
		dialer: dialer,
		logger: log,
		now:    time.Now,
		conns:  make(map[string]*Conn),
		locks:  make(map[string]*dialLock),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Acquire returns the live connection for groupKey, dialing one if none
// exists. Concurrent callers for the same key share a single dial. Every
// successful Acquire must be paired with Release.
//
// idleTimeout is the idle class of the caller; a connection keeps the
// longest class it has been acquired with.
func (p *Pool) Acquire(ctx context.Context, groupKey string, creds models.Credentials, idleTimeout time.Duration) (*Conn, error) {
	if c, err := p.holdExisting(groupKey, idleTimeout); c != nil || err != nil {
		return c, err
	}

	lock := p.lockGroup(groupKey)
	defer p.unlockGroup(groupKey, lock)

	// another caller may have dialed while we waited
	if c, err := p.holdExisting(groupKey, idleTimeout); c != nil || err != nil {
		return c, err
	}

	session, err := p.dialer.Dial(ctx, creds)
	if err != nil {
		recordDial(ctx, "failure")

		return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, creds.Address(), err)
	}

	recordDial(ctx, "success")

	now := p.now()
	c := &Conn{
		groupKey:    groupKey,
		session:     session,
		createdAt:   now,
		lastUsed:    now,
		idleTimeout: idleTimeout,
		subscribers: 1,
	}
	c.connected.Store(true)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = session.Close()

		return nil, ErrPoolClosed
	}

	p.conns[groupKey] = c
	p.mu.Unlock()

	p.logger.Info().
		Str("group_key", shortKey(groupKey)).
		Str("address", creds.Address()).
		Msg("Opened device connection")

	return c, nil
}

// holdExisting takes a reference on the registered connection if it is
// still connected. A registered but disconnected entry is torn down so the
// caller redials.
func (p *Pool) holdExisting(groupKey string, idleTimeout time.Duration) (*Conn, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()

		return nil, ErrPoolClosed
	}

	c, ok := p.conns[groupKey]
	if !ok {
		p.mu.Unlock()

		return nil, nil
	}

	if !c.Connected() {
		delete(p.conns, groupKey)
		p.mu.Unlock()

		p.teardown(c, ReasonConnectionLost)

		return nil, nil
	}

	c.mu.Lock()
	c.subscribers++
	c.lastUsed = p.now()

	if idleTimeout > c.idleTimeout {
		c.idleTimeout = idleTimeout
	}
	c.mu.Unlock()

	p.mu.Unlock()

	return c, nil
}

func (p *Pool) lockGroup(groupKey string) *dialLock {
	p.mu.Lock()

	lock, ok := p.locks[groupKey]
	if !ok {
		lock = &dialLock{}
		p.locks[groupKey] = lock
	}

	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()

	return lock
}

func (p *Pool) unlockGroup(groupKey string, lock *dialLock) {
	lock.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(p.locks, groupKey)
	}
}

// Release drops one reference taken by Acquire and marks the connection used.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscribers > 0 {
		c.subscribers--
	}

	c.lastUsed = p.now()
}

// Evict tears down the connection for groupKey regardless of how many
// holders it has. The next Acquire dials from scratch.
func (p *Pool) Evict(groupKey string) {
	p.mu.Lock()
	c, ok := p.conns[groupKey]

	if ok {
		delete(p.conns, groupKey)
	}
	p.mu.Unlock()

	if ok {
		p.teardown(c, ReasonManual)
	}
}

// Discard evicts c after a fatal protocol error. It is a no-op when c has
// already been replaced, so a late failure on an old session never tears
// down its successor.
func (p *Pool) Discard(c *Conn) {
	if c == nil {
		return
	}

	c.connected.Store(false)

	p.mu.Lock()
	current, ok := p.conns[c.groupKey]

	if ok && current == c {
		delete(p.conns, c.groupKey)
	}
	p.mu.Unlock()

	if ok && current == c {
		p.teardown(c, ReasonConnectionLost)
	}
}

// ReapIdle closes connections that have no holders and have been unused for
// longer than their idle timeout. It returns the number closed.
func (p *Pool) ReapIdle() int {
	now := p.now()

	var idle []*Conn

	p.mu.Lock()
	for key, c := range p.conns {
		if c.idleSince(now) {
			delete(p.conns, key)
			idle = append(idle, c)
		}
	}
	p.mu.Unlock()

	for _, c := range idle {
		p.teardown(c, ReasonIdle)
	}

	return len(idle)
}

// Close tears down every connection and rejects further acquisitions.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	conns := p.conns
	p.conns = make(map[string]*Conn)
	p.mu.Unlock()

	for _, c := range conns {
		p.teardown(c, ReasonShutdown)
	}
}

// Size returns the number of registered connections.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.conns)
}

// Lookup returns the registered connection for groupKey without taking a reference.
func (p *Pool) Lookup(groupKey string) (*Conn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.conns[groupKey]

	return c, ok
}

func (p *Pool) teardown(c *Conn, reason string) {
	c.connected.Store(false)

	if err := c.session.Close(); err != nil {
		p.logger.Debug().Err(err).Str("group_key", shortKey(c.groupKey)).Msg("Error closing device session")
	}

	recordEviction(context.Background(), reason)

	p.logger.Info().
		Str("group_key", shortKey(c.groupKey)).
		Str("reason", reason).
		Dur("age", p.now().Sub(c.createdAt)).
		Msg("Closed device connection")
}

// shortKey trims a fingerprint for log lines.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}

	return key
}
