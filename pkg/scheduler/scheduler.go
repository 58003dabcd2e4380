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

// Package scheduler runs the periodic jobs of the service. Each task gets
// its own ticker; a failing or panicking tick is logged with the task name
// and never stops the task or the process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/carverauto/routerwatch/pkg/logger"
)

var (
	errTaskPanicked   = errors.New("task panicked")
	errInvalidTask    = errors.New("scheduler: task needs a name, a positive interval and a run function")
	errAlreadyStarted = errors.New("scheduler: already started")
)

// Task is one periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	// RunOnStart runs the first tick immediately instead of after Interval.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Supervisor owns a fixed set of tasks.
type Supervisor struct {
	clock  Clock
	logger logger.Logger

	mu      sync.Mutex
	tasks   []Task
	started bool

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// New returns a Supervisor with no tasks.
func New(clock Clock, log logger.Logger) *Supervisor {
	if clock == nil {
		clock = RealClock()
	}

	return &Supervisor{
		clock:  clock,
		logger: log,
		done:   make(chan struct{}),
	}
}

// Add registers a task. Tasks must be added before Start.
func (s *Supervisor) Add(task Task) error {
	if task.Name == "" || task.Interval <= 0 || task.Run == nil {
		return fmt.Errorf("%w: %q", errInvalidTask, task.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errAlreadyStarted
	}

	s.tasks = append(s.tasks, task)

	return nil
}

// Start runs every task until ctx is cancelled or Stop is called. It blocks.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()

		return errAlreadyStarted
	}

	s.started = true
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	for _, task := range tasks {
		s.wg.Add(1)

		go func(task Task) {
			defer s.wg.Done()

			s.loop(ctx, task)
		}(task)
	}

	select {
	case <-ctx.Done():
	case <-s.done:
	}

	s.wg.Wait()

	return nil
}

// Stop signals every task loop to exit and waits for in-flight ticks.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	finished := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) loop(ctx context.Context, task Task) {
	ticker := s.clock.Ticker(task.Interval)
	defer ticker.Stop()

	s.logger.Info().Str("task", task.Name).Dur("interval", task.Interval).Msg("Starting periodic task")

	if task.RunOnStart {
		s.tick(ctx, task)
	}

	// Ticks run inline, so a slow tick makes the ticker drop the ones it
	// overlaps instead of stacking them.
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.Chan():
			s.tick(ctx, task)
		}
	}
}

func (s *Supervisor) tick(ctx context.Context, task Task) {
	start := s.clock.Now()

	if err := RunSafely(ctx, task.Run); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}

		s.logger.Error().
			Err(err).
			Str("task", task.Name).
			Dur("elapsed", s.clock.Now().Sub(start)).
			Msg("Periodic task tick failed")
	}
}

// RunSafely calls fn and converts a panic into an error.
func RunSafely(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", errTaskPanicked, r, debug.Stack())
		}
	}()

	return fn(ctx)
}

// Go runs fn in a goroutine with panic recovery, logging any failure with
// name. Used for per-key work fanned out from a tick.
func Go(ctx context.Context, log logger.Logger, name string, wg *sync.WaitGroup, fn func(ctx context.Context) error) {
	if wg != nil {
		wg.Add(1)
	}

	go func() {
		if wg != nil {
			defer wg.Done()
		}

		if err := RunSafely(ctx, fn); err != nil {
			log.Error().Err(err).Str("task", name).Msg("Background job failed")
		}
	}()
}
