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

// Package core wires the monitoring core into one service.
package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/routerwatch/pkg/broadcast"
	"github.com/carverauto/routerwatch/pkg/command"
	"github.com/carverauto/routerwatch/pkg/db"
	"github.com/carverauto/routerwatch/pkg/db/memory"
	"github.com/carverauto/routerwatch/pkg/devicepool"
	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/carverauto/routerwatch/pkg/monitor"
	"github.com/carverauto/routerwatch/pkg/natsutil"
	"github.com/carverauto/routerwatch/pkg/notify"
	"github.com/carverauto/routerwatch/pkg/presence"
	"github.com/carverauto/routerwatch/pkg/routeros"
	"github.com/carverauto/routerwatch/pkg/scheduler"
	"github.com/carverauto/routerwatch/pkg/snapshot"
)

const (
	listenerBuffer    = 64
	readHeaderTimeout = 5 * time.Second
	natsDrainTimeout  = 5 * time.Second
)

// Task names, also used in logs.
const (
	TaskLiveMonitor     = "live-monitor"
	TaskDeviceSweep     = "device-sweep"
	TaskDisconnectSweep = "disconnect-sweep"
	TaskPoolReaper      = "pool-reaper"
)

var errConfigRequired = errors.New("core: config is required")

// Server owns every long-lived component and the timers that drive them.
type Server struct {
	config *Config
	logger logger.Logger

	store      db.Service
	pool       *devicepool.Pool
	hub        *broadcast.Hub
	live       *monitor.LiveMonitor
	sweeper    *monitor.Sweeper
	dispatcher *notify.Dispatcher
	alarms     *notify.AlarmGate
	snapshots  *snapshot.Writer
	supervisor *scheduler.Supervisor
	nc         *nats.Conn
	natsClosed chan struct{}

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener

	stopOnce sync.Once
	stopErr  error
}

// Option customizes NewServer, mainly for tests.
type Option func(*serverOptions)

type serverOptions struct {
	store  db.Service
	dialer routeros.Dialer
	sender notify.Sender
	clock  scheduler.Clock
}

// WithStore replaces the configured database.
func WithStore(store db.Service) Option {
	return func(o *serverOptions) { o.store = store }
}

// WithDialer replaces the RouterOS API dialer.
func WithDialer(dialer routeros.Dialer) Option {
	return func(o *serverOptions) { o.dialer = dialer }
}

// WithSender replaces the outbound notification sender.
func WithSender(sender notify.Sender) Option {
	return func(o *serverOptions) { o.sender = sender }
}

// WithClock replaces the scheduler clock.
func WithClock(clock scheduler.Clock) Option {
	return func(o *serverOptions) { o.clock = clock }
}

// NewServer opens the store and outbound channel and builds the monitoring
// core. Nothing polls until Start.
func NewServer(ctx context.Context, cfg *Config, log logger.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	o := &serverOptions{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{config: cfg, logger: log}

	store, err := s.openStore(ctx, o.store)
	if err != nil {
		return nil, err
	}

	s.store = store

	sender, err := s.openSender(ctx, o.sender)
	if err != nil {
		_ = store.Close()

		return nil, err
	}

	if err := s.build(o.dialer, sender, o.clock); err != nil {
		s.closeResources(ctx)

		return nil, err
	}

	return s, nil
}

func (s *Server) component(name string) logger.Logger {
	return logger.New(s.logger.WithComponent(name))
}

func (s *Server) openStore(ctx context.Context, override db.Service) (db.Service, error) {
	if override != nil {
		return override, nil
	}

	if s.config.Database.Driver == models.DatabaseDriverMemory {
		devices := make([]models.Device, 0, len(s.config.Devices))
		for _, d := range s.config.Devices {
			devices = append(devices, d.Device())
		}

		s.logger.Warn().Int("devices", len(devices)).Msg("Using in-memory store; state is lost on restart")

		return memory.New(devices), nil
	}

	store, err := db.NewCNPG(ctx, s.config.Database, s.component("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return store, nil
}

func (s *Server) openSender(ctx context.Context, override notify.Sender) (notify.Sender, error) {
	if override != nil {
		return override, nil
	}

	if !s.config.OutboundEnabled() {
		s.logger.Info().Msg("NATS not configured, notifications are only logged")

		return notify.NewLogSender(s.component("notify")), nil
	}

	natsCfg := s.config.NATS
	natsLog := s.component("nats")

	closed := make(chan struct{})

	nc, err := natsutil.ConnectWithSecurity(ctx, natsCfg.URL, natsCfg.Security, natsLog,
		nats.Name("routerwatch"),
		nats.DrainTimeout(natsDrainTimeout),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	)
	if err != nil {
		return nil, err
	}

	subjects := []string{natsCfg.SubjectPrefix + ".*"}

	publisher, err := natsutil.CreateEventPublisher(ctx, nc, natsCfg.Domain, natsCfg.Stream, subjects, natsLog)
	if err != nil {
		nc.Close()

		return nil, err
	}

	s.nc = nc
	s.natsClosed = closed

	return notify.NewNATSSender(publisher, natsCfg.SubjectPrefix), nil
}

func (s *Server) build(dialer routeros.Dialer, sender notify.Sender, clock scheduler.Clock) error {
	mon := s.config.Monitor
	notif := s.config.Notifications

	if dialer == nil {
		dialer = routeros.NewDialer(mon.DialTimeout.Std())
	}

	s.hub = broadcast.NewHub(listenerBuffer, s.component("broadcast"))
	s.pool = devicepool.New(dialer, s.component("devicepool"))
	s.snapshots = snapshot.NewWriter(s.store, nil)

	s.alarms = notify.NewAlarmGate(map[string]time.Duration{
		models.AlarmHighCPU: notif.CPUAlarmCooldown.Std(),
		models.AlarmOffline: notif.OfflineAlarmCooldown.Std(),
	}, notif.OfflineAlarmCooldown.Std(), nil)

	s.dispatcher = notify.NewDispatcher(
		s.store,
		s.hub,
		sender,
		s.alarms,
		notif.DwellThreshold.Std(),
		s.component("notify"),
		notify.WithSendTimeout(notif.SendTimeout.Std()),
	)

	monitorLog := s.component("monitor")
	state := monitor.NewState(mon.ResultReuseWindow.Std(), mon.TrafficSampleTTL.Std())
	exec := command.NewExecutor(s.pool, s.component("command"))
	timeouts := monitor.Timeouts{
		Resource: mon.ResourceTimeout.Std(),
		Command:  mon.CommandTimeout.Std(),
		Traffic:  mon.TrafficTimeout.Std(),
	}

	deps := monitor.Deps{
		Devices:   s.store,
		Pool:      s.pool,
		Collector: monitor.NewCollector(exec, s.pool, state, timeouts, nil, monitorLog),
		State:     state,
		Publisher: s.hub,
		Snapshots: s.snapshots,
		Tracker:   presence.NewTracker(s.store, s.dispatcher, s.component("presence")),
		Alarms:    s.dispatcher,
		Logger:    monitorLog,
	}

	var err error

	s.live, err = monitor.NewLiveMonitor(deps, monitor.NewGuard(mon.MinSpacing.Std()), mon.InteractiveIdleTimeout.Std())
	if err != nil {
		return err
	}

	s.sweeper, err = monitor.NewSweeper(deps, monitor.NewGuard(mon.MinSpacing.Std()), mon.BackgroundIdleTimeout.Std(), monitor.AlarmPolicy{
		CPUThreshold:        notif.CPUThreshold,
		CPUSustainedSamples: notif.CPUSustainedSamples,
	})
	if err != nil {
		return err
	}

	s.supervisor = scheduler.New(clock, s.component("scheduler"))

	return s.addTasks()
}

func (s *Server) addTasks() error {
	mon := s.config.Monitor

	tasks := []scheduler.Task{
		{Name: TaskLiveMonitor, Interval: mon.LiveInterval.Std(), Run: s.live.Tick},
		{Name: TaskDeviceSweep, Interval: mon.SweepInterval.Std(), RunOnStart: true, Run: s.sweeper.Tick},
		{
			Name:     TaskDisconnectSweep,
			Interval: s.config.Notifications.DisconnectSweepInterval.Std(),
			Run: func(ctx context.Context) error {
				_, err := s.dispatcher.SweepDisconnects(ctx)

				return err
			},
		},
		{Name: TaskPoolReaper, Interval: mon.ReapInterval.Std(), Run: s.reap},
	}

	for _, task := range tasks {
		if err := s.supervisor.Add(task); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) reap(context.Context) error {
	closed := s.pool.ReapIdle()
	pruned := s.alarms.Prune()

	if closed > 0 || pruned > 0 {
		s.logger.Debug().
			Int("connections_closed", closed).
			Int("alarm_keys_pruned", pruned).
			Msg("Reaped idle state")
	}

	return nil
}

// Start serves HTTP and runs the periodic tasks. It blocks until ctx is
// cancelled, Stop is called or the HTTP server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	httpErr := make(chan error, 1)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}

		close(httpErr)
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	supervisorDone := make(chan error, 1)

	go func() {
		supervisorDone <- s.supervisor.Start(ctx)
	}()

	select {
	case err := <-supervisorDone:
		return err
	case err, ok := <-httpErr:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}

		return <-supervisorDone
	}
}

// Addr returns the bound HTTP address once Start is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop halts the timers, waits for in-flight cycles and closes every
// resource. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		var errs []error

		if err := s.supervisor.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}

		s.live.Wait()
		s.sweeper.Wait()
		s.dispatcher.Wait()

		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()

		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown http: %w", err))
			}
		}

		s.closeResources(ctx)

		s.stopErr = errors.Join(errs...)
	})

	return s.stopErr
}

func (s *Server) closeResources(ctx context.Context) {
	if s.hub != nil {
		s.hub.Close()
	}

	if s.pool != nil {
		s.pool.Close()
	}

	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("NATS drain failed")
			s.nc.Close()
		}

		select {
		case <-s.natsClosed:
		case <-ctx.Done():
			s.nc.Close()
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Closing store failed")
		}
	}

	s.logger.Info().Msg("Resources released")
}

// LiveMonitor exposes the live monitor for subscription management.
func (s *Server) LiveMonitor() *monitor.LiveMonitor {
	return s.live
}

// Pool exposes the connection pool.
func (s *Server) Pool() *devicepool.Pool {
	return s.pool
}
