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

// Package app wires configuration, telemetry and the routerwatch server.
package app

import (
	"context"
	"errors"

	"github.com/carverauto/routerwatch/pkg/config"
	"github.com/carverauto/routerwatch/pkg/core"
	"github.com/carverauto/routerwatch/pkg/lifecycle"
	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/version"
)

const serviceName = "routerwatch"

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// Run boots the routerwatch service using the provided options.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg core.Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return err
	}

	if err := lifecycle.InitializeLogger(cfg.Logging); err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger(serviceName+"-main", cfg.Logging)
	if err != nil {
		return err
	}

	if _, metricsErr := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		OTel:           cfg.Logging.OTel,
	}); metricsErr != nil && !errors.Is(metricsErr, logger.ErrOTelMetricsDisabled) {
		return metricsErr
	}

	defer func() {
		if shutdownErr := logger.ShutdownMetrics(context.Background()); shutdownErr != nil {
			mainLogger.Error().Err(shutdownErr).Msg("Error shutting down metrics provider")
		}
	}()

	mainLogger.Info().
		Str("version", version.GetFullVersion()).
		Str("listen_addr", cfg.ListenAddr).
		Str("database_driver", cfg.Database.Driver).
		Bool("outbound_enabled", cfg.OutboundEnabled()).
		Msg("Starting routerwatch")

	serverLogger, err := lifecycle.CreateComponentLogger(serviceName, cfg.Logging)
	if err != nil {
		return err
	}

	server, err := core.NewServer(ctx, &cfg, serverLogger)
	if err != nil {
		return err
	}

	return lifecycle.RunService(ctx, &lifecycle.ServiceOptions{
		ServiceName:     serviceName,
		Service:         server,
		Logger:          mainLogger,
		ShutdownTimeout: cfg.ShutdownTimeout.Std(),
	})
}
