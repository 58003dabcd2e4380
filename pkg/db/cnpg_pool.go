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

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
)

const defaultPostgresPort = 5432

// NewCNPGPool dials the configured Postgres cluster and returns a pgx pool.
func NewCNPGPool(ctx context.Context, cfg *models.CNPGDatabase, log logger.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := buildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: cnpg: failed to initialize pool: %w", ErrFailedOpenDB, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: cnpg: ping: %w", ErrFailedOpenDB, err)
	}

	log.Info().
		Str("host", cfg.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connected to Postgres")

	return pool, nil
}

func connectionURL(cfg *models.CNPGDatabase) string {
	port := cfg.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	query := connURL.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	appName := cfg.ApplicationName
	if appName == "" {
		appName = "routerwatch"
	}

	query.Set("application_name", appName)
	connURL.RawQuery = query.Encode()

	return connURL.String()
}

func buildPoolConfig(cfg *models.CNPGDatabase) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(connectionURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("cnpg: failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	if cfg.MinConnections > 0 {
		poolConfig.MinConns = cfg.MinConnections
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime.Std()
	}

	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod.Std()
	}

	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}

	for k, v := range cfg.ExtraRuntimeParams {
		if k == "" {
			continue
		}

		poolConfig.ConnConfig.RuntimeParams[k] = v
	}

	if cfg.StatementTimeout > 0 {
		ms := cfg.StatementTimeout.Std() / time.Millisecond
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(int64(ms), 10)
	}

	tlsConfig, err := buildCNPGTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		poolConfig.ConnConfig.TLSConfig = tlsConfig
	}

	return poolConfig, nil
}

func buildCNPGTLSConfig(cfg *models.CNPGDatabase) (*tls.Config, error) {
	if cfg == nil || cfg.TLS == nil {
		return nil, nil
	}

	resolve := func(path string) string {
		if path == "" || filepath.IsAbs(path) || cfg.CertDir == "" {
			return path
		}

		return filepath.Join(cfg.CertDir, path)
	}

	certFile := resolve(cfg.TLS.CertFile)
	keyFile := resolve(cfg.TLS.KeyFile)
	caFile := resolve(cfg.TLS.CAFile)

	if certFile == "" || keyFile == "" || caFile == "" {
		return nil, ErrCNPGLackingTLSFiles
	}

	clientCert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("cnpg tls: failed to load client keypair: %w", err)
	}

	caBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("cnpg tls: failed to read CA file: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caBytes) {
		return nil, ErrCNPGAppendCACert
	}

	return &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
		ServerName:   cfg.Host,
	}, nil
}
