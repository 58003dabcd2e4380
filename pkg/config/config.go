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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/carverauto/routerwatch/pkg/logger"
	"github.com/carverauto/routerwatch/pkg/models"
	"github.com/rs/zerolog"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"

	// DefaultEnvPrefix is used when CONFIG_ENV_PREFIX is unset.
	DefaultEnvPrefix = "ROUTERWATCH_"
)

// Config holds the configuration loading dependencies.
type Config struct {
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// NewConfig initializes a new Config instance with a default file loader.
// If log is nil a warn-level stderr logger is used, since the service logger
// is itself configured from the file being loaded.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = createBasicLogger()
	}

	return &Config{
		defaultLoader: NewFileConfigLoader(log),
		logger:        log,
	}
}

func createBasicLogger() logger.Logger {
	return logger.New(zerolog.New(os.Stderr).
		Level(zerolog.WarnLevel).
		With().
		Timestamp().
		Logger())
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads a configuration, normalizes SecurityConfig paths if present, and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if err := c.loadWithSource(ctx, path, cfg); err != nil {
		return err
	}

	if err := c.normalizeSecurityConfig(cfg); err != nil {
		return fmt.Errorf("failed to normalize SecurityConfig: %w", err)
	}

	return ValidateConfig(cfg)
}

func (c *Config) loadWithSource(ctx context.Context, path string, cfg interface{}) error {
	source := strings.ToLower(os.Getenv("CONFIG_SOURCE"))

	var loader ConfigLoader

	switch source {
	case configSourceEnv:
		prefix := os.Getenv("CONFIG_ENV_PREFIX")
		if prefix == "" {
			prefix = DefaultEnvPrefix
		}

		loader = NewEnvConfigLoader(c.logger, prefix)
	case configSourceFile, "":
		loader = c.defaultLoader
	default:
		return fmt.Errorf("%w: %s (expected '%s' or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceEnv)
	}

	return loader.Load(ctx, path, cfg)
}

// normalizeSecurityConfig resolves relative TLS paths of every top-level
// *models.SecurityConfig field against its CertDir.
func (c *Config) normalizeSecurityConfig(cfg interface{}) error {
	v := reflect.ValueOf(cfg)

	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	v = v.Elem()

	if v.Kind() != reflect.Struct {
		return nil
	}

	securityType := reflect.TypeOf((*models.SecurityConfig)(nil))

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)

		if field.Type() == securityType && !field.IsNil() {
			sec := field.Interface().(*models.SecurityConfig)
			c.normalizeTLSPaths(&sec.TLS, sec.CertDir)

			continue
		}

		// one level of nesting covers sections such as "nats": {"security": ...}
		if field.Kind() == reflect.Ptr && !field.IsNil() && field.Elem().Kind() == reflect.Struct {
			if err := c.normalizeSecurityConfig(field.Interface()); err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *Config) normalizeTLSPaths(tls *models.TLSConfig, certDir string) {
	if certDir == "" {
		return
	}

	for _, p := range []*string{&tls.CertFile, &tls.KeyFile, &tls.CAFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(certDir, *p)
		}
	}

	c.logger.Debug().
		Str("cert_file", tls.CertFile).
		Str("key_file", tls.KeyFile).
		Str("ca_file", tls.CAFile).
		Msg("Normalized TLS paths")
}
