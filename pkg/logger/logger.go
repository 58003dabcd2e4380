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

// Package logger provides JSON structured logging using zerolog
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var globalLogger zerolog.Logger

type Config struct {
	Level      string      `json:"level" yaml:"level"`
	Debug      bool        `json:"debug" yaml:"debug"`
	Output     string      `json:"output" yaml:"output"`
	TimeFormat string      `json:"time_format" yaml:"time_format"`
	OTel       *OTelConfig `json:"otel,omitempty" yaml:"otel,omitempty"`
}

func init() {
	globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
}

// Writer returns the output stream selected by the config.
func (c *Config) Writer() io.Writer {
	if c != nil && c.Output == "stderr" {
		return os.Stderr
	}

	return os.Stdout
}

// ParseLevel resolves the effective level; Debug wins over Level.
func (c *Config) ParseLevel() (zerolog.Level, error) {
	if c == nil {
		return zerolog.InfoLevel, nil
	}

	if c.Debug {
		return zerolog.DebugLevel, nil
	}

	if c.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(c.Level)
}

func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := config.ParseLevel()
	if err != nil {
		return err
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	globalLogger = zerolog.New(config.Writer()).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = globalLogger

	return nil
}

func SetLevel(level zerolog.Level) {
	globalLogger = globalLogger.Level(level)
	log.Logger = globalLogger
}

func SetDebug(debug bool) {
	if debug {
		SetLevel(zerolog.DebugLevel)
	} else {
		SetLevel(zerolog.InfoLevel)
	}
}

func GetLogger() zerolog.Logger {
	return globalLogger
}

func Debug() *zerolog.Event {
	return globalLogger.Debug()
}

func Info() *zerolog.Event {
	return globalLogger.Info()
}

func Warn() *zerolog.Event {
	return globalLogger.Warn()
}

func Error() *zerolog.Event {
	return globalLogger.Error()
}

func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}
