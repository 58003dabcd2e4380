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

package logger

import (
	"io"

	"github.com/rs/zerolog"
)

type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	Panic() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) zerolog.Logger
	WithFields(fields map[string]interface{}) zerolog.Logger
	SetLevel(level zerolog.Level)
	SetDebug(debug bool)
}

// zerologAdapter implements Logger over a concrete zerolog.Logger.
type zerologAdapter struct {
	logger zerolog.Logger
}

// New wraps a zerolog.Logger so it can be injected as a Logger.
func New(zl zerolog.Logger) Logger {
	return &zerologAdapter{logger: zl}
}

func (z *zerologAdapter) Trace() *zerolog.Event { return z.logger.Trace() }
func (z *zerologAdapter) Debug() *zerolog.Event { return z.logger.Debug() }
func (z *zerologAdapter) Info() *zerolog.Event  { return z.logger.Info() }
func (z *zerologAdapter) Warn() *zerolog.Event  { return z.logger.Warn() }
func (z *zerologAdapter) Error() *zerolog.Event { return z.logger.Error() }
func (z *zerologAdapter) Fatal() *zerolog.Event { return z.logger.Fatal() }
func (z *zerologAdapter) Panic() *zerolog.Event { return z.logger.Panic() }
func (z *zerologAdapter) With() zerolog.Context { return z.logger.With() }

func (z *zerologAdapter) WithComponent(component string) zerolog.Logger {
	return z.logger.With().Str("component", component).Logger()
}

func (z *zerologAdapter) WithFields(fields map[string]interface{}) zerolog.Logger {
	ctx := z.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return ctx.Logger()
}

func (z *zerologAdapter) SetLevel(level zerolog.Level) {
	z.logger = z.logger.Level(level)
}

func (z *zerologAdapter) SetDebug(debug bool) {
	if debug {
		z.SetLevel(zerolog.DebugLevel)
	} else {
		z.SetLevel(zerolog.InfoLevel)
	}
}

// NewTestLogger creates a no-op logger for testing that discards all output
func NewTestLogger() Logger {
	return &zerologAdapter{logger: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}
