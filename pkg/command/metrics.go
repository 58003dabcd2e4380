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

package command

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/routerwatch/pkg/routeros"
)

const (
	meterName             = "routerwatch.command"
	metricCommandDuration = "routerwatch_command_duration_seconds"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	durationHistogram metric.Float64Histogram
)

func initMeter() {
	hist, err := otel.Meter(meterName).Float64Histogram(
		metricCommandDuration,
		metric.WithDescription("Latency of RouterOS API commands by outcome class"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	durationHistogram = hist
}

func recordCommand(ctx context.Context, cmd string, class routeros.Class, d time.Duration) {
	meterOnce.Do(initMeter)
	if durationHistogram == nil {
		return
	}

	durationHistogram.Record(
		context.WithoutCancel(ctx),
		d.Seconds(),
		metric.WithAttributes(
			attribute.String("command", cmd),
			attribute.String("class", class.String()),
		),
	)
}
