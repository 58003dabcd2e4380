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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName          = "routerwatch.devicepool"
	metricDialsTotal   = "routerwatch_pool_dials_total"
	metricEvictedTotal = "routerwatch_pool_evictions_total"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	dialCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	evictionCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	dials, err := meter.Int64Counter(
		metricDialsTotal,
		metric.WithDescription("Device connection attempts by outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	dialCounter = dials

	evictions, err := meter.Int64Counter(
		metricEvictedTotal,
		metric.WithDescription("Device connections closed by reason"),
	)
	if err != nil {
		otel.Handle(err)
	}
	evictionCounter = evictions
}

func recordDial(ctx context.Context, outcome string) {
	meterOnce.Do(initMeter)
	if dialCounter == nil {
		return
	}

	dialCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func recordEviction(ctx context.Context, reason string) {
	meterOnce.Do(initMeter)
	if evictionCounter == nil {
		return
	}

	evictionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
