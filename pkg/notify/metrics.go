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

package notify

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName                = "routerwatch.notify"
	metricNotificationsTotal = "routerwatch_notifications_total"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	notificationCounter metric.Int64Counter
)

func initMeter() {
	counter, err := otel.Meter(meterName).Int64Counter(
		metricNotificationsTotal,
		metric.WithDescription("Notifications surfaced by kind and delivery outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}

	notificationCounter = counter
}

func recordNotification(ctx context.Context, kind, outcome string) {
	meterOnce.Do(initMeter)
	if notificationCounter == nil {
		return
	}

	notificationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}
