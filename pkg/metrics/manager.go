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

// Package metrics exports poll cycle telemetry over OTLP.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"

	"github.com/carverauto/ssm/pkg/models"
)

const (
	meterName             = "github.com/carverauto/ssm"
	defaultExportInterval = 30 * time.Second
)

// ErrMetricsDisabled is returned by NewManager when no exporter is configured.
var ErrMetricsDisabled = errors.New("metrics exporter disabled")

// Manager owns the meter provider for the process.
type Manager struct {
	provider metric.MeterProvider
	shutdown func(context.Context) error
}

// NewManager wires an OTLP gRPC exporter behind a periodic reader and makes
// it the global meter provider. A disabled config yields a no-op manager
// together with ErrMetricsDisabled.
func NewManager(ctx context.Context, cfg *models.MetricsConfig, version string) (*Manager, error) {
	if cfg == nil || !cfg.Enabled || cfg.Endpoint == "" {
		return NewNoopManager(), ErrMetricsDisabled
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	interval := time.Duration(cfg.Interval)
	if interval <= 0 {
		interval = defaultExportInterval
	}

	return newManager(ctx, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), cfg.ServiceName, version)
}

// NewManagerWithReader builds a manager around an existing reader. Tests use
// it with sdkmetric.NewManualReader.
func NewManagerWithReader(ctx context.Context, reader sdkmetric.Reader, serviceName string) (*Manager, error) {
	return newManager(ctx, reader, serviceName, "")
}

func newManager(ctx context.Context, reader sdkmetric.Reader, serviceName, version string) (*Manager, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if version != "" {
		attrs = append(attrs, semconv.ServiceVersion(version))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	otel.SetMeterProvider(provider)

	return &Manager{provider: provider, shutdown: provider.Shutdown}, nil
}

// NewNoopManager returns a manager whose instruments record nothing.
func NewNoopManager() *Manager {
	return &Manager{
		provider: noop.NewMeterProvider(),
		shutdown: func(context.Context) error { return nil },
	}
}

// Meter returns the service meter.
func (m *Manager) Meter() metric.Meter {
	return m.provider.Meter(meterName)
}

// Shutdown flushes pending data and stops the exporter.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.shutdown(ctx)
}
