package logger

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"google.golang.org/grpc/credentials"
)

var (
	// ErrOTelMetricsDisabled is returned when no OTLP endpoint is configured.
	// Instruments then record into the global no-op provider.
	ErrOTelMetricsDisabled = errors.New("OTel metrics exporter disabled")
	errFailedToParseCACert = errors.New("failed to parse CA certificate")
)

//nolint:gochecknoglobals // one provider per process, shut down from main
var (
	meterMu       sync.Mutex
	meterProvider *sdkmetric.MeterProvider
)

const defaultExportInterval = 15 * time.Second

// MetricsConfig names the service reported on every exported series.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	OTel           *OTelConfig
	// ExportInterval overrides OTel.ExportInterval when set.
	ExportInterval time.Duration
}

func (c MetricsConfig) serviceName() string {
	switch {
	case c.ServiceName != "":
		return c.ServiceName
	case c.OTel != nil && c.OTel.ServiceName != "":
		return c.OTel.ServiceName
	default:
		return "routerwatch"
	}
}

func (c MetricsConfig) exportInterval() time.Duration {
	switch {
	case c.ExportInterval > 0:
		return c.ExportInterval
	case c.OTel != nil && c.OTel.ExportInterval > 0:
		return c.OTel.ExportInterval
	default:
		return defaultExportInterval
	}
}

// InitializeMetrics installs the global MeterProvider backed by an OTLP gRPC
// exporter. Repeated calls return the provider installed first.
func InitializeMetrics(ctx context.Context, config MetricsConfig) (*sdkmetric.MeterProvider, error) {
	if config.OTel == nil || !config.OTel.Enabled || config.OTel.Endpoint == "" {
		return nil, ErrOTelMetricsDisabled
	}

	meterMu.Lock()
	defer meterMu.Unlock()

	if meterProvider != nil {
		return meterProvider, nil
	}

	opts, err := exporterOptions(config.OTel)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(config.serviceName()),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(config.exportInterval()))),
	)
	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

func exporterOptions(cfg *OTelConfig) ([]otlpmetricgrpc.Option, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}

	switch {
	case cfg.Insecure:
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	case cfg.TLS != nil:
		tlsConfig, err := clientTLS(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup metrics TLS configuration: %w", err)
		}

		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Headers))
	}

	return opts, nil
}

// ShutdownMetrics flushes pending series and uninstalls the provider.
func ShutdownMetrics(ctx context.Context) error {
	meterMu.Lock()
	defer meterMu.Unlock()

	if meterProvider == nil {
		return nil
	}

	err := meterProvider.Shutdown(ctx)
	meterProvider = nil

	return err
}

func clientTLS(cfg *TLSConfig) (*tls.Config, error) {
	out := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		out.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile == "" {
		return out, nil
	}

	pem, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errFailedToParseCACert
	}

	out.RootCAs = pool

	return out, nil
}
