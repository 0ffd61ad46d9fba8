// Package telemetry wires OpenTelemetry for the prover daemon: OTLP/HTTP trace
// export, an OpenTelemetry meter bridged into the Prometheus registry, and
// span helpers for the duty cycle, peer calls and proof generation.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "proverd"
	serviceVersion = "1.0.0"
)

// Config selects which exporters run. Tracing and metrics are independent.
type Config struct {
	// TracingEnabled exports spans to OTLPEndpoint
	TracingEnabled bool
	OTLPEndpoint   string
	SampleRate     float64

	// MetricsEnabled bridges OpenTelemetry instruments into a Prometheus
	// registry served next to the default one
	MetricsEnabled bool

	Environment string
	NodeID      string
}

// Provider owns the tracer and meter providers of the process.
type Provider struct {
	config Config

	tracerProvider *tracesdk.TracerProvider
	meterProvider  *metricsdk.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	registry       *prometheus.Registry

	peerMetrics *PeerMetrics
}

// NewProvider initializes the enabled exporters and installs them as the
// global OpenTelemetry providers.
func NewProvider(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}

	if cfg.TracingEnabled || cfg.MetricsEnabled {
		if err := validateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid telemetry config: %w", err)
		}

		res, err := newResource(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
		if cfg.TracingEnabled {
			if err := p.initTracing(res); err != nil {
				return nil, fmt.Errorf("failed to initialize tracing: %w", err)
			}
		}
		if cfg.MetricsEnabled {
			if err := p.initMetrics(res); err != nil {
				return nil, fmt.Errorf("failed to initialize metrics: %w", err)
			}
		}
	}

	peerMetrics, err := NewPeerMetrics(p.Meter())
	if err != nil {
		return nil, err
	}
	p.peerMetrics = peerMetrics
	return p, nil
}

func validateConfig(cfg Config) error {
	if !cfg.TracingEnabled {
		return nil
	}
	if cfg.OTLPEndpoint == "" {
		return fmt.Errorf("otlp endpoint is required")
	}
	if _, err := url.Parse(cfg.OTLPEndpoint); err != nil {
		return fmt.Errorf("invalid otlp endpoint: %w", err)
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1")
	}
	return nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	return resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("environment", cfg.Environment),
			attribute.String("node.id", cfg.NodeID),
		),
	)
}

func (p *Provider) initTracing(res *resource.Resource) error {
	endpoint := strings.TrimPrefix(p.config.OTLPEndpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithURLPath("/v1/traces"),
	))
	if err != nil {
		return fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter,
			tracesdk.WithMaxExportBatchSize(512),
			tracesdk.WithMaxQueueSize(2048),
			tracesdk.WithBatchTimeout(5*time.Second),
		),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(p.config.SampleRate))),
	)
	otel.SetTracerProvider(tp)

	p.tracerProvider = tp
	p.tracer = tp.Tracer(serviceName)
	return nil
}

func (p *Provider) initMetrics(res *resource.Resource) error {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	mp := metricsdk.NewMeterProvider(
		metricsdk.WithResource(res),
		metricsdk.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	p.registry = registry
	p.meterProvider = mp
	p.meter = mp.Meter(serviceName)
	return nil
}

// Gatherer merges the OpenTelemetry instruments with the default Prometheus
// registry.
func (p *Provider) Gatherer() prometheus.Gatherer {
	if p.registry == nil {
		return prometheus.DefaultGatherer
	}
	return prometheus.Gatherers{prometheus.DefaultGatherer, p.registry}
}

// Shutdown flushes and stops the enabled exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Tracer returns the provider tracer, or the global one when tracing is off.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer(serviceName)
	}
	return p.tracer
}

// Meter returns the provider meter, or the global one when metrics are off.
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.Meter(serviceName)
	}
	return p.meter
}

// PeerMetrics returns the peer call instruments.
func (p *Provider) PeerMetrics() *PeerMetrics {
	return p.peerMetrics
}

// HealthCheck reports an enabled exporter that failed to come up.
func (p *Provider) HealthCheck() error {
	if p.config.TracingEnabled && (p.tracerProvider == nil || p.tracer == nil) {
		return fmt.Errorf("tracer provider not initialized")
	}
	if p.config.MetricsEnabled && (p.meterProvider == nil || p.meter == nil) {
		return fmt.Errorf("meter provider not initialized")
	}
	return nil
}
