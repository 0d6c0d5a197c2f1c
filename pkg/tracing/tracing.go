package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/psantana5/costime/pkg/logging"
)

// Config is the tracing section of the costime configuration
type Config struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"` // OTLP HTTP collector, host:port
	ServiceName string `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" yaml:"environment" json:"environment"`
}

// Provider owns the tracer that stopwatch and HTTP spans are recorded on.
// It is never installed as the otel global.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds the provider described by cfg. When tracing is disabled
// spans are sampled out and nothing is exported.
func NewProvider(ctx context.Context, cfg Config, version string, logger *logging.Logger) (*Provider, error) {
	if !cfg.Enabled {
		logger.Debug("tracing disabled")
		return newProvider(sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample())), cfg.ServiceName), nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
		semconv.DeploymentEnvironment(cfg.Environment),
	)

	logger.Info("exporting stopwatch spans", map[string]interface{}{
		"service":  cfg.ServiceName,
		"endpoint": cfg.Endpoint,
	})
	return newProvider(sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), cfg.ServiceName), nil
}

func newProvider(tp *sdktrace.TracerProvider, name string) *Provider {
	return &Provider{tp: tp, tracer: tp.Tracer(name)}
}

// Tracer returns the tracer spans are started on
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown exports pending spans and stops the provider
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}
