package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

const instrumentationName = "github.com/lumastudio/dataplane"

// Logger is the logging contract of the tracer.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
}

// Tracer owns the span provider of the data plane. The data access layer
// opens one span per request or procedure call through it.
type Tracer struct {
	provider *sdktrace.TracerProvider
	logger   Logger
}

// NewClient builds a provider for cfg and installs it, together with the
// W3C trace context and baggage propagators, as the process-wide default so
// that event headers carry the same trace.
func NewClient(cfg Config, logger Logger) (*Tracer, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.AppEnv),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.sampler()))),
	}

	if cfg.EnableExport {
		exporter, err := otlptracehttp.New(context.Background(), exporterOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("create span exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if logger != nil {
		logger.Info("Tracer ready", nil, map[string]interface{}{
			"service":      cfg.ServiceName,
			"export":       cfg.EnableExport,
			"sample_ratio": cfg.sampler(),
		})
	}
	return &Tracer{provider: provider, logger: logger}, nil
}

func exporterOptions(cfg Config) []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// NewWithProvider wraps provider without touching the global OpenTelemetry
// state.
func NewWithProvider(provider *sdktrace.TracerProvider, logger Logger) *Tracer {
	return &Tracer{provider: provider, logger: logger}
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		if t.logger != nil {
			t.logger.Warn("Tracer shutdown incomplete", err, nil)
		}
		return err
	}
	return nil
}
