// Package telemetry wires OpenTelemetry metrics (exported for Prometheus)
// and traces for the narrator processes.
package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/example/go-narrator/internal/config"
)

// Options configures Setup.
type Options struct {
	Config  config.TelemetryConfig
	Version string
	// TraceWriter receives stdout-exporter traces; defaults to io.Discard.
	TraceWriter io.Writer
	Logger      *slog.Logger
}

// Provider owns the meter and tracer providers and the Prometheus handler.
type Provider struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider trace.TracerProvider

	registry  *prometheus.Registry
	handler   http.Handler
	shutdowns []func(context.Context) error
}

// Setup builds the providers and installs them as the otel globals.
func Setup(ctx context.Context, opts Options) (*Provider, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := opts.Config.ServiceName
	if name == "" {
		name = "narrator"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(opts.Version),
			attribute.String("narrator.component", "tts"),
		),
	)
	if err != nil {
		return nil, err
	}

	p := &Provider{registry: prometheus.NewRegistry()}

	exporter, err := otelprom.New(otelprom.WithRegisterer(p.registry))
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		p.MeterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	} else {
		p.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		p.handler = promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	}

	p.shutdowns = append(p.shutdowns, p.MeterProvider.Shutdown)

	tp, err := newTracerProvider(ctx, opts, res, logger)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}

	p.TracerProvider = tp
	if sdk, ok := tp.(*sdktrace.TracerProvider); ok {
		p.shutdowns = append(p.shutdowns, sdk.Shutdown)
	}

	otel.SetMeterProvider(p.MeterProvider)
	otel.SetTracerProvider(p.TracerProvider)

	return p, nil
}

func newTracerProvider(ctx context.Context, opts Options, res *resource.Resource, logger *slog.Logger) (trace.TracerProvider, error) {
	if endpoint := strings.TrimSpace(opts.Config.OTLPEndpoint); endpoint != "" {
		exOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if opts.Config.OTLPInsecure {
			exOpts = append(exOpts, otlptracegrpc.WithInsecure())
		}

		exporter, err := otlptracegrpc.New(ctx, exOpts...)
		if err != nil {
			return nil, err
		}

		logger.Info("telemetry initialized", slog.String("exporter", "otlp"), slog.String("endpoint", endpoint))

		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		), nil
	}

	if opts.Config.TraceStdout {
		w := opts.TraceWriter
		if w == nil {
			w = io.Discard
		}

		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, err
		}

		logger.Info("telemetry initialized", slog.String("exporter", "stdout"))

		return sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(res),
		), nil
	}

	return noop.NewTracerProvider(), nil
}

// Handler serves the Prometheus exposition. It is nil when the exporter
// could not be created.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Shutdown flushes and stops the meter and tracer providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error

	for i := len(p.shutdowns) - 1; i >= 0; i-- {
		if err := p.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	p.shutdowns = nil

	return errors.Join(errs...)
}
