// Package observability wires the controller's telemetry: a prometheus
// registry for metrics, and optional OTLP exporters for traces and logs.
// With a zero Config everything is a no-op and the controller runs dark.
package observability

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects which telemetry features are enabled.
type Config struct {
	// Service names this process in exported telemetry.
	Service string

	// Metrics enables the prometheus registry and /metrics handler.
	Metrics bool

	// TraceAddr is the OTLP/gRPC collector endpoint for traces.
	// Empty disables trace export.
	TraceAddr string

	// LogAddr is the OTLP/gRPC collector endpoint for logs. When set,
	// slog's default logger is bridged to the exporter. Empty leaves
	// slog untouched.
	LogAddr string
}

type state struct {
	cfg            Config
	registry       *prometheus.Registry
	tracerProvider *sdktrace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
	prevLogger     *slog.Logger
}

var (
	mu  sync.Mutex
	cur *state
)

// Setup initializes telemetry according to cfg. Call Shutdown before the
// process exits. Calling Setup again replaces the previous state (used by
// tests).
func Setup(ctx context.Context, cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	s := &state{cfg: cfg}

	if cfg.Metrics {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.Service))

	if cfg.TraceAddr != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.TraceAddr),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return err
		}
		s.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(s.tracerProvider)
	}

	if cfg.LogAddr != "" {
		exporter, err := otlploggrpc.New(ctx,
			otlploggrpc.WithEndpoint(cfg.LogAddr),
			otlploggrpc.WithInsecure(),
		)
		if err != nil {
			return err
		}
		s.loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
			sdklog.WithResource(res),
		)
		s.prevLogger = slog.Default()
		slog.SetDefault(slog.New(otelslog.NewHandler(cfg.Service,
			otelslog.WithLoggerProvider(s.loggerProvider))))
	}

	cur = s
	return nil
}

// Shutdown flushes and stops all exporters started by Setup.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if cur == nil {
		return nil
	}

	var firstErr error
	if cur.tracerProvider != nil {
		if err := cur.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if cur.loggerProvider != nil {
		if cur.prevLogger != nil {
			slog.SetDefault(cur.prevLogger)
		}
		if err := cur.loggerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	cur = nil
	return firstErr
}

// Enabled reports whether metrics collection is active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()

	return cur != nil && cur.registry != nil
}

// Handler returns the /metrics HTTP handler. With metrics disabled it
// serves 404.
func Handler() http.Handler {
	mu.Lock()
	defer mu.Unlock()

	if cur == nil || cur.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(cur.registry, promhttp.HandlerOpts{})
}

// register adds a collector to the current registry, if metrics are
// enabled. Returns false otherwise.
func register(cs ...prometheus.Collector) bool {
	mu.Lock()
	defer mu.Unlock()

	if cur == nil || cur.registry == nil {
		return false
	}
	cur.registry.MustRegister(cs...)
	return true
}
