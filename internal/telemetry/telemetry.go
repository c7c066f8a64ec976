// Package telemetry configures OpenTelemetry tracing. When tracing is
// disabled the global no-op provider stays in place and spans cost nothing.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used by venuepulse packages.
const TracerName = "github.com/rewired-gh/venuepulse"

// Config controls trace export.
type Config struct {
	ServiceName string
	Enabled     bool
	// Writer receives exported spans as JSON lines. Nil means stdout.
	Writer io.Writer
}

// Setup installs a global tracer provider exporting to cfg.Writer and
// returns its shutdown function. With tracing disabled it returns a no-op
// shutdown.
func Setup(cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "venuepulse"
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Writer))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the venuepulse tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
