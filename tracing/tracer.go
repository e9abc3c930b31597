package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultServiceName = "citizenportal"
	tracerName         = "go.pilab.hu/citizenportal"
)

// Exporter names accepted by InitTracerProvider.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Tracer is the tracer shared by the portal packages. It follows the global
// provider, so it is usable before InitTracerProvider runs.
var Tracer trace.Tracer = otel.Tracer(tracerName)

// InitTracerProvider builds a TracerProvider and registers it globally.
// With ExporterNone spans are still created, so trace ids reach the logs,
// but nothing is exported. Pass w to redirect stdout export, nil means
// os.Stdout.
func InitTracerProvider(serviceName, exporter string, w io.Writer) (*sdktrace.TracerProvider, error) {
	if serviceName == "" {
		serviceName = os.Getenv("OTEL_SERVICE_NAME")
	}
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}

	switch exporter {
	case "", ExporterNone:
	case ExporterStdout:
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("tracing: unknown exporter %q", exporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	Tracer = tp.Tracer(tracerName)

	return tp, nil
}
