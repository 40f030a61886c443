package app

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/felixgeelhaar/caffe/middleware"
)

// telemetry holds the SDK providers installed for the OTel middleware.
type telemetry struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// setupTelemetry installs SDK tracer and meter providers as the globals.
// Exporters are left to the embedding application; the providers give
// spans real trace IDs and keep instruments live.
func setupTelemetry(readers ...sdkmetric.Reader) *telemetry {
	mopts := make([]sdkmetric.Option, 0, len(readers))
	for _, r := range readers {
		mopts = append(mopts, sdkmetric.WithReader(r))
	}

	t := &telemetry{
		tp: sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample())),
		mp: sdkmetric.NewMeterProvider(mopts...),
	}
	otel.SetTracerProvider(t.tp)
	otel.SetMeterProvider(t.mp)
	return t
}

func (t *telemetry) middleware() middleware.Handler {
	return middleware.OTel(
		middleware.WithTracerProvider(t.tp),
		middleware.WithMeterProvider(t.mp),
		middleware.WithOTelServiceName(name),
	)
}

func (t *telemetry) shutdown(ctx context.Context) error {
	return errors.Join(t.tp.Shutdown(ctx), t.mp.Shutdown(ctx))
}
