package middleware

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/caffe/protocol"
)

const (
	instrumentationName = "github.com/felixgeelhaar/caffe"
)

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipMethods    map[string]bool
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithOTelServiceName sets the service name for telemetry.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithOTelSkipMethods specifies HTTP methods to skip for tracing.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// OTel returns middleware that adds OpenTelemetry tracing and metrics.
// It creates a span around the rest of the chain and records request
// counts, failures and latency. The span is attached to the request so
// later handlers can reach it through the Context.
func OTel(opts ...OTelOption) Handler {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "caffe",
		skipMethods:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(
		instrumentationName,
		trace.WithInstrumentationVersion("1.0.0"),
	)

	meter := cfg.meterProvider.Meter(
		instrumentationName,
		metric.WithInstrumentationVersion("1.0.0"),
	)

	requestCounter, _ := meter.Int64Counter(
		"caffe.server.requests",
		metric.WithDescription("Total number of dispatched requests"),
		metric.WithUnit("{request}"),
	)

	requestDuration, _ := meter.Float64Histogram(
		"caffe.server.request.duration",
		metric.WithDescription("Duration of dispatched requests"),
		metric.WithUnit("ms"),
	)

	errorCounter, _ := meter.Int64Counter(
		"caffe.server.errors",
		metric.WithDescription("Total number of failed requests"),
		metric.WithUnit("{error}"),
	)

	return func(c *Context, next Next) error {
		method := ""
		if c.Request != nil {
			method = c.Request.Method
		}
		if cfg.skipMethods[method] {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", method),
			attribute.String("service.name", cfg.serviceName),
		}

		ctx, span := tracer.Start(c, "caffe.dispatch",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		if c.Request != nil {
			span.SetAttributes(attribute.String("url.path", c.Request.URL.Path))
			c.Request = c.Request.WithContext(ctx)
		}

		startTime := time.Now()
		requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

		err := next()

		duration := float64(time.Since(startTime).Milliseconds())
		requestDuration.Record(ctx, duration, metric.WithAttributes(attrs...))

		if reqID := RequestIDFrom(c); reqID != "" {
			span.SetAttributes(attribute.String("caffe.request_id", reqID))
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			status := protocol.StatusOf(err)
			span.SetAttributes(attribute.Int("http.response.status_code", status))

			var perr *protocol.Error
			if errors.As(err, &perr) {
				errorCounter.Add(ctx, 1, metric.WithAttributes(
					append(attrs, attribute.String("caffe.error_code", perr.Code))...,
				))
			} else {
				errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			return err
		}

		if c.Status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", c.Status))
		}
		if c.Status >= 500 {
			span.SetStatus(codes.Error, protocol.NewError(c.Status, "", "").Message)
			errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return nil
	}
}

// SpanFromContext returns the current span of c.
// Returns a no-op span if no span is present.
func SpanFromContext(c *Context) trace.Span {
	return trace.SpanFromContext(c)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(c *Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(c)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanAttribute sets an attribute on the current span.
func SetSpanAttribute(c *Context, key string, value any) {
	span := trace.SpanFromContext(c)
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	case []string:
		span.SetAttributes(attribute.StringSlice(key, v))
	}
}
