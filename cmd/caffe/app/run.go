package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/caffe"
	"github.com/felixgeelhaar/caffe/middleware"
	"github.com/felixgeelhaar/caffe/protocol"
	"github.com/felixgeelhaar/caffe/transport"
)

// run serves the demo pipeline with the configured transport until ctx is
// canceled or, for stdio, the input ends.
func run(ctx context.Context, o *Options, in io.Reader, out, errOut io.Writer) error {
	logger, err := newLogger(o.Log, errOut)
	if err != nil {
		return err
	}

	var tel *telemetry
	if o.OTel.Enabled {
		tel = setupTelemetry()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", middleware.F("error", err.Error()))
			}
		}()
	}

	svc, err := newService(o, logger, tel,
		caffe.WithStdioOptions(transport.WithStdin(in), transport.WithStdout(out)),
	)
	if err != nil {
		return err
	}

	logger.Info("starting", middleware.F("transport", o.Transport), middleware.F("addr", o.Addr))

	switch o.Transport {
	case TransportWebSocket:
		return svc.ServeWebSocket(ctx, o.Addr)
	case TransportStdio:
		return svc.ServeStdio(ctx)
	default:
		return svc.Serve(ctx, o.Addr)
	}
}

func newLogger(o LogOptions, w io.Writer) (middleware.Logger, error) {
	level, err := o.level()
	if err != nil {
		return nil, err
	}
	return middleware.SlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))), nil
}

// newService composes the demo pipeline. tel may be nil.
func newService(o *Options, logger middleware.Logger, tel *telemetry, opts ...caffe.Option) (*caffe.Service, error) {
	handlers := []caffe.Handler{
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Recover(),
	}
	if tel != nil {
		handlers = append(handlers, tel.middleware())
	}
	if o.Timeout > 0 {
		handlers = append(handlers, middleware.Timeout(o.Timeout))
	}
	if o.Rate.Limit > 0 {
		rateOpts := []middleware.RateLimitOption{middleware.WithRateLimitLogger(logger)}
		proxies, err := o.Rate.proxies()
		if err != nil {
			return nil, err
		}
		if len(proxies) > 0 {
			rateOpts = append(rateOpts, middleware.WithTrustedProxies(proxies...))
		}
		handlers = append(handlers, middleware.RateLimitByClient(o.Rate.Limit, o.Rate.Burst, rateOpts...))
	}
	if o.MaxBody > 0 {
		handlers = append(handlers, middleware.SizeLimit(o.MaxBody, middleware.WithSizeLimitLogger(logger)))
	}

	greeting, err := middleware.Inject("greeting", o.Greeting)
	if err != nil {
		return nil, err
	}
	handlers = append(handlers,
		middleware.CORS(middleware.DefaultCORSConfig()),
		greeting,
		routes,
	)

	opts = append([]caffe.Option{caffe.WithLogger(logger)}, opts...)
	return caffe.NewService(name, handlers, opts...)
}

// routes answers the demo paths and hands everything else to next.
func routes(c *caffe.Context, next caffe.Next) error {
	switch c.Request.URL.Path {
	case "/":
		return middleware.Text(http.StatusOK, greet)(c, next)
	case "/healthz":
		return middleware.JSON(http.StatusOK, map[string]string{"status": "ok"})(c, next)
	case "/echo":
		if c.Request.Method != http.MethodPost {
			return protocol.NewError(http.StatusMethodNotAllowed, protocol.CodeBadRequest, "use POST")
		}
		var payload any
		if err := json.NewDecoder(c.Request.Body).Decode(&payload); err != nil {
			return protocol.NewBadRequest(fmt.Sprintf("invalid json: %v", err))
		}
		return middleware.JSON(http.StatusOK, map[string]any{
			"echo":       payload,
			"request_id": middleware.RequestIDFrom(c),
		})(c, next)
	}
	return next()
}

func greet(c *caffe.Context) string {
	greeting, _ := middleware.Lookup[string](c, "greeting")
	who := c.Request.URL.Query().Get("name")
	if who == "" {
		who = "world"
	}
	if span := middleware.SpanFromContext(c); span.SpanContext().HasTraceID() {
		c.Header.Set("X-Trace-ID", span.SpanContext().TraceID().String())
	}
	return fmt.Sprintf("%s, %s!", greeting, who)
}
