// Package caffe composes request handlers into onion-style middleware
// pipelines and serves them over HTTP, WebSocket and stdio.
//
// A handler receives the shared Context and a continuation. Code before
// next() runs on the way in, code after it runs on the way out:
//
//	timing := func(c *caffe.Context, next caffe.Next) error {
//	    start := time.Now()
//	    err := next()
//	    c.Header.Set("X-Brew-Time", time.Since(start).String())
//	    return err
//	}
//
//	svc, err := caffe.NewService("orders", []caffe.Handler{
//	    caffe.RequestID(),
//	    caffe.Recover(),
//	    timing,
//	    caffe.JSON(200, map[string]string{"status": "ready"}),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Serve(ctx, ":8080"))
//
// The middleware package holds the composition engine and the built-in
// handlers, server adapts a pipeline to net/http, transport serves it and
// client talks to it.
package caffe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/caffe/client"
	"github.com/felixgeelhaar/caffe/middleware"
	"github.com/felixgeelhaar/caffe/protocol"
	"github.com/felixgeelhaar/caffe/server"
	"github.com/felixgeelhaar/caffe/transport"
)

// Re-export core types for convenience

// Context is the state shared by every handler of one invocation.
type Context = middleware.Context

// Handler is one step of a pipeline.
type Handler = middleware.Handler

// Next continues with the rest of the pipeline.
type Next = middleware.Next

// Dispatcher runs a composed pipeline.
type Dispatcher = middleware.Dispatcher

// Logging types
type Logger = middleware.Logger
type LogField = middleware.Field

// Error types
type Error = protocol.Error
type ProtectedFieldError = middleware.ProtectedFieldError
type PanicError = middleware.PanicError

// Client types
type Client = client.Client
type ClientOption = client.Option

// Transport options
type HTTPOption = transport.HTTPOption
type WebSocketOption = transport.WebSocketOption
type StdioOption = transport.StdioOption

// Composition re-exports.
var (
	Compose         = middleware.Compose
	MustCompose     = middleware.MustCompose
	Mix             = middleware.Mix
	Use             = middleware.Use
	AssertSafeField = middleware.AssertSafeField
)

// Sentinel errors.
var (
	ErrInvalidArgument  = middleware.ErrInvalidArgument
	ErrDoubleInvocation = middleware.ErrDoubleInvocation
	ErrProtectedField   = middleware.ErrProtectedField
)

// Leaf handler re-exports.
var (
	Inject      = middleware.Inject
	MustInject  = middleware.MustInject
	Resolve     = middleware.Resolve
	MustResolve = middleware.MustResolve
	JSON        = middleware.JSON
	Text        = middleware.Text
)

// Bind decodes and validates the JSON body into a T stored under name.
// See middleware.Bind.
func Bind[T any](name string) (Handler, error) {
	return middleware.Bind[T](name)
}

// MustBind is like Bind but panics on error.
func MustBind[T any](name string) Handler {
	return middleware.MustBind[T](name)
}

// Lookup returns the field stored under name if it holds a T.
func Lookup[T any](c *Context, name string) (T, bool) {
	return middleware.Lookup[T](c, name)
}

// Middleware re-exports.
var (
	Recover            = middleware.Recover
	RecoverWithHandler = middleware.RecoverWithHandler
	RequestID          = middleware.RequestID
	RequestIDFrom      = middleware.RequestIDFrom
	Logging            = middleware.Logging
	Timeout            = middleware.Timeout
	RateLimit          = middleware.RateLimit
	RateLimitByClient  = middleware.RateLimitByClient
	SizeLimit          = middleware.SizeLimit
	CORS               = middleware.CORS
	OTel               = middleware.OTel
	DefaultStack       = middleware.DefaultStack
	LogF               = middleware.F
)

// Size limit presets.
const (
	KB = middleware.KB
	MB = middleware.MB
)

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger      Logger
	adapterOpts []server.Option
	httpOpts    []HTTPOption
	wsOpts      []WebSocketOption
	stdioOpts   []StdioOption
}

// WithLogger sets the logger used by the adapter and every transport.
func WithLogger(l Logger) Option {
	return func(o *serviceOptions) {
		o.logger = l
	}
}

// WithAdapterOptions configures how dispatch results are written.
func WithAdapterOptions(opts ...server.Option) Option {
	return func(o *serviceOptions) {
		o.adapterOpts = append(o.adapterOpts, opts...)
	}
}

// WithHTTPOptions configures the listener used by Listen and Serve.
func WithHTTPOptions(opts ...HTTPOption) Option {
	return func(o *serviceOptions) {
		o.httpOpts = append(o.httpOpts, opts...)
	}
}

// WithWebSocketOptions configures ServeWebSocket.
func WithWebSocketOptions(opts ...WebSocketOption) Option {
	return func(o *serviceOptions) {
		o.wsOpts = append(o.wsOpts, opts...)
	}
}

// WithStdioOptions configures ServeStdio.
func WithStdioOptions(opts ...StdioOption) Option {
	return func(o *serviceOptions) {
		o.stdioOpts = append(o.stdioOpts, opts...)
	}
}

// Service bundles a composed pipeline with its HTTP adapter and the
// transports that can serve it.
type Service struct {
	name       string
	dispatcher Dispatcher
	adapter    *server.Adapter
	opts       serviceOptions
}

var _ http.Handler = (*Service)(nil)

// NewService composes handlers into a pipeline named name. It fails with
// ErrInvalidArgument when a handler is nil.
func NewService(name string, handlers []Handler, opts ...Option) (*Service, error) {
	options := serviceOptions{logger: middleware.NopLogger{}}
	for _, opt := range opts {
		opt(&options)
	}

	d, err := middleware.Compose(handlers...)
	if err != nil {
		return nil, fmt.Errorf("caffe: service %q: %w", name, err)
	}

	adapterOpts := append([]server.Option{server.WithLogger(options.logger)}, options.adapterOpts...)
	return &Service{
		name:       name,
		dispatcher: d,
		adapter:    server.Adapt(d, adapterOpts...),
		opts:       options,
	}, nil
}

// Brew is NewService under the name the pipeline vocabulary uses.
var Brew = NewService

// Name returns the service name.
func (s *Service) Name() string {
	return s.name
}

// Dispatcher returns the composed pipeline.
func (s *Service) Dispatcher() Dispatcher {
	return s.dispatcher
}

// Handler returns the pipeline adapted to net/http.
func (s *Service) Handler() http.Handler {
	return s.adapter
}

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.adapter.ServeHTTP(w, r)
}

// Listen binds addr and serves in the background. The returned handle
// reports the bound port and shuts the listener down.
func (s *Service) Listen(addr string) (*transport.HTTP, error) {
	return transport.Listen(s.adapter, addr, s.httpOptions()...)
}

// ServeOn serves the service with t until ctx is canceled or t stops.
func (s *Service) ServeOn(ctx context.Context, t transport.Transport) error {
	return t.Serve(ctx, s.adapter)
}

// Serve serves HTTP on addr until ctx is canceled.
// This blocks until the context is canceled or an error occurs.
func (s *Service) Serve(ctx context.Context, addr string) error {
	return s.ServeOn(ctx, transport.NewHTTP(addr, s.httpOptions()...))
}

// ServeWebSocket serves request envelopes over WebSocket on addr.
// This blocks until the context is canceled or an error occurs.
func (s *Service) ServeWebSocket(ctx context.Context, addr string) error {
	opts := append([]WebSocketOption{transport.WithWebSocketLogger(s.opts.logger)}, s.opts.wsOpts...)
	return s.ServeOn(ctx, transport.NewWebSocket(addr, opts...))
}

// ServeStdio serves request envelopes over stdin and stdout.
// This blocks until the input ends, the context is canceled or an error
// occurs.
func (s *Service) ServeStdio(ctx context.Context) error {
	opts := append([]StdioOption{transport.WithStdioLogger(s.opts.logger)}, s.opts.stdioOpts...)
	return s.ServeOn(ctx, transport.NewStdio(opts...))
}

func (s *Service) httpOptions() []HTTPOption {
	return append([]HTTPOption{transport.WithLogger(s.opts.logger)}, s.opts.httpOpts...)
}

// NewClient returns a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	return client.NewHTTP(baseURL, opts...)
}

// Customer is NewClient under the name the pipeline vocabulary uses.
var Customer = NewClient

// Client option re-exports.
var (
	WithClientTimeout = client.WithTimeout
	WithClientHeader  = client.WithHeader
)
