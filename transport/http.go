package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/caffe/middleware"
)

// HTTP serves an http.Handler on a TCP address.
type HTTP struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	drainDelay      time.Duration
	logger          middleware.Logger

	mu         sync.RWMutex
	listenAddr string
	port       int
	server     *http.Server
	shutdown   *ShutdownManager
	serveErr   chan error
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.readTimeout = d
	}
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.writeTimeout = d
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l middleware.Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = l
	}
}

// NewHTTP creates a new HTTP transport.
func NewHTTP(addr string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:            addr,
		readTimeout:     30 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 30 * time.Second,
		logger:          middleware.NopLogger{},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Listen binds addr and serves handler in the background. The bound port is
// logged. Stop the server with Shutdown.
func Listen(handler http.Handler, addr string, opts ...HTTPOption) (*HTTP, error) {
	h := NewHTTP(addr, opts...)
	if err := h.Start(handler); err != nil {
		return nil, err
	}
	return h, nil
}

// Addr returns the configured address.
func (h *HTTP) Addr() string {
	return h.addr
}

// ListenAddr returns the actual address the server is listening on.
func (h *HTTP) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listenAddr
}

// Port returns the bound TCP port, or 0 before Start.
func (h *HTTP) Port() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.port
}

// Start binds the address and serves handler in the background.
func (h *HTTP) Start(handler http.Handler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server != nil {
		return errors.New("transport: already started")
	}

	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	h.shutdown = NewShutdownManager(ShutdownConfig{
		Timeout:    h.shutdownTimeout,
		DrainDelay: h.drainDelay,
	})
	h.listenAddr = listener.Addr().String()
	if tcp, ok := listener.Addr().(*net.TCPAddr); ok {
		h.port = tcp.Port
	}
	h.server = &http.Server{
		Handler:      h.shutdown.Track(handler),
		ReadTimeout:  h.readTimeout,
		WriteTimeout: h.writeTimeout,
	}
	h.serveErr = make(chan error, 1)

	srv, errCh := h.server, h.serveErr
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	h.logger.Info("serving", middleware.F("port", h.port), middleware.F("addr", h.listenAddr))
	return nil
}

// Serve starts the HTTP server and handles requests until ctx is canceled.
// In-flight requests are drained before it returns.
func (h *HTTP) Serve(ctx context.Context, handler http.Handler) error {
	if err := h.Start(handler); err != nil {
		return err
	}

	h.mu.RLock()
	errCh := h.serveErr
	h.mu.RUnlock()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops accepting new requests, waits for in-flight ones, and
// closes the server.
func (h *HTTP) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	srv, sm := h.server, h.shutdown
	h.mu.RUnlock()
	if srv == nil {
		return nil
	}

	h.logger.Info("shutting down", middleware.F("in_flight", sm.InFlightRequests()))
	drainErr := sm.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	return drainErr
}
