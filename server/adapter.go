package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/felixgeelhaar/caffe/middleware"
	"github.com/felixgeelhaar/caffe/protocol"
)

// ErrorHandler writes the response for a failed dispatch.
type ErrorHandler func(c *middleware.Context, err error)

// Finalizer turns the settled Context into the HTTP response. err is the
// outcome of the dispatch.
type Finalizer func(c *middleware.Context, err error)

// Option configures an Adapter.
type Option func(*Adapter)

// WithErrorHandler replaces the default error response writer.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *Adapter) {
		a.onError = h
	}
}

// WithFinalizer replaces the whole finalization step. The finalizer is
// responsible for writing both successful and failed responses.
func WithFinalizer(f Finalizer) Option {
	return func(a *Adapter) {
		a.finalize = f
	}
}

// WithLogger sets the logger used to report failed dispatches.
func WithLogger(l middleware.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// WithNotFound sets the terminal step run when every handler delegated to
// next. Without it the chain ends silently and an empty Context is
// answered with 404.
func WithNotFound(h middleware.Handler) Option {
	return func(a *Adapter) {
		a.notFound = h
	}
}

// Adapter serves a Dispatcher as an http.Handler.
type Adapter struct {
	dispatcher middleware.Dispatcher
	logger     middleware.Logger
	onError    ErrorHandler
	finalize   Finalizer
	notFound   middleware.Handler
}

var _ http.Handler = (*Adapter)(nil)

// Adapt returns an http.Handler that runs d once per request.
func Adapt(d middleware.Dispatcher, opts ...Option) *Adapter {
	a := &Adapter{
		dispatcher: d,
		logger:     middleware.NopLogger{},
		onError:    WriteError,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.finalize == nil {
		a.finalize = a.defaultFinalize
	}
	return a
}

// Dispatcher returns the dispatcher served by a.
func (a *Adapter) Dispatcher() middleware.Dispatcher {
	return a.dispatcher
}

// ServeHTTP implements http.Handler.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w)
	c := middleware.NewContext(rw, r)

	err := a.dispatcher(c, a.terminal(c))
	if errors.Is(err, http.ErrAbortHandler) {
		panic(http.ErrAbortHandler)
	}

	a.finalize(c, err)
}

func (a *Adapter) terminal(c *middleware.Context) middleware.Next {
	if a.notFound == nil {
		return nil
	}
	return func() error {
		return a.notFound(c, nil)
	}
}

func (a *Adapter) defaultFinalize(c *middleware.Context, err error) {
	if err != nil {
		fields := []middleware.Field{
			middleware.F("status", protocol.StatusOf(err)),
			middleware.F("error", err.Error()),
		}
		if c.Request != nil {
			fields = append(fields,
				middleware.F("method", c.Request.Method),
				middleware.F("path", c.Request.URL.Path),
			)
		}
		if id := middleware.RequestIDFrom(c); id != "" {
			fields = append(fields, middleware.F("request_id", id))
		}
		a.logger.Error("dispatch failed", fields...)

		if !c.Written() {
			a.onError(c, err)
		}
		return
	}

	if writeErr := WriteResponse(c); writeErr != nil {
		a.logger.Debug("write response", middleware.F("error", writeErr.Error()))
	}
}

// WriteResponse writes the Context's Status, Header and Body unless a
// handler already wrote to the raw writer. A missing status defaults to 200
// when a body is set and to 404 otherwise.
func WriteResponse(c *middleware.Context) error {
	if c.Written() {
		return nil
	}

	h := c.Response.Header()
	for k, v := range c.Header {
		h[k] = v
	}

	status := c.Status
	body := c.Body
	if status == 0 {
		if body != nil {
			status = http.StatusOK
		} else {
			status = http.StatusNotFound
			body = []byte(http.StatusText(status))
			h.Set(protocol.HeaderContentType, protocol.ContentTypeText)
		}
	}

	c.Response.WriteHeader(status)
	if len(body) == 0 || (c.Request != nil && c.Request.Method == http.MethodHead) {
		return nil
	}
	_, err := c.Response.Write(body)
	return err
}

// WriteError answers a failed dispatch. A *protocol.Error in err's chain
// supplies the status and a JSON error body; anything else becomes a 500
// with the status text so internal messages stay private.
func WriteError(c *middleware.Context, err error) {
	h := c.Response.Header()
	for k, v := range c.Header {
		h[k] = v
	}

	var perr *protocol.Error
	if !errors.As(err, &perr) {
		h.Set(protocol.HeaderContentType, protocol.ContentTypeText)
		c.Response.WriteHeader(http.StatusInternalServerError)
		_, _ = c.Response.Write([]byte(http.StatusText(http.StatusInternalServerError)))
		return
	}

	status := protocol.StatusOf(perr)
	body, encErr := json.Marshal(protocol.ErrorBody{Error: perr})
	if encErr != nil {
		http.Error(c.Response, perr.Message, status)
		return
	}
	h.Set(protocol.HeaderContentType, protocol.ContentTypeJSON)
	c.Response.WriteHeader(status)
	_, _ = c.Response.Write(body)
}
