// Package testutil provides testing utilities for caffe pipelines.
//
// This package helps developers test their pipelines in memory by providing
// context constructors, an order-recording Trace, an in-process client and
// assertion helpers.
//
// Example usage:
//
//	func TestOrders(t *testing.T) {
//	    tr := &testutil.Trace{}
//	    d := middleware.MustCompose(tr.Around("auth"), tr.Step("load"), middleware.JSON(200, order))
//
//	    tc := testutil.NewTestClientWithDispatcher(t, d)
//	    resp := tc.Get("/orders/1")
//	    tc.AssertStatus(resp, 200)
//	    testutil.AssertSteps(t, tr, "auth:before", "load", "auth:after")
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/caffe/client"
	"github.com/felixgeelhaar/caffe/middleware"
	"github.com/felixgeelhaar/caffe/protocol"
	"github.com/felixgeelhaar/caffe/server"
	"github.com/felixgeelhaar/caffe/transport"
)

// NewContext returns a Context for a request to target, backed by a
// ResponseRecorder. body may be nil.
func NewContext(method, target string, body io.Reader) (*middleware.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return middleware.NewContext(rec, httptest.NewRequest(method, target, body)), rec
}

// Trace records the order in which handlers run. It is safe for
// concurrent use.
type Trace struct {
	mu    sync.Mutex
	steps []string
}

// Record appends a step.
func (tr *Trace) Record(step string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, step)
}

// Steps returns a copy of the recorded steps.
func (tr *Trace) Steps() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return slices.Clone(tr.steps)
}

// Reset clears the recorded steps.
func (tr *Trace) Reset() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = nil
}

// Step returns a handler that records name and continues.
func (tr *Trace) Step(name string) middleware.Handler {
	return func(c *middleware.Context, next middleware.Next) error {
		tr.Record(name)
		return next()
	}
}

// Around returns a handler that records name+":before", continues, and
// records name+":after" once the rest of the chain has completed.
func (tr *Trace) Around(name string) middleware.Handler {
	return func(c *middleware.Context, next middleware.Next) error {
		tr.Record(name + ":before")
		err := next()
		tr.Record(name + ":after")
		return err
	}
}

// Stop returns a handler that records name and ends the chain.
func (tr *Trace) Stop(name string) middleware.Handler {
	return func(c *middleware.Context, next middleware.Next) error {
		tr.Record(name)
		return nil
	}
}

// AssertSteps fails the test when the trace does not match want exactly.
func AssertSteps(t testing.TB, tr *Trace, want ...string) {
	t.Helper()
	if got := tr.Steps(); !slices.Equal(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

// TestClient sends envelopes to an http.Handler without a network.
type TestClient struct {
	t       testing.TB
	handler http.Handler
	header  http.Header
	reqID   int64
	mu      sync.Mutex
}

// NewTestClient creates a test client for handler.
func NewTestClient(t testing.TB, handler http.Handler) *TestClient {
	t.Helper()
	return &TestClient{
		t:       t,
		handler: handler,
		header:  make(http.Header),
	}
}

// NewTestClientWithDispatcher adapts d and creates a test client for it.
func NewTestClientWithDispatcher(t testing.TB, d middleware.Dispatcher, opts ...server.Option) *TestClient {
	t.Helper()
	return NewTestClient(t, server.Adapt(d, opts...))
}

// Close closes the test client. It exists so test clients can be swapped
// with real ones.
func (tc *TestClient) Close() {}

// SetHeader sets a header sent with every request.
func (tc *TestClient) SetHeader(key, value string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.header.Set(key, value)
}

// nextID returns the next request ID.
func (tc *TestClient) nextID() json.RawMessage {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.reqID++
	return json.RawMessage(fmt.Sprintf("%d", tc.reqID))
}

// Send serves a raw envelope and returns the response.
func (tc *TestClient) Send(req *protocol.Request) *protocol.Response {
	tc.t.Helper()
	return transport.ServeEnvelope(context.Background(), tc.handler, req)
}

// Do builds an envelope for method and path and serves it.
func (tc *TestClient) Do(method, path string, body []byte) *protocol.Response {
	tc.t.Helper()

	req := protocol.NewRequest(tc.nextID(), method, path, body)
	tc.mu.Lock()
	for k, v := range tc.header {
		req.Header[k] = slices.Clone(v)
	}
	tc.mu.Unlock()

	return tc.Send(req)
}

// Get serves a GET request.
func (tc *TestClient) Get(path string) *protocol.Response {
	tc.t.Helper()
	return tc.Do(http.MethodGet, path, nil)
}

// Post serves a POST request.
func (tc *TestClient) Post(path string, body string) *protocol.Response {
	tc.t.Helper()
	return tc.Do(http.MethodPost, path, []byte(body))
}

// GetJSON serves a GET request and decodes a successful response into out.
func (tc *TestClient) GetJSON(path string, out any) error {
	tc.t.Helper()

	resp := tc.Get(path)
	if err := resp.Err(); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(resp.Body), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Transport returns a client.Transport that serves envelopes in memory, so
// code written against client.Client can be tested without a listener.
func (tc *TestClient) Transport() client.Transport {
	return &memoryTransport{handler: tc.handler}
}

// AssertStatus asserts the response status.
func (tc *TestClient) AssertStatus(resp *protocol.Response, status int) {
	tc.t.Helper()
	if resp.Status != status {
		tc.t.Errorf("status = %d, want %d (body %q)", resp.Status, status, resp.Body)
	}
}

// AssertBody asserts the exact response body.
func (tc *TestClient) AssertBody(resp *protocol.Response, body string) {
	tc.t.Helper()
	if resp.Body != body {
		tc.t.Errorf("body = %q, want %q", resp.Body, body)
	}
}

// AssertHeader asserts a response header value.
func (tc *TestClient) AssertHeader(resp *protocol.Response, key, value string) {
	tc.t.Helper()
	if got := resp.Header.Get(key); got != value {
		tc.t.Errorf("header %s = %q, want %q", key, got, value)
	}
}

// AssertErrorCode asserts that the response describes a protocol error
// with the given code.
func (tc *TestClient) AssertErrorCode(resp *protocol.Response, code string) {
	tc.t.Helper()
	perr := protocol.AsError(resp.Err())
	if perr == nil {
		tc.t.Errorf("expected error %s, got status %d", code, resp.Status)
		return
	}
	if perr.Code != code {
		tc.t.Errorf("error code = %q, want %q", perr.Code, code)
	}
}

type memoryTransport struct {
	handler http.Handler
}

func (m *memoryTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return transport.ServeEnvelope(ctx, m.handler, req), nil
}

func (m *memoryTransport) Close() error {
	return nil
}

// RecordingTransport wraps a client.Transport and records every request.
type RecordingTransport struct {
	next client.Transport

	mu       sync.Mutex
	requests []*protocol.Request
}

// NewRecordingTransport wraps next.
func NewRecordingTransport(next client.Transport) *RecordingTransport {
	return &RecordingTransport{next: next}
}

// Send records req and forwards it.
func (r *RecordingTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	return r.next.Send(ctx, req)
}

// Close closes the wrapped transport.
func (r *RecordingTransport) Close() error {
	return r.next.Close()
}

// RecordedRequests returns all recorded requests.
func (r *RecordingTransport) RecordedRequests() []*protocol.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.requests)
}

// Paths returns the method and path of every recorded request, formatted
// as "METHOD /path".
func (r *RecordingTransport) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.requests))
	for i, req := range r.requests {
		out[i] = strings.TrimSpace(req.Method + " " + req.Path)
	}
	return out
}

// Reset clears the recorded requests.
func (r *RecordingTransport) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}
