// Package client provides a client for services built on caffe pipelines.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/caffe/protocol"
)

// ErrClosed is returned by transports after Close.
var ErrClosed = errors.New("client: transport closed")

// Transport defines the interface for client-side transport.
type Transport interface {
	// Send sends a request and waits for a response.
	Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
	// Close closes the transport connection.
	Close() error
}

// Client sends request envelopes through a Transport.
type Client struct {
	transport Transport
	opts      clientOptions

	requestID atomic.Int64
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	header  http.Header
}

// WithTimeout sets the default timeout for requests.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(o *clientOptions) {
		o.header.Add(key, value)
	}
}

// New creates a new client with the given transport.
func New(transport Transport, opts ...Option) *Client {
	options := clientOptions{
		timeout: 30 * time.Second,
		header:  make(http.Header),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		transport: transport,
		opts:      options,
	}
}

// NewHTTP creates a client that talks plain HTTP to baseURL.
func NewHTTP(baseURL string, opts ...Option) *Client {
	return New(NewHTTPTransport(baseURL), opts...)
}

// Do sends a request and returns the response. Error statuses written by
// the pipeline are not errors here; use Response.Err to inspect them. An
// envelope the server rejected is returned together with its error.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*protocol.Response, error) {
	id := c.requestID.Add(1)

	req := protocol.NewRequest(json.RawMessage(strconv.FormatInt(id, 10)), method, path, body)
	for k, v := range c.opts.header {
		req.Header[k] = append([]string(nil), v...)
	}

	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.Error != nil {
		return resp, fmt.Errorf("%s %s: %w", method, path, resp.Error)
	}

	return resp, nil
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string) (*protocol.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post sends a POST request with the given body.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*protocol.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// GetJSON sends a GET request and decodes a successful JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// PostJSON encodes in as the request body and decodes a successful JSON
// response into out. out may be nil.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.transport.Close()
}

func decode(resp *protocol.Response, out any) error {
	if err := resp.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(bytes.NewReader([]byte(resp.Body))).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
