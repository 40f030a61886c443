package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/caffe/protocol"
)

// HTTPTransport sends each envelope as a plain HTTP request.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// WithHTTPClient sets the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// NewHTTPTransport creates a transport for the service at baseURL.
func NewHTTPTransport(baseURL string, opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Send performs the request and converts the HTTP response to an envelope.
func (t *HTTPTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, t.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Header {
		httpReq.Header[k] = v
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, httpResp.Body); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return protocol.NewResponse(req.ID, httpResp.StatusCode, httpResp.Header, buf.Bytes()), nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
