package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/caffe/protocol"
)

// ServeEnvelope runs handler for a request envelope and captures the
// response it writes. Envelopes that cannot be turned into an HTTP request
// are answered with an INVALID_ENVELOPE error response.
func ServeEnvelope(ctx context.Context, handler http.Handler, req *protocol.Request) *protocol.Response {
	return serveEnvelope(ctx, handler, req, "")
}

func serveEnvelope(ctx context.Context, handler http.Handler, req *protocol.Request, remoteAddr string) (resp *protocol.Response) {
	r, err := newHTTPRequest(ctx, req)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.NewInvalidEnvelope(err.Error()))
	}
	if remoteAddr != "" {
		r.RemoteAddr = remoteAddr
	}

	w := newEnvelopeWriter()
	defer func() {
		if v := recover(); v != nil {
			resp = protocol.NewErrorResponse(req.ID, protocol.NewInternalError(""))
		}
	}()
	handler.ServeHTTP(w, r)

	return protocol.NewResponse(req.ID, w.statusCode(), w.header, w.body.Bytes())
}

func newHTTPRequest(ctx context.Context, req *protocol.Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	path := req.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path %q must start with /", path)
	}

	r, err := http.NewRequestWithContext(ctx, method, path, strings.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		r.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	r.RequestURI = path
	return r, nil
}

// envelopeWriter buffers a response so it can be sent as one message.
type envelopeWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newEnvelopeWriter() *envelopeWriter {
	return &envelopeWriter{header: make(http.Header)}
}

func (w *envelopeWriter) Header() http.Header {
	return w.header
}

func (w *envelopeWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *envelopeWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *envelopeWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
