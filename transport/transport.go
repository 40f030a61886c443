package transport

import (
	"context"
	"net/http"
)

// Transport defines the communication layer interface.
type Transport interface {
	// Serve starts the transport, blocking until ctx is canceled or an error occurs.
	Serve(ctx context.Context, handler http.Handler) error

	// Addr returns the transport's address description.
	Addr() string
}

var (
	_ Transport = (*HTTP)(nil)
	_ Transport = (*WebSocket)(nil)
	_ Transport = (*Stdio)(nil)
)
