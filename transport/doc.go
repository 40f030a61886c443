// Package transport serves an http.Handler, usually a server.Adapter, over
// HTTP, WebSocket and stdio.
//
// # HTTP Transport
//
// Listen binds an address, logs the bound port and serves in the
// background:
//
//	h, err := transport.Listen(adapter, ":0", transport.WithLogger(logger))
//	defer h.Shutdown(ctx)
//	fmt.Println(h.Port())
//
// Serve is the blocking form. It drains in-flight requests when ctx is
// canceled; requests that arrive while draining get 503.
//
// # Message Transports
//
// WebSocket and Stdio carry protocol.Request envelopes instead of raw HTTP.
// Every envelope is turned into an *http.Request, served by the same
// handler, and answered with a protocol.Response carrying the same ID:
//
//	ws := transport.NewWebSocket(":8081")
//	err := ws.Serve(ctx, adapter)
//
//	err := transport.NewStdio().Serve(ctx, adapter)
//
// ServeEnvelope exposes the conversion for other message-oriented
// transports and for tests.
package transport
