// Package protocol defines the envelope types used to carry requests over
// message-oriented transports and the status-bearing error type used when a
// pipeline fails.
//
// HTTP requests reach a pipeline as they are. WebSocket frames and stdio
// lines carry one JSON envelope each:
//
//	type Request struct {
//	    ID     json.RawMessage `json:"id,omitempty"`
//	    Method string          `json:"method"`
//	    Path   string          `json:"path"`
//	    Header http.Header     `json:"header,omitempty"`
//	    Body   string          `json:"body,omitempty"`
//	}
//
//	type Response struct {
//	    ID     json.RawMessage `json:"id,omitempty"`
//	    Status int             `json:"status"`
//	    Header http.Header     `json:"header,omitempty"`
//	    Body   string          `json:"body,omitempty"`
//	    Error  *Error          `json:"error,omitempty"`
//	}
//
// # Errors
//
// Handlers fail with any error. Errors built by this package also carry the
// HTTP status a failure should be reported with:
//
//	return protocol.NewUnauthorized("missing token")
//	return protocol.NewNotFound("no such user")
//
// StatusOf maps an arbitrary error to a status, defaulting to 500.
package protocol
