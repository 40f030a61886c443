package protocol

import (
	"encoding/json"
	"net/http"
)

// Request is a request carried over a message-oriented transport.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Header http.Header     `json:"header,omitempty"`
	Body   string          `json:"body,omitempty"`
}

// NewRequest creates a request envelope.
func NewRequest(id json.RawMessage, method, path string, body []byte) *Request {
	return &Request{
		ID:     id,
		Method: method,
		Path:   path,
		Header: make(http.Header),
		Body:   string(body),
	}
}

// Response is the reply to a Request. Error is set only when the envelope
// itself could not be processed; pipeline failures are ordinary responses
// with an error status.
type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Status int             `json:"status"`
	Header http.Header     `json:"header,omitempty"`
	Body   string          `json:"body,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// NewResponse creates a response envelope.
func NewResponse(id json.RawMessage, status int, header http.Header, body []byte) *Response {
	return &Response{
		ID:     id,
		Status: status,
		Header: header,
		Body:   string(body),
	}
}

// NewErrorResponse creates a response for an envelope that failed before
// reaching a pipeline.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{
		ID:     id,
		Status: err.Status,
		Error:  err,
	}
}

// Err returns the failure described by the response, or nil for a 1xx-3xx
// status. A JSON error body written by the server is decoded when present.
func (r *Response) Err() error {
	if r.Error != nil {
		return r.Error
	}
	if r.Status < http.StatusBadRequest {
		return nil
	}
	var body ErrorBody
	if err := json.Unmarshal([]byte(r.Body), &body); err == nil && body.Error != nil {
		if body.Error.Status == 0 {
			body.Error.Status = r.Status
		}
		return body.Error
	}
	return NewError(r.Status, "", "")
}
