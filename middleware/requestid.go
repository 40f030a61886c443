package middleware

import (
	"github.com/google/uuid"

	"github.com/felixgeelhaar/caffe/protocol"
)

// RequestIDField is the context field holding the request ID.
const RequestIDField = "request_id"

// RequestID returns middleware that attaches a unique request ID to the
// context and the response headers. An ID sent by the client in the
// X-Request-ID header is preserved.
func RequestID() Handler {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator returns middleware that uses a custom ID generator.
func RequestIDWithGenerator(generator func() string) Handler {
	return func(c *Context, next Next) error {
		var id string
		if c.Request != nil {
			id = c.Request.Header.Get(protocol.HeaderRequestID)
		}
		if id == "" {
			id = generator()
		}

		if err := c.Set(RequestIDField, id); err != nil {
			return err
		}
		c.header().Set(protocol.HeaderRequestID, id)
		return next()
	}
}

// RequestIDFrom returns the request ID stored in c, or empty string if not set.
func RequestIDFrom(c *Context) string {
	id, _ := Lookup[string](c, RequestIDField)
	return id
}
