package middleware

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/caffe/protocol"
)

// JSON returns a terminal handler that responds with result encoded as JSON.
// result may be a value or a func(*Context) any evaluated per request.
// JSON never calls next.
func JSON(status int, result any) Handler {
	return func(c *Context, _ Next) error {
		v := result
		if fn, ok := result.(func(*Context) any); ok {
			v = fn(c)
		}

		body, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("middleware: encode json: %w", err)
		}

		c.Status = status
		c.header().Set(protocol.HeaderContentType, protocol.ContentTypeJSON)
		c.Body = body
		return nil
	}
}

// Text returns a terminal handler that responds with a plain text body.
// result may be a string, a func(*Context) string evaluated per request, or
// any other value formatted with fmt.Sprint. Text never calls next.
func Text(status int, result any) Handler {
	return func(c *Context, _ Next) error {
		var text string
		switch v := result.(type) {
		case string:
			text = v
		case func(*Context) string:
			text = v(c)
		default:
			text = fmt.Sprint(v)
		}

		c.Status = status
		c.header().Set(protocol.HeaderContentType, protocol.ContentTypeText)
		c.Body = []byte(text)
		return nil
	}
}
