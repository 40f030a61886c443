package middleware

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/caffe/protocol"
)

// FailureHandler turns a failure from the rest of the chain into a response.
// Returning a non-nil error keeps the chain failed.
type FailureHandler func(c *Context, err error) error

// Recover returns middleware that catches failures from the rest of the
// chain, including panics, and answers them with a JSON error body. The
// status comes from a *protocol.Error in the failure, or 500.
func Recover() Handler {
	return RecoverWithHandler(defaultFailureHandler)
}

// RecoverWithHandler returns middleware that hands failures to handler.
// This allows for custom mapping such as logging or alerting.
func RecoverWithHandler(handler FailureHandler) Handler {
	return func(c *Context, next Next) error {
		err := next()
		if err == nil {
			return nil
		}
		return handler(c, err)
	}
}

// defaultFailureHandler writes the failure as a JSON error body. Messages of
// errors that are not *protocol.Error are not exposed.
func defaultFailureHandler(c *Context, err error) error {
	if c.Written() {
		return nil
	}

	perr := protocol.AsError(err)
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		perr = protocol.NewInternalError(fmt.Sprintf("panic: %v", panicErr.Value))
	}

	body, encErr := json.Marshal(protocol.ErrorBody{Error: perr})
	if encErr != nil {
		return err
	}

	c.Status = perr.Status
	c.header().Set(protocol.HeaderContentType, protocol.ContentTypeJSON)
	c.Body = body
	return nil
}
