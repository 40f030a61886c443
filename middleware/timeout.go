package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/caffe/protocol"
)

// Timeout returns middleware that attaches a deadline to the request
// context. The rest of the chain is not interrupted; handlers that honor the
// context stop early, and a failure caused by the deadline is reported as
// 504.
func Timeout(d time.Duration) Handler {
	return func(c *Context, next Next) error {
		if c.Request == nil {
			return next()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		err := next()
		if errors.Is(err, context.DeadlineExceeded) {
			return protocol.NewGatewayTimeout("request timed out")
		}
		return err
	}
}
