package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/caffe/protocol"
)

// SizeLimitOption configures the size limit middleware.
type SizeLimitOption func(*sizeLimitConfig)

type sizeLimitConfig struct {
	logger Logger
}

// WithSizeLimitLogger sets the logger for size limit events.
func WithSizeLimitLogger(l Logger) SizeLimitOption {
	return func(o *sizeLimitConfig) {
		o.logger = l
	}
}

// SizeLimit returns middleware that rejects requests whose body exceeds
// maxBytes. A declared Content-Length over the limit fails immediately;
// otherwise the body is capped so reading past the limit fails.
func SizeLimit(maxBytes int64, opts ...SizeLimitOption) Handler {
	cfg := &sizeLimitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *Context, next Next) error {
		r := c.Request
		if r == nil || r.Body == nil {
			return next()
		}

		if r.ContentLength > maxBytes {
			if cfg.logger != nil {
				cfg.logger.Warn("request size limit exceeded",
					F("size", r.ContentLength),
					F("max", maxBytes),
				)
			}
			return protocol.NewRequestTooLarge(
				fmt.Sprintf("request size %d exceeds limit of %d bytes", r.ContentLength, maxBytes),
			)
		}

		r.Body = http.MaxBytesReader(c.Response, r.Body, maxBytes)
		err := next()

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return protocol.NewRequestTooLarge(
				fmt.Sprintf("request body exceeds limit of %d bytes", tooLarge.Limit),
			)
		}
		return err
	}
}

// Common size limit presets.
const (
	// KB is 1024 bytes.
	KB = 1024
	// MB is 1024 * 1024 bytes.
	MB = 1024 * 1024
)
