package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/felixgeelhaar/caffe/protocol"
	"github.com/felixgeelhaar/caffe/schema"
)

// Bind returns middleware that decodes the JSON request body into a T and
// stores it under name. The body is first checked against the schema derived
// from T; a mismatch fails with a 400 whose data lists every violation.
//
// The schema is derived once, when the middleware is built.
func Bind[T any](name string) (Handler, error) {
	if err := AssertSafeField(name); err != nil {
		return nil, err
	}
	s, err := schema.For[T]()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	return func(c *Context, next Next) error {
		if c.Request == nil || c.Request.Body == nil {
			return protocol.NewBadRequest("request body is required")
		}
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			// Wrapped so SizeLimit still sees *http.MaxBytesError.
			return fmt.Errorf("middleware: read body: %w", err)
		}
		if len(data) == 0 {
			return protocol.NewBadRequest("request body is required")
		}

		if err := s.Validate(data); err != nil {
			var vs schema.Violations
			if errors.As(err, &vs) {
				return protocol.NewBadRequest(vs.Error()).WithData(vs)
			}
			return protocol.NewBadRequest(err.Error())
		}

		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return protocol.NewBadRequest("invalid body: " + err.Error())
		}
		if err := c.Set(name, v); err != nil {
			return err
		}
		return next()
	}, nil
}

// MustBind is like Bind but panics if name is reserved or T has no schema.
func MustBind[T any](name string) Handler {
	h, err := Bind[T](name)
	if err != nil {
		panic(err)
	}
	return h
}
