package middleware

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"
)

// reservedFields holds the names taken by the Context's own surface.
// Lookups are case-insensitive.
var reservedFields = map[string]struct{}{
	"request":  {},
	"response": {},
	"status":   {},
	"header":   {},
	"body":     {},
	"set":      {},
	"get":      {},
	"has":      {},
	"delete":   {},
	"fields":   {},
	"written":  {},
	"deadline": {},
	"done":     {},
	"err":      {},
	"value":    {},
}

// AssertSafeField returns an error if name cannot be used as a dynamic
// field because the Context already exposes something under that name.
func AssertSafeField(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty field name", ErrInvalidArgument)
	}
	if _, ok := reservedFields[strings.ToLower(name)]; ok {
		return &ProtectedFieldError{Name: name}
	}
	return nil
}

// Context is the per-invocation record threaded through a pipeline.
//
// It carries the transport handles, the response being built and any named
// values attached by handlers. A Context belongs to exactly one invocation
// and must not be retained after it completes.
//
// Context implements context.Context by delegating to the request's context.
type Context struct {
	Request  *http.Request
	Response http.ResponseWriter

	// Status, Header and Body describe the response the adapter writes once
	// the chain completes. Handlers that write to Response directly bypass
	// them.
	Status int
	Header http.Header
	Body   []byte

	fields map[string]any
}

var _ context.Context = (*Context)(nil)

// NewContext returns a Context wrapping w and r.
func NewContext(w http.ResponseWriter, r *http.Request) *Context {
	return &Context{
		Request:  r,
		Response: w,
		Header:   make(http.Header),
	}
}

// Set stores value under name. Reserved names are rejected before the
// Context is touched.
func (c *Context) Set(name string, value any) error {
	if err := AssertSafeField(name); err != nil {
		return err
	}
	if c.fields == nil {
		c.fields = make(map[string]any)
	}
	c.fields[name] = value
	return nil
}

// Get returns the value stored under name.
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.fields[name]
	return v, ok
}

// Has reports whether a value is stored under name.
func (c *Context) Has(name string) bool {
	_, ok := c.fields[name]
	return ok
}

// Delete removes name from the dynamic fields.
func (c *Context) Delete(name string) {
	delete(c.fields, name)
}

// Fields returns a copy of the dynamic fields.
func (c *Context) Fields() map[string]any {
	return maps.Clone(c.fields)
}

// Written reports whether a handler wrote to Response directly.
func (c *Context) Written() bool {
	w, ok := c.Response.(interface{ Written() bool })
	return ok && w.Written()
}

// Lookup returns the field stored under name if it holds a T.
func Lookup[T any](c *Context, name string) (T, bool) {
	v, ok := c.fields[name].(T)
	return v, ok
}

func (c *Context) base() context.Context {
	if c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// Deadline delegates to the request's context.
func (c *Context) Deadline() (time.Time, bool) {
	return c.base().Deadline()
}

// Done delegates to the request's context.
func (c *Context) Done() <-chan struct{} {
	return c.base().Done()
}

// Err delegates to the request's context.
func (c *Context) Err() error {
	return c.base().Err()
}

// Value delegates to the request's context.
func (c *Context) Value(key any) any {
	return c.base().Value(key)
}

// header returns c.Header, allocating it for contexts built without NewContext.
func (c *Context) header() http.Header {
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return c.Header
}
