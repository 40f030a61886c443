package middleware

// Inject returns middleware that stores value under name and continues.
// The name is checked when the middleware is built, not per request.
func Inject(name string, value any) (Handler, error) {
	if err := AssertSafeField(name); err != nil {
		return nil, err
	}
	return func(c *Context, next Next) error {
		if err := c.Set(name, value); err != nil {
			return err
		}
		return next()
	}, nil
}

// MustInject is like Inject but panics if name is reserved.
func MustInject(name string, value any) Handler {
	h, err := Inject(name, value)
	if err != nil {
		panic(err)
	}
	return h
}

// Factory computes a value for the current request.
type Factory func(c *Context) (any, error)

// Resolve returns middleware that stores the result of factory under name
// and continues. A factory error fails the chain without calling next.
// Use it to attach per-request resources such as a database handle or the
// authenticated user.
func Resolve(name string, factory Factory) (Handler, error) {
	if err := AssertSafeField(name); err != nil {
		return nil, err
	}
	return func(c *Context, next Next) error {
		v, err := factory(c)
		if err != nil {
			return err
		}
		if err := c.Set(name, v); err != nil {
			return err
		}
		return next()
	}, nil
}

// MustResolve is like Resolve but panics if name is reserved.
func MustResolve(name string, factory Factory) Handler {
	h, err := Resolve(name, factory)
	if err != nil {
		panic(err)
	}
	return h
}
