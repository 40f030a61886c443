package middleware

// Next continues to the remainder of the chain. It returns the outcome of
// every step it delegated to.
type Next func() error

// Handler is a single step of a pipeline. It may run code before and after
// calling next, call it at most once, or return without calling it to stop
// the chain.
type Handler func(c *Context, next Next) error

// Dispatcher is a composed chain of handlers. It has the same shape as a
// Handler so dispatchers nest inside other compositions without special
// casing; the next passed to a dispatcher is its terminal step.
type Dispatcher = Handler

// Run invokes h with no terminal step.
func (h Handler) Run(c *Context) error {
	return h(c, nil)
}
