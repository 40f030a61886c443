package middleware

import "slices"

// Chain builds a handler sequence incrementally.
type Chain struct {
	handlers []Handler
}

// Use creates a new chain starting with the given handlers.
func Use(handlers ...Handler) *Chain {
	return &Chain{
		handlers: slices.Clone(handlers),
	}
}

// Append adds handlers to the chain and returns the updated chain.
func (c *Chain) Append(handlers ...Handler) *Chain {
	c.handlers = append(c.handlers, handlers...)
	return c
}

// Handlers returns a copy of the handlers collected so far.
func (c *Chain) Handlers() []Handler {
	return slices.Clone(c.handlers)
}

// Compose composes the chain into a Dispatcher.
func (c *Chain) Compose() (Dispatcher, error) {
	return Compose(c.handlers...)
}

// Then composes the chain followed by final.
func (c *Chain) Then(final Handler) (Dispatcher, error) {
	return Compose(append(c.Handlers(), final)...)
}
