package middleware

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// Compose chains handlers into a single Dispatcher.
//
// Handlers run in order on the way in and regain control in reverse order
// on the way out. The returned Dispatcher holds no state between calls, so
// it can be invoked any number of times, concurrently, and used as a
// handler inside another composition.
//
// Compose fails with ErrInvalidArgument if any handler is nil. handlers is
// copied; the caller may reuse it.
func Compose(handlers ...Handler) (Dispatcher, error) {
	for i, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("%w: handler %d is nil", ErrInvalidArgument, i)
		}
	}

	chain := slices.Clone(handlers)
	return func(c *Context, terminal Next) error {
		inv := &invocation{chain: chain, ctx: c, terminal: terminal}
		inv.reached.Store(-1)
		return inv.dispatch(0)
	}, nil
}

// MustCompose is like Compose but panics on invalid input.
func MustCompose(handlers ...Handler) Dispatcher {
	d, err := Compose(handlers...)
	if err != nil {
		panic(err)
	}
	return d
}

// Mix composes loosely typed items. Each item must be a Handler (or a
// Dispatcher), a func(*Context, Next) error, or a slice of either, which is
// composed and nested in place. Anything else fails with ErrInvalidArgument.
func Mix(items ...any) (Dispatcher, error) {
	handlers := make([]Handler, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case Handler:
			handlers = append(handlers, v)
		case func(*Context, Next) error:
			handlers = append(handlers, v)
		case []Handler:
			nested, err := Compose(v...)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			handlers = append(handlers, nested)
		case []func(*Context, Next) error:
			hs := make([]Handler, len(v))
			for j, fn := range v {
				hs[j] = fn
			}
			nested, err := Compose(hs...)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			handlers = append(handlers, nested)
		default:
			return nil, fmt.Errorf("%w: item %d is %T, not a handler", ErrInvalidArgument, i, item)
		}
	}
	return Compose(handlers...)
}

// invocation is the state of a single Dispatcher call.
type invocation struct {
	chain    []Handler
	ctx      *Context
	terminal Next

	// reached is the highest step entered so far.
	reached atomic.Int64
}

func (inv *invocation) dispatch(i int) error {
	if !inv.claim(i) {
		return fmt.Errorf("%w (step %d)", ErrDoubleInvocation, i)
	}

	if i < len(inv.chain) {
		h := inv.chain[i]
		return call(func() error {
			return h(inv.ctx, func() error { return inv.dispatch(i + 1) })
		})
	}

	if inv.terminal == nil {
		return nil
	}
	return call(inv.terminal)
}

// claim records step i as entered. It fails if the chain already reached i
// or a later step. Continuations may run on other goroutines.
func (inv *invocation) claim(i int) bool {
	for {
		reached := inv.reached.Load()
		if int64(i) <= reached {
			return false
		}
		if inv.reached.CompareAndSwap(reached, int64(i)) {
			return true
		}
	}
}

// call runs fn and turns a panic into its returned error.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn()
}
