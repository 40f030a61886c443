package middleware

import "context"

// Completion is the eventual outcome of a dispatch started with Go.
type Completion struct {
	done chan struct{}
	err  error
}

// Go runs d on its own goroutine and returns immediately. Use it to wait on
// a dispatch alongside other events, such as a timer.
func Go(d Dispatcher, c *Context, terminal Next) *Completion {
	comp := &Completion{done: make(chan struct{})}
	go func() {
		defer close(comp.done)
		comp.err = call(func() error { return d(c, terminal) })
	}()
	return comp
}

// Done is closed once the dispatch has settled.
func (comp *Completion) Done() <-chan struct{} {
	return comp.done
}

// Wait blocks until the dispatch settles and returns its outcome.
func (comp *Completion) Wait() error {
	<-comp.done
	return comp.err
}

// WaitContext is like Wait but gives up when ctx is done. The dispatch
// keeps running; only the wait is abandoned.
func (comp *Completion) WaitContext(ctx context.Context) error {
	select {
	case <-comp.done:
		return comp.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
