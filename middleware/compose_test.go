package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestContext() *Context {
	return NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

// recorder collects step names in the order they run.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, s)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func (r *recorder) step(name string) Handler {
	return func(c *Context, next Next) error {
		r.add(name)
		return next()
	}
}

func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("order[%d] = %q, want %q", i, got[i], v)
		}
	}
}

func TestCompose(t *testing.T) {
	t.Run("runs handlers in order", func(t *testing.T) {
		rec := &recorder{}
		d := MustCompose(rec.step("0"), rec.step("1"), rec.step("2"))

		if err := d.Run(newTestContext()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"0", "1", "2"})
	})

	t.Run("empty composition completes", func(t *testing.T) {
		d := MustCompose()
		if err := d.Run(newTestContext()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("empty composition runs terminal once", func(t *testing.T) {
		calls := 0
		d := MustCompose()
		err := d(newTestContext(), func() error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("terminal calls = %d, want 1", calls)
		}
	})

	t.Run("wraps on the way out", func(t *testing.T) {
		rec := &recorder{}
		a := func(c *Context, next Next) error {
			rec.add("a1")
			err := next()
			rec.add("a2")
			return err
		}
		b := func(c *Context, next Next) error {
			rec.add("b")
			return nil
		}

		if err := MustCompose(a, b).Run(newTestContext()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"a1", "b", "a2"})
	})

	t.Run("after code runs once downstream settled", func(t *testing.T) {
		rec := &recorder{}
		outer := func(c *Context, next Next) error {
			rec.add("outer-in")
			err := next()
			rec.add("outer-out")
			return err
		}
		slow := func(c *Context, next Next) error {
			done := make(chan struct{})
			go func() {
				time.Sleep(10 * time.Millisecond)
				rec.add("slow")
				close(done)
			}()
			<-done
			return next()
		}

		err := MustCompose(outer, slow)(newTestContext(), func() error {
			rec.add("terminal")
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"outer-in", "slow", "terminal", "outer-out"})
	})

	t.Run("short-circuits when next is not called", func(t *testing.T) {
		rec := &recorder{}
		stop := func(c *Context, next Next) error {
			rec.add("stop")
			return nil
		}
		terminalCalled := false

		err := MustCompose(rec.step("first"), stop, rec.step("never"))(newTestContext(), func() error {
			terminalCalled = true
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"first", "stop"})
		if terminalCalled {
			t.Error("terminal should not have been called")
		}
	})

	t.Run("does not retain the caller's slice", func(t *testing.T) {
		rec := &recorder{}
		handlers := []Handler{rec.step("a"), rec.step("b")}
		d := MustCompose(handlers...)

		handlers[1] = rec.step("replaced")

		if err := d.Run(newTestContext()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"a", "b"})
	})
}

func TestCompose_RepeatedInvocation(t *testing.T) {
	t.Run("sequential calls are independent", func(t *testing.T) {
		var first, second atomic.Int64
		d := MustCompose(
			func(c *Context, next Next) error {
				first.Add(1)
				return next()
			},
			func(c *Context, next Next) error {
				second.Add(1)
				return next()
			},
		)

		for i := 0; i < 3; i++ {
			if err := d.Run(newTestContext()); err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
		}

		if first.Load() != 3 || second.Load() != 3 {
			t.Errorf("counts = %d, %d, want 3, 3", first.Load(), second.Load())
		}
	})

	t.Run("concurrent calls are independent", func(t *testing.T) {
		const calls = 50
		var counts [3]atomic.Int64

		step := func(i int) Handler {
			return func(c *Context, next Next) error {
				counts[i].Add(1)
				log, _ := Lookup[[]int](c, "log")
				if err := c.Set("log", append(log, i)); err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				return next()
			}
		}
		d := MustCompose(step(0), step(1), step(2))

		var wg sync.WaitGroup
		errs := make(chan error, calls)
		for i := 0; i < calls; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c := newTestContext()
				if err := d.Run(c); err != nil {
					errs <- err
					return
				}
				log, _ := Lookup[[]int](c, "log")
				if len(log) != 3 || log[0] != 0 || log[1] != 1 || log[2] != 2 {
					errs <- errors.New("unexpected per-call order")
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Error(err)
		}
		for i := range counts {
			if got := counts[i].Load(); got != calls {
				t.Errorf("handler %d count = %d, want %d", i, got, calls)
			}
		}
	})
}

func TestCompose_DoubleInvocation(t *testing.T) {
	t.Run("second next call fails", func(t *testing.T) {
		var downstream atomic.Int64
		var secondErr error

		twice := func(c *Context, next Next) error {
			if err := next(); err != nil {
				return err
			}
			secondErr = next()
			return secondErr
		}
		counter := func(c *Context, next Next) error {
			downstream.Add(1)
			return next()
		}

		err := MustCompose(twice, counter).Run(newTestContext())
		if !errors.Is(err, ErrDoubleInvocation) {
			t.Fatalf("expected ErrDoubleInvocation, got %v", err)
		}
		if !strings.Contains(err.Error(), "more than once") {
			t.Errorf("error message %q should mention the double call", err.Error())
		}
		if err != secondErr {
			t.Error("failure should be the error returned by the second next call")
		}
		if downstream.Load() != 1 {
			t.Errorf("downstream calls = %d, want 1", downstream.Load())
		}
	})

	t.Run("calling an earlier continuation fails", func(t *testing.T) {
		var saved Next
		first := func(c *Context, next Next) error {
			saved = next
			return next()
		}
		second := func(c *Context, next Next) error {
			return saved()
		}

		err := MustCompose(first, second).Run(newTestContext())
		if !errors.Is(err, ErrDoubleInvocation) {
			t.Fatalf("expected ErrDoubleInvocation, got %v", err)
		}
	})

	t.Run("guard is per invocation", func(t *testing.T) {
		d := MustCompose(func(c *Context, next Next) error { return next() })
		for i := 0; i < 3; i++ {
			if err := d.Run(newTestContext()); err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
		}
	})
}

func TestCompose_Failures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("panic with error fails with the same value", func(t *testing.T) {
		rec := &recorder{}
		thrower := func(c *Context, next Next) error {
			panic(boom)
		}

		err := MustCompose(rec.step("before"), thrower, rec.step("after")).Run(newTestContext())
		if err != boom {
			t.Fatalf("err = %v, want %v", err, boom)
		}
		assertOrder(t, rec.got(), []string{"before"})
	})

	t.Run("returned error fails with the same value", func(t *testing.T) {
		rec := &recorder{}
		failing := func(c *Context, next Next) error {
			return boom
		}

		err := MustCompose(rec.step("before"), failing, rec.step("after")).Run(newTestContext())
		if err != boom {
			t.Fatalf("err = %v, want %v", err, boom)
		}
		assertOrder(t, rec.got(), []string{"before"})
	})

	t.Run("error delivered from another goroutine", func(t *testing.T) {
		rec := &recorder{}
		async := func(c *Context, next Next) error {
			result := make(chan error, 1)
			go func() {
				time.Sleep(5 * time.Millisecond)
				result <- boom
			}()
			return <-result
		}

		err := MustCompose(rec.step("before"), async, rec.step("after")).Run(newTestContext())
		if err != boom {
			t.Fatalf("err = %v, want %v", err, boom)
		}
		assertOrder(t, rec.got(), []string{"before"})
	})

	t.Run("continuation called from another goroutine", func(t *testing.T) {
		rec := &recorder{}
		async := func(c *Context, next Next) error {
			result := make(chan error, 1)
			go func() { result <- next() }()
			return <-result
		}

		if err := MustCompose(async, rec.step("after")).Run(newTestContext()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"after"})
	})

	t.Run("panic with non-error value", func(t *testing.T) {
		d := MustCompose(func(c *Context, next Next) error {
			panic("kaboom")
		})

		err := d.Run(newTestContext())
		var panicErr *PanicError
		if !errors.As(err, &panicErr) {
			t.Fatalf("expected *PanicError, got %T", err)
		}
		if panicErr.Value != "kaboom" {
			t.Errorf("Value = %v, want kaboom", panicErr.Value)
		}
		if len(panicErr.Stack) == 0 {
			t.Error("expected stack trace")
		}
	})

	t.Run("failure reaches upstream handlers", func(t *testing.T) {
		var seen error
		observer := func(c *Context, next Next) error {
			seen = next()
			return seen
		}

		err := MustCompose(observer, func(c *Context, next Next) error {
			panic(boom)
		}).Run(newTestContext())
		if err != boom || seen != boom {
			t.Errorf("err = %v, seen = %v, want %v", err, seen, boom)
		}
	})

	t.Run("terminal failure propagates", func(t *testing.T) {
		d := MustCompose(func(c *Context, next Next) error { return next() })
		err := d(newTestContext(), func() error { panic(boom) })
		if err != boom {
			t.Errorf("err = %v, want %v", err, boom)
		}
	})
}

func TestCompose_Nesting(t *testing.T) {
	t.Run("outer next becomes the inner terminal", func(t *testing.T) {
		rec := &recorder{}
		inner := MustCompose(rec.step("inner-1"), rec.step("inner-2"))
		outer := MustCompose(
			func(c *Context, next Next) error {
				rec.add("outer-in")
				err := next()
				rec.add("outer-out")
				return err
			},
			inner,
			rec.step("outer-last"),
		)

		if err := outer.Run(newTestContext()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"outer-in", "inner-1", "inner-2", "outer-last", "outer-out"})
	})

	t.Run("nested failure stops the outer chain", func(t *testing.T) {
		boom := errors.New("nested boom")
		rec := &recorder{}
		inner := MustCompose(rec.step("inner"), func(c *Context, next Next) error {
			panic(boom)
		})
		outer := MustCompose(rec.step("outer-first"), inner, rec.step("outer-after"))

		err := outer.Run(newTestContext())
		if err != boom {
			t.Fatalf("err = %v, want %v", err, boom)
		}
		assertOrder(t, rec.got(), []string{"outer-first", "inner"})
	})

	t.Run("nested short-circuit stops the outer chain", func(t *testing.T) {
		rec := &recorder{}
		inner := MustCompose(rec.step("inner"), func(c *Context, next Next) error {
			return nil
		})
		outer := MustCompose(inner, rec.step("outer-after"))

		if err := outer.Run(newTestContext()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"inner"})
	})

	t.Run("nested double invocation surfaces outside", func(t *testing.T) {
		inner := MustCompose(func(c *Context, next Next) error {
			_ = next()
			return next()
		})
		err := MustCompose(inner).Run(newTestContext())
		if !errors.Is(err, ErrDoubleInvocation) {
			t.Fatalf("expected ErrDoubleInvocation, got %v", err)
		}
	})
}

func TestCompose_InvalidArgument(t *testing.T) {
	t.Run("nil handler", func(t *testing.T) {
		ok := func(c *Context, next Next) error { return next() }
		_, err := Compose(ok, nil)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if !strings.Contains(err.Error(), "handler 1") {
			t.Errorf("error %q should name the index", err.Error())
		}
	})

	t.Run("MustCompose panics", func(t *testing.T) {
		defer func() {
			r := recover()
			err, ok := r.(error)
			if !ok || !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument panic, got %v", r)
			}
		}()
		MustCompose(nil)
	})
}

func TestMix(t *testing.T) {
	t.Run("rejects a non-function item", func(t *testing.T) {
		_, err := Mix("not a function")
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects a nil item", func(t *testing.T) {
		_, err := Mix(nil)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects an invalid nested slice", func(t *testing.T) {
		_, err := Mix([]Handler{nil})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("accepts a slice of plain funcs", func(t *testing.T) {
		rec := &recorder{}
		steps := []func(*Context, Next) error{
			func(c *Context, next Next) error {
				rec.add("grind")
				return next()
			},
			func(c *Context, next Next) error {
				rec.add("pour")
				return next()
			},
		}

		d, err := Mix(steps, rec.step("serve"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := d.Run(newTestContext()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"grind", "pour", "serve"})
	})

	t.Run("rejects a nil func in a slice", func(t *testing.T) {
		_, err := Mix([]func(*Context, Next) error{nil})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("accepts handlers, funcs and slices", func(t *testing.T) {
		rec := &recorder{}
		d, err := Mix(
			rec.step("handler"),
			func(c *Context, next Next) error {
				rec.add("func")
				return next()
			},
			[]Handler{rec.step("nested-1"), rec.step("nested-2")},
			MustCompose(rec.step("dispatcher")),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := d.Run(newTestContext()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertOrder(t, rec.got(), []string{"handler", "func", "nested-1", "nested-2", "dispatcher"})
	})
}
