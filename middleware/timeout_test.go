package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/felixgeelhaar/caffe/protocol"
)

func TestTimeout(t *testing.T) {
	t.Run("allows fast requests through", func(t *testing.T) {
		d := MustCompose(Timeout(time.Second), func(c *Context, next Next) error {
			c.Body = []byte("fast")
			return nil
		})

		c := newTestContext()
		if err := d.Run(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(c.Body) != "fast" {
			t.Errorf("Body = %q", c.Body)
		}
	})

	t.Run("sets deadline on context", func(t *testing.T) {
		var deadline time.Time
		var hasDeadline bool
		d := MustCompose(Timeout(time.Second), func(c *Context, next Next) error {
			deadline, hasDeadline = c.Deadline()
			return nil
		})

		_ = d.Run(newTestContext())

		if !hasDeadline {
			t.Fatal("expected deadline to be set")
		}
		if time.Until(deadline) > time.Second {
			t.Errorf("deadline too far away: %v", deadline)
		}
	})

	t.Run("reports deadline failures as gateway timeout", func(t *testing.T) {
		d := MustCompose(Timeout(10*time.Millisecond), func(c *Context, next Next) error {
			<-c.Done()
			return c.Err()
		})

		err := d.Run(newTestContext())
		if protocol.StatusOf(err) != http.StatusGatewayTimeout {
			t.Errorf("err = %v, want 504", err)
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		d := MustCompose(Timeout(time.Second), func(c *Context, next Next) error {
			return context.Canceled
		})

		if err := d.Run(newTestContext()); err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})

	t.Run("context without request", func(t *testing.T) {
		d := MustCompose(Timeout(time.Second))
		if err := d.Run(&Context{}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
