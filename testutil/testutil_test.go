package testutil_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/felixgeelhaar/caffe/client"
	"github.com/felixgeelhaar/caffe/middleware"
	"github.com/felixgeelhaar/caffe/protocol"
	"github.com/felixgeelhaar/caffe/testutil"
)

func TestNewContext(t *testing.T) {
	c, rec := testutil.NewContext(http.MethodPost, "/orders?size=large", strings.NewReader("mocha"))

	if c.Request.Method != http.MethodPost || c.Request.URL.Query().Get("size") != "large" {
		t.Errorf("request = %s %s", c.Request.Method, c.Request.URL)
	}
	if c.Header == nil {
		t.Error("expected response header map")
	}

	c.Response.WriteHeader(http.StatusTeapot)
	if rec.Code != http.StatusTeapot {
		t.Errorf("recorder code = %d", rec.Code)
	}
}

func TestTrace(t *testing.T) {
	t.Run("records onion order", func(t *testing.T) {
		tr := &testutil.Trace{}
		d := middleware.MustCompose(tr.Around("a"), tr.Step("b"), tr.Around("c"))

		c, _ := testutil.NewContext(http.MethodGet, "/", nil)
		if err := d(c, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		testutil.AssertSteps(t, tr, "a:before", "b", "c:before", "c:after", "a:after")
	})

	t.Run("stop short-circuits", func(t *testing.T) {
		tr := &testutil.Trace{}
		d := middleware.MustCompose(tr.Around("a"), tr.Stop("b"), tr.Step("never"))

		c, _ := testutil.NewContext(http.MethodGet, "/", nil)
		if err := d(c, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		testutil.AssertSteps(t, tr, "a:before", "b", "a:after")
	})

	t.Run("reset", func(t *testing.T) {
		tr := &testutil.Trace{}
		tr.Record("x")
		tr.Reset()
		if len(tr.Steps()) != 0 {
			t.Errorf("steps = %v", tr.Steps())
		}
	})
}

func TestTestClient(t *testing.T) {
	type drink struct {
		Name  string `json:"name"`
		Price int    `json:"price"`
	}

	d := middleware.MustCompose(
		middleware.RequestID(),
		middleware.Recover(),
		func(c *middleware.Context, next middleware.Next) error {
			switch c.Request.URL.Path {
			case "/drink":
				return middleware.JSON(http.StatusOK, drink{Name: "latte", Price: 4})(c, next)
			case "/whoami":
				return middleware.Text(http.StatusOK, c.Request.Header.Get("X-Customer"))(c, next)
			case "/broken":
				return errors.New("grinder jammed")
			case "/forbidden":
				return protocol.NewForbidden("staff only")
			}
			return next()
		},
	)

	tc := testutil.NewTestClientWithDispatcher(t, d)
	defer tc.Close()

	t.Run("GetJSON", func(t *testing.T) {
		var got drink
		if err := tc.GetJSON("/drink", &got); err != nil {
			t.Fatalf("GetJSON failed: %v", err)
		}
		if got.Name != "latte" || got.Price != 4 {
			t.Errorf("drink = %+v", got)
		}
	})

	t.Run("status, body and headers", func(t *testing.T) {
		tc.SetHeader("X-Customer", "sam")
		resp := tc.Get("/whoami")
		tc.AssertStatus(resp, http.StatusOK)
		tc.AssertBody(resp, "sam")
		tc.AssertHeader(resp, "Content-Type", protocol.ContentTypeText)
		if resp.Header.Get(protocol.HeaderRequestID) == "" {
			t.Error("expected request id header")
		}
	})

	t.Run("recovered failure", func(t *testing.T) {
		resp := tc.Post("/broken", "")
		tc.AssertStatus(resp, http.StatusInternalServerError)
		tc.AssertErrorCode(resp, protocol.CodeInternalError)
	})

	t.Run("protocol error", func(t *testing.T) {
		resp := tc.Get("/forbidden")
		tc.AssertStatus(resp, http.StatusForbidden)
		tc.AssertErrorCode(resp, protocol.CodeForbidden)
	})

	t.Run("not found", func(t *testing.T) {
		resp := tc.Get("/nowhere")
		tc.AssertStatus(resp, http.StatusNotFound)
		tc.AssertBody(resp, "Not Found")
	})

	t.Run("IDs increase", func(t *testing.T) {
		first := tc.Get("/drink")
		second := tc.Get("/drink")
		if string(first.ID) == string(second.ID) {
			t.Errorf("expected distinct IDs, got %s twice", first.ID)
		}
	})
}

func TestTestClient_Transport(t *testing.T) {
	d := middleware.MustCompose(middleware.Text(http.StatusOK, func(c *middleware.Context) string {
		return c.Request.Method + " " + c.Request.URL.Path
	}))
	tc := testutil.NewTestClientWithDispatcher(t, d)

	rec := testutil.NewRecordingTransport(tc.Transport())
	c := client.New(rec)
	defer c.Close()

	resp, err := c.Post(context.Background(), "/brew", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.Body != "POST /brew" {
		t.Errorf("body = %q", resp.Body)
	}

	if _, err := c.Get(context.Background(), "/menu"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	paths := rec.RecordedRequests()
	if len(paths) != 2 {
		t.Fatalf("recorded %d requests, want 2", len(paths))
	}
	if got := rec.Paths(); got[0] != "POST /brew" || got[1] != "GET /menu" {
		t.Errorf("paths = %v", got)
	}

	rec.Reset()
	if len(rec.RecordedRequests()) != 0 {
		t.Error("expected reset to clear requests")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Get(ctx, "/menu"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
