// Package caffe provides benchmarks for key operations.
package caffe_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/caffe"
	"github.com/felixgeelhaar/caffe/middleware"
	"github.com/felixgeelhaar/caffe/testutil"
)

func passThrough(c *caffe.Context, next caffe.Next) error {
	return next()
}

func chainOf(n int) []caffe.Handler {
	handlers := make([]caffe.Handler, n)
	for i := range handlers {
		handlers[i] = passThrough
	}
	return handlers
}

// BenchmarkDispatch measures a bare dispatch through chains of growing length.
func BenchmarkDispatch(b *testing.B) {
	for _, n := range []int{1, 10, 100} {
		d := caffe.MustCompose(chainOf(n)...)
		c, _ := testutil.NewContext(http.MethodGet, "/", nil)

		b.Run(fmt.Sprintf("handlers=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := d(c, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDispatch_Parallel measures concurrent invocations of one dispatcher.
func BenchmarkDispatch_Parallel(b *testing.B) {
	d := caffe.MustCompose(chainOf(10)...)

	b.RunParallel(func(pb *testing.PB) {
		c, _ := testutil.NewContext(http.MethodGet, "/", nil)
		for pb.Next() {
			if err := d(c, nil); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkService_ServeHTTP measures a full request through the default stack.
func BenchmarkService_ServeHTTP(b *testing.B) {
	handlers := append(middleware.DefaultStack(middleware.NopLogger{}),
		caffe.JSON(http.StatusOK, map[string]string{"drink": "latte"}))
	svc, err := caffe.NewService("bench", handlers)
	if err != nil {
		b.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		svc.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("status = %d", rec.Code)
		}
	}
}

// BenchmarkMix measures composing loosely typed items.
func BenchmarkMix(b *testing.B) {
	nested := chainOf(5)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := caffe.Mix(nested, passThrough, caffe.Text(http.StatusOK, "ok")); err != nil {
			b.Fatal(err)
		}
	}
}
