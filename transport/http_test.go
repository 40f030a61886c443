package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/caffe/middleware"
)

type captureLogger struct {
	mu     sync.Mutex
	infos  []string
	fields [][]middleware.Field
}

func (l *captureLogger) Info(msg string, fields ...middleware.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
	l.fields = append(l.fields, fields)
}
func (l *captureLogger) Error(string, ...middleware.Field) {}
func (l *captureLogger) Debug(string, ...middleware.Field) {}
func (l *captureLogger) Warn(string, ...middleware.Field)  {}

var hello = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "hello "+r.URL.Path)
})

func TestNewHTTP(t *testing.T) {
	t.Run("creates http transport with address", func(t *testing.T) {
		transport := NewHTTP(":8080")

		if transport.Addr() != ":8080" {
			t.Errorf("Addr() = %q, want %q", transport.Addr(), ":8080")
		}
		if transport.Port() != 0 {
			t.Errorf("Port() = %d before start, want 0", transport.Port())
		}
	})

	t.Run("creates http transport with options", func(t *testing.T) {
		transport := NewHTTP(":8080",
			WithReadTimeout(5*time.Second),
			WithWriteTimeout(10*time.Second),
			WithShutdownTimeout(3*time.Second),
			WithShutdownDrainDelay(time.Second),
		)

		if transport.readTimeout != 5*time.Second {
			t.Errorf("readTimeout = %v, want %v", transport.readTimeout, 5*time.Second)
		}
		if transport.writeTimeout != 10*time.Second {
			t.Errorf("writeTimeout = %v, want %v", transport.writeTimeout, 10*time.Second)
		}
		if transport.shutdownTimeout != 3*time.Second {
			t.Errorf("shutdownTimeout = %v, want %v", transport.shutdownTimeout, 3*time.Second)
		}
		if transport.drainDelay != time.Second {
			t.Errorf("drainDelay = %v, want %v", transport.drainDelay, time.Second)
		}
	})
}

func TestListen(t *testing.T) {
	t.Run("serves and logs the bound port", func(t *testing.T) {
		logger := &captureLogger{}
		h, err := Listen(hello, "127.0.0.1:0", WithLogger(logger))
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
		defer h.Shutdown(context.Background())

		if h.Port() == 0 {
			t.Fatal("expected a bound port")
		}

		resp, err := http.Get("http://" + h.ListenAddr() + "/menu")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "hello /menu" {
			t.Errorf("body = %q", body)
		}

		logger.mu.Lock()
		defer logger.mu.Unlock()
		if len(logger.infos) == 0 || logger.infos[0] != "serving" {
			t.Fatalf("expected serving log, got %v", logger.infos)
		}
		found := false
		for _, f := range logger.fields[0] {
			if f.Key == "port" && f.Value == h.Port() {
				found = true
			}
		}
		if !found {
			t.Errorf("serving log should carry the port, got %+v", logger.fields[0])
		}
	})

	t.Run("fails on a bad address", func(t *testing.T) {
		if _, err := Listen(hello, "not-an-address"); err == nil {
			t.Error("expected listen error")
		}
	})

	t.Run("cannot start twice", func(t *testing.T) {
		h, err := Listen(hello, "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}
		defer h.Shutdown(context.Background())

		if err := h.Start(hello); err == nil {
			t.Error("expected error on second start")
		}
	})

	t.Run("shutdown before start is a no-op", func(t *testing.T) {
		if err := NewHTTP(":0").Shutdown(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestHTTP_Serve(t *testing.T) {
	t.Run("returns when context is canceled", func(t *testing.T) {
		h := NewHTTP("127.0.0.1:0")
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- h.Serve(ctx, hello) }()

		deadline := time.Now().Add(time.Second)
		for h.Port() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if h.Port() == 0 {
			t.Fatal("server did not start")
		}

		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
	})

	t.Run("drains in-flight requests", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-release
			_, _ = io.WriteString(w, "done")
		})

		h, err := Listen(slow, "127.0.0.1:0", WithShutdownTimeout(time.Second))
		if err != nil {
			t.Fatalf("Listen: %v", err)
		}

		result := make(chan string, 1)
		go func() {
			resp, err := http.Get("http://" + h.ListenAddr() + "/")
			if err != nil {
				result <- err.Error()
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			result <- string(body)
		}()

		<-started
		shutdownDone := make(chan error, 1)
		go func() { shutdownDone <- h.Shutdown(context.Background()) }()

		time.Sleep(20 * time.Millisecond)
		close(release)

		if got := <-result; got != "done" {
			t.Errorf("in-flight response = %q, want done", got)
		}
		if err := <-shutdownDone; err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
}
