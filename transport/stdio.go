package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/felixgeelhaar/caffe/middleware"
	"github.com/felixgeelhaar/caffe/protocol"
)

// Stdio serves an http.Handler over newline-delimited JSON envelopes on
// stdin and stdout.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	logger middleware.Logger

	mu sync.Mutex
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithStdioLogger sets the logger for malformed input and write failures.
func WithStdioLogger(l middleware.Logger) StdioOption {
	return func(s *Stdio) {
		s.logger = l
	}
}

// NewStdio creates a new stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:     os.Stdin,
		out:    os.Stdout,
		logger: middleware.NopLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

// Serve processes one envelope per input line until EOF or ctx is canceled.
func (s *Stdio) Serve(ctx context.Context, handler http.Handler) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			scanErr <- err
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			s.handleLine(ctx, handler, line)
		}
	}
}

func (s *Stdio) handleLine(ctx context.Context, handler http.Handler, line string) {
	var req protocol.Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.logger.Warn("invalid envelope", middleware.F("error", err.Error()))
		s.writeResponse(protocol.NewErrorResponse(nil, protocol.NewInvalidEnvelope(err.Error())))
		return
	}

	s.writeResponse(serveEnvelope(ctx, handler, &req, s.Addr()))
}

func (s *Stdio) writeResponse(resp *protocol.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encode response", middleware.F("error", err.Error()))
		return
	}

	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.logger.Error("write response", middleware.F("error", err.Error()))
	}
}
