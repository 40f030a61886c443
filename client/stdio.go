package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/felixgeelhaar/caffe/protocol"
)

// StdioTransport talks to a service subprocess over its stdin and stdout.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu      sync.Mutex
	pending *pending
	scanner *bufio.Scanner
	closed  bool

	readWG sync.WaitGroup
}

// NewStdioTransport creates a transport that spawns a subprocess.
func NewStdioTransport(command string, args ...string) (*StdioTransport, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	t := &StdioTransport{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		pending: newPending(),
		scanner: bufio.NewScanner(stdout),
	}
	t.scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	t.readWG.Add(1)
	go t.readResponses()

	return t, nil
}

// Send writes the request as one line and waits for its response.
func (t *StdioTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	id := string(req.ID)
	respCh, err := t.pending.add(id)
	if err != nil {
		return nil, err
	}
	defer t.pending.remove(id)

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	_, err = t.stdin.Write(append(data, '\n'))
	t.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrClosed
		}
		return resp, nil
	}
}

// Close closes the transport and terminates the subprocess.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	// EOF on stdin lets the service exit on its own.
	_ = t.stdin.Close()

	t.readWG.Wait()

	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill() //nolint:errcheck // Process may have already exited
	}

	return t.cmd.Wait()
}

func (t *StdioTransport) readResponses() {
	defer t.readWG.Done()
	defer t.pending.close()

	for t.scanner.Scan() {
		var resp protocol.Response
		if err := json.Unmarshal(t.scanner.Bytes(), &resp); err != nil {
			continue
		}
		t.pending.deliver(&resp)
	}
}

// Stderr returns the stderr reader for the subprocess.
func (t *StdioTransport) Stderr() io.Reader {
	return t.stderr
}
