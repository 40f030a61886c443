package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/caffe/protocol"
)

// WebSocketTransport multiplexes envelopes over one WebSocket connection.
type WebSocketTransport struct {
	conn    *websocket.Conn
	pending *pending

	writeMu   sync.Mutex
	closeOnce sync.Once
	readDone  chan struct{}
}

// DialWebSocket connects to a WebSocket transport at url.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocketTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	t := &WebSocketTransport{
		conn:     conn,
		pending:  newPending(),
		readDone: make(chan struct{}),
	}
	go t.readResponses()

	return t, nil
}

// Send writes the request and waits for the response with the same ID.
func (t *WebSocketTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	id := string(req.ID)
	respCh, err := t.pending.add(id)
	if err != nil {
		return nil, err
	}
	defer t.pending.remove(id)

	t.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	} else {
		_ = t.conn.SetWriteDeadline(time.Time{})
	}
	err = t.conn.WriteJSON(req)
	t.writeMu.Unlock()
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

// Close sends a close frame and waits for the reader to stop.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
		<-t.readDone
	})
	return err
}

func (t *WebSocketTransport) readResponses() {
	defer close(t.readDone)
	defer t.pending.close()

	for {
		var resp protocol.Response
		if err := t.conn.ReadJSON(&resp); err != nil {
			return
		}
		t.pending.deliver(&resp)
	}
}
