package client

import (
	"sync"

	"github.com/felixgeelhaar/caffe/protocol"
)

// pending routes responses read from a shared connection back to the
// callers waiting on their request IDs.
type pending struct {
	mu      sync.Mutex
	waiters map[string]chan *protocol.Response
	closed  bool
}

func newPending() *pending {
	return &pending{waiters: make(map[string]chan *protocol.Response)}
}

func (p *pending) add(id string) (chan *protocol.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	ch := make(chan *protocol.Response, 1)
	p.waiters[id] = ch
	return ch, nil
}

func (p *pending) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiters, id)
}

// deliver hands resp to its waiter. Responses nobody waits for are dropped.
func (p *pending) deliver(resp *protocol.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.waiters[string(resp.ID)]; ok {
		ch <- resp
		delete(p.waiters, string(resp.ID))
	}
}

// close fails every waiter and rejects later requests.
func (p *pending) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.waiters {
		close(ch)
		delete(p.waiters, id)
	}
}
