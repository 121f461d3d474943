package systembridge

import "sync"

// pendingRequest is one correlator entry: a single-assignment completion
// slot plus the response type the caller expects back (empty means "any
// type matches"), per spec §4.5.
type pendingRequest struct {
	slot     chan Response
	expected EventType
	once     sync.Once
}

func newPendingRequest(expected EventType) *pendingRequest {
	return &pendingRequest{
		slot:     make(chan Response, 1),
		expected: expected,
	}
}

// fulfill writes resp into the slot exactly once. A second call (a race
// between a timeout removing the entry and a late frame still holding a
// reference to it) is silently discarded, per spec §3's invariant that a
// completion slot is written at most once.
func (p *pendingRequest) fulfill(resp Response) {
	p.once.Do(func() {
		p.slot <- resp
	})
}

// correlator is the concurrency-safe pending-request table: id →
// (completion slot, expected response-type). Insertion happens
// synchronously before the socket write; removal is always done by the
// caller that inserted the entry (spec §4.5) — the listener only ever
// fulfills, it never deletes.
type correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string]*pendingRequest)}
}

// register inserts a new entry for id, overwriting any existing entry for
// the same id (collisions are caller responsibility per spec §3).
func (c *correlator) register(id string, expected EventType) *pendingRequest {
	p := newPendingRequest(expected)
	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()
	return p
}

// remove deletes the entry for id. Safe to call even if already removed.
func (c *correlator) remove(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// lookup returns the entry registered for id, if any.
func (c *correlator) lookup(id string) (*pendingRequest, bool) {
	c.mu.Lock()
	p, ok := c.pending[id]
	c.mu.Unlock()
	return p, ok
}

// matches reports whether p is willing to accept a frame carrying typ:
// either it has no type filter, or typ equals the expected type.
func (p *pendingRequest) matches(typ EventType) bool {
	return p.expected == "" || p.expected == typ
}
