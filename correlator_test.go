package systembridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelatorRegisterLookupRemove(t *testing.T) {
	c := newCorrelator()

	pending := c.register("req-1", EventFiles)

	got, ok := c.lookup("req-1")
	require.True(t, ok)
	assert.Same(t, pending, got)

	c.remove("req-1")
	_, ok = c.lookup("req-1")
	assert.False(t, ok)
}

func TestPendingRequestMatches(t *testing.T) {
	typed := newPendingRequest(EventFiles)
	assert.True(t, typed.matches(EventFiles))
	assert.False(t, typed.matches(EventFile))

	wildcard := newPendingRequest("")
	assert.True(t, wildcard.matches(EventFiles))
	assert.True(t, wildcard.matches(EventError))
}

func TestPendingRequestFulfillIsIdempotent(t *testing.T) {
	p := newPendingRequest(EventFiles)

	p.fulfill(Response{ID: "req-1", Type: EventFiles})
	// A second fulfill (simulating a race between a timeout removing the
	// entry and a late frame still holding a reference) must not panic or
	// block on an already-buffered channel.
	p.fulfill(Response{ID: "req-1", Type: EventError})

	select {
	case resp := <-p.slot:
		assert.Equal(t, EventFiles, resp.Type)
	case <-time.After(time.Second):
		t.Fatal("expected the first fulfill to have delivered a response")
	}
}

func TestCorrelatorRemoveIsSafeWhenAbsent(t *testing.T) {
	c := newCorrelator()
	assert.NotPanics(t, func() { c.remove("missing") })
}
