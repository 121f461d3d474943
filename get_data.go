package systembridge

import (
	"context"
	"sync"
	"time"

	"github.com/kataras/golog"
)

// pollInterval bounds how often GetData checks whether every requested
// module has arrived, per spec §4.8's "cooperative sleep ≤ 0.1s".
const pollInterval = 100 * time.Millisecond

// modulesData is the aggregate GetData accumulates into: one optional
// slot per module name, set once any payload (scalar or list) has been
// assigned to it, per spec §3.
type modulesData struct {
	mu   sync.Mutex
	data map[string]any
}

func newModulesData() *modulesData {
	return &modulesData{data: make(map[string]any)}
}

func (m *modulesData) set(module string, payload any) {
	m.mu.Lock()
	m.data[module] = payload
	m.mu.Unlock()
}

func (m *modulesData) get(module string) (any, bool) {
	m.mu.Lock()
	v, ok := m.data[module]
	m.mu.Unlock()
	return v, ok
}

func (m *modulesData) missing(modules []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, mod := range modules {
		if _, ok := m.data[mod]; !ok {
			out = append(out, mod)
		}
	}
	return out
}

// snapshot returns a plain map copy, safe for the caller to keep after
// GetData returns.
func (m *modulesData) snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// GetData drives the composite operation of spec §4.8: it runs the
// listener loop in the background with a push callback that accumulates
// every decoded module payload, sends GET_DATA to ask the server to start
// pushing, then polls until every module in modules has arrived or
// timeout elapses. The background listener is cancelled before GetData
// returns (its goroutine exits once any read already in flight
// completes, see listenUntilCancelled); if it terminated with an error, that error is
// re-raised to the caller (the listener's own error takes precedence
// over a plain DataMissingError, since it explains why nothing arrived).
func (c *Client) GetData(ctx context.Context, modules []string, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = c.config.GetDataTimeout
	}

	aggregate := newModulesData()

	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()

	listenerErrCh := make(chan error, 1)
	go func() {
		callback := func(module string, payload any) {
			aggregate.set(module, payload)
		}
		listenerErrCh <- c.listenUntilCancelled(listenCtx, callback)
	}()

	if err := c.requestGetData(ctx, GetData{Modules: modules}); err != nil {
		cancelListen()
		<-listenerErrCh
		return nil, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if len(aggregate.missing(modules)) == 0 {
			cancelListen()
			listenerErr := <-listenerErrCh
			if listenerErr != nil && listenerErr != context.Canceled {
				return nil, listenerErr
			}
			return aggregate.snapshot(), nil
		}

		select {
		case <-ticker.C:
			continue
		case listenerErr := <-listenerErrCh:
			return nil, listenerErr
		case <-deadline.C:
			cancelListen()
			if listenerErr := <-listenerErrCh; listenerErr != nil && listenerErr != context.Canceled {
				return nil, listenerErr
			}
			missing := aggregate.missing(modules)
			golog.Infof("systembridge: get_data timed out, missing modules: %v", missing)
			return nil, &DataMissingError{Missing: missing}
		case <-ctx.Done():
			cancelListen()
			<-listenerErrCh
			return nil, ctx.Err()
		}
	}
}

// listenUntilCancelled runs Listen's receive-and-dispatch loop in a
// goroutine, checking ctx between frames, and returns whichever comes
// first: ctx being cancelled or the loop erroring out. gorilla/websocket's
// ReadMessage has no context parameter, and closing the connection would
// also break other callers, so a read already in flight when ctx is
// cancelled still completes (its frame is dispatched) before the
// goroutine exits.
func (c *Client) listenUntilCancelled(ctx context.Context, callback PushCallback) error {
	done := make(chan error, 1)
	go func() {
		for ctx.Err() == nil {
			raw, err := c.receiveFrame()
			if err == nil {
				err = c.dispatch(raw, callback, false)
			}
			if err != nil {
				done <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return context.Canceled
	case err := <-done:
		return err
	}
}
