package services

import (
	"sync"
)

// CancelToken is a cooperative cancellation signal for one request. The
// orchestrator checks it at every suspension point; nothing is preempted.
type CancelToken struct {
	once sync.Once
	ch   chan struct{}
}

func newCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel sets the signal. Safe to call more than once.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.ch) })
}

// Cancelled reports whether the signal has been set.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done exposes the signal as a channel for select-based waits.
func (t *CancelToken) Done() <-chan struct{} { return t.ch }

// maxPendingCancels bounds how many cancel-before-register ids are remembered.
const maxPendingCancels = 1024

// CancellationRegistry is the process-wide table of in-flight request
// tokens. A cancel that arrives before its request registers is remembered
// and honored the moment registration happens; Clear must run exactly once
// per request so the table cannot grow without bound.
type CancellationRegistry struct {
	mu      sync.Mutex
	tokens  map[string]*CancelToken
	pending map[string]struct{}
	order   []string // insertion order of pending ids, for eviction
}

// NewCancellationRegistry creates an empty registry.
func NewCancellationRegistry() *CancellationRegistry {
	return &CancellationRegistry{
		tokens:  make(map[string]*CancelToken),
		pending: make(map[string]struct{}),
	}
}

// Register creates the token for a request id. If a cancel for the id
// already arrived, the returned token is already set.
func (r *CancellationRegistry) Register(requestID string) *CancelToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	token := newCancelToken()
	if _, cancelled := r.pending[requestID]; cancelled {
		token.Cancel()
		r.dropPending(requestID)
	}
	r.tokens[requestID] = token
	return token
}

// Cancel sets the signal for a request id. Unknown ids are remembered so a
// racing Register still observes the cancellation. Always returns true: a
// stop request is never refused.
func (r *CancellationRegistry) Cancel(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token, ok := r.tokens[requestID]; ok {
		token.Cancel()
		return true
	}
	if _, ok := r.pending[requestID]; !ok {
		if len(r.order) >= maxPendingCancels {
			r.dropPending(r.order[0])
		}
		r.pending[requestID] = struct{}{}
		r.order = append(r.order, requestID)
	}
	return true
}

// Clear discards a request's token. Called exactly once per request on
// every exit path (success, error, cancellation).
func (r *CancellationRegistry) Clear(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, requestID)
	r.dropPending(requestID)
}

// Get returns the live token for a request id, if any.
func (r *CancellationRegistry) Get(requestID string) (*CancelToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[requestID]
	return t, ok
}

func (r *CancellationRegistry) dropPending(requestID string) {
	if _, ok := r.pending[requestID]; !ok {
		return
	}
	delete(r.pending, requestID)
	for i, id := range r.order {
		if id == requestID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
