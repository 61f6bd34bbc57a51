package relay

import "sync"

// Handle is the registry's view of one live connection. Implemented by
// Session; tests substitute fakes.
type Handle interface {
	// Deliver queues a payload for the connection and reports whether it was
	// accepted. A closing or saturated connection refuses delivery; the
	// caller skips it, it never blocks or fails the surrounding fan-out.
	Deliver(payload []byte) bool

	// Takeover closes the connection with a normal-closure code because a
	// newer connection authenticated for the same identity. No notification
	// frame is sent.
	Takeover()
}

// Registry is the single source of truth for which identities are online.
// It holds at most one handle per identity and serializes all mutation
// against lookup and broadcast.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Handle
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Handle)}
}

// Register installs h as the identity's live connection. An existing handle
// for the same identity is superseded and closed.
func (r *Registry) Register(userID string, h Handle) {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = h
	r.mu.Unlock()

	if old != nil && old != h {
		old.Takeover()
	}
}

// Unregister removes the identity's entry only if it still points at h.
// A close callback from a superseded connection must not evict the handle
// registered by a fast reconnect.
func (r *Registry) Unregister(userID string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[userID]; ok && cur == h {
		delete(r.conns, userID)
	}
}

// Lookup returns the identity's current handle. The handle may refuse
// delivery; callers must check the Deliver result.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.conns[userID]
	return h, ok
}

// Broadcast delivers payload to every listed identity that is online and
// writable, and returns how many deliveries were accepted. Offline targets
// are skipped; push delivery is best-effort by design.
func (r *Registry) Broadcast(userIDs []string, payload []byte) int {
	r.mu.RLock()
	handles := make([]Handle, 0, len(userIDs))
	for _, id := range userIDs {
		if h, ok := r.conns[id]; ok {
			handles = append(handles, h)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, h := range handles {
		if h.Deliver(payload) {
			delivered++
		}
	}
	return delivered
}

// Online reports the number of live connections.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
