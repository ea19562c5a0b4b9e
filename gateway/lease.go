package gateway

import (
	"errors"
	"sync"
)

// ErrTerminalBusy is returned when a terminal already has an active widget.
var ErrTerminalBusy = errors.New("terminal already has an active checkout widget")

// LeaseRegistry grants exclusive input ownership of a terminal to the payment
// widget for the duration of a checkout session. The hosting UI must not
// intercept input while the widget is active; the lease must be released on
// every exit path.
type LeaseRegistry struct {
	mu     sync.Mutex
	active map[string]string // terminal id -> session id
}

func NewLeaseRegistry() *LeaseRegistry {
	return &LeaseRegistry{active: make(map[string]string)}
}

// Acquire takes the terminal for the given session. It fails with
// ErrTerminalBusy if another session holds it.
func (r *LeaseRegistry) Acquire(terminalID, sessionID string) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if holder, ok := r.active[terminalID]; ok && holder != sessionID {
		return nil, ErrTerminalBusy
	}
	r.active[terminalID] = sessionID
	return &Lease{registry: r, terminalID: terminalID, sessionID: sessionID}, nil
}

// Held reports whether any session currently owns the terminal.
func (r *LeaseRegistry) Held(terminalID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[terminalID]
	return ok
}

func (r *LeaseRegistry) release(terminalID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if holder, ok := r.active[terminalID]; ok && holder == sessionID {
		delete(r.active, terminalID)
	}
}

// Lease is exclusive widget ownership of one terminal. Release is idempotent
// and safe to call from any exit path.
type Lease struct {
	registry   *LeaseRegistry
	terminalID string
	sessionID  string
	once       sync.Once
}

func (l *Lease) Release() {
	l.once.Do(func() {
		l.registry.release(l.terminalID, l.sessionID)
	})
}
