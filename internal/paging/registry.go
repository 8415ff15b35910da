package paging

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks open sessions by id so that stateless callers (HTTP
// handlers, tool calls) can address them.
type Registry[T any] struct {
	mu       sync.Mutex
	sessions map[string]*Session[T]
	defaults Options[T]
}

// NewRegistry returns a registry whose sessions start from defaults.
func NewRegistry[T any](defaults Options[T]) *Registry[T] {
	return &Registry[T]{
		sessions: make(map[string]*Session[T]),
		defaults: defaults,
	}
}

// Open snapshots items into a new session for owner. A positive pageSize
// overrides the registry default. Expired sessions are swept first.
func (r *Registry[T]) Open(owner string, items []T, pageSize int) (string, *Session[T]) {
	opts := r.defaults
	if pageSize > 0 {
		opts.PageSize = pageSize
	}
	s := NewSession(owner, items, opts)
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.sessions[id] = s
	return id, s
}

// Get returns the session with id. Sessions that have ended are still
// returned until swept, so callers can render their disabled state.
func (r *Registry[T]) Get(id string) (*Session[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// sweepLocked drops closed and expired sessions.
func (r *Registry[T]) sweepLocked() {
	for id, s := range r.sessions {
		if s.Done() {
			delete(r.sessions, id)
		}
	}
}
