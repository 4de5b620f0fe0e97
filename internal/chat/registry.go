package chat

import (
	"context"
	"sync"
)

// Factory builds the session of an owner on first use.
type Factory func(ctx context.Context, ownerID string) (*Session, error)

// Registry holds one session per owner for the lifetime of the process.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
}

// NewRegistry creates an empty registry backed by factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// Session returns the owner's session, creating it if needed. A factory
// error leaves nothing cached so the next call retries.
func (r *Registry) Session(ctx context.Context, ownerID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[ownerID]; ok {
		return s, nil
	}
	s, err := r.factory(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	r.sessions[ownerID] = s
	return s, nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
