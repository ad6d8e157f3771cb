package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type activeTurn struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks the in-flight turn of every user. Beginning a turn cancels the user's
// previous turn and waits for it to finish, so at most one producer writes for a user.
type Registry struct {
	mu     sync.Mutex
	active map[uuid.UUID]*activeTurn
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{active: make(map[uuid.UUID]*activeTurn)}
}

// Begin registers a new turn for userID. The returned context is canceled when a later turn
// begins or when release is called. release must be called exactly once.
func (r *Registry) Begin(ctx context.Context, userID uuid.UUID) (context.Context, func()) {
	turnCtx, cancel := context.WithCancel(ctx)
	turn := &activeTurn{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	prev := r.active[userID]
	r.active[userID] = turn
	r.mu.Unlock()

	if prev != nil {
		prev.cancel()
		select {
		case <-prev.done:
		case <-turnCtx.Done():
		}
	}

	release := func() {
		r.mu.Lock()
		if r.active[userID] == turn {
			delete(r.active, userID)
		}
		r.mu.Unlock()
		cancel()
		close(turn.done)
	}
	return turnCtx, release
}

// Active reports whether userID has a turn in flight
func (r *Registry) Active(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[userID]
	return ok
}

// Len returns the number of users with a turn in flight
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
