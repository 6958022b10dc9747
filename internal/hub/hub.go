// Package hub maps authenticated users to their live transport handle.
package hub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
)

// ErrOffline is returned by Deliver when the user has no live handle.
var ErrOffline = errors.New("user not connected")

// Sender is the minimal interface the registry needs from a transport: the
// ability to write one frame to the connected client.
type Sender interface {
	Send(*chatv1.ChatStreamResponse) error
}

type conn struct {
	id     int64
	sender Sender
}

// Registry holds at most one live handle per user. Registering again replaces
// the previous handle, which is left open for its own transport to close.
type Registry struct {
	mu     sync.RWMutex
	conns  map[int64]conn
	nextID int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]conn)}
}

// Register stores s as the live handle for userID and returns a connection id
// to pass to Unregister when the transport closes.
func (r *Registry) Register(userID int64, s Sender) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.conns[userID] = conn{id: r.nextID, sender: s}
	return r.nextID
}

// Lookup returns the live handle for userID, if any.
func (r *Registry) Lookup(userID int64) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[userID]
	if !ok {
		return nil, false
	}
	return c.sender, true
}

// Unregister removes the mapping for userID only while connID is still the
// current connection, so closing a superseded transport keeps its replacement.
func (r *Registry) Unregister(userID, connID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[userID]
	if !ok || c.id != connID {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Restore puts a dropped handle back under its original connection id while
// userID has no live handle. A newer connection is never replaced. It reports
// whether the handle was restored.
func (r *Registry) Restore(userID, connID int64, s Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[userID]; ok {
		return false
	}
	r.conns[userID] = conn{id: connID, sender: s}
	return true
}

// Len returns the number of users with a live handle.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Deliver writes resp to the user's live handle. A failed write drops the
// handle so later deliveries fall back to push until the transport calls
// Restore.
func (r *Registry) Deliver(userID int64, resp *chatv1.ChatStreamResponse) error {
	r.mu.RLock()
	c, ok := r.conns[userID]
	r.mu.RUnlock()

	if !ok {
		return ErrOffline
	}
	if err := c.sender.Send(resp); err != nil {
		r.Unregister(userID, c.id)
		return fmt.Errorf("deliver to user %d: %w", userID, err)
	}
	return nil
}
