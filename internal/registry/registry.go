// internal/registry/registry.go
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/models"
)

// Registry tracks the profile of every live connection. The transport layer
// owns the connection lifecycle; it registers a profile when the client
// submits one and removes it when the connection drops. Everything else
// (room directory, round engine) treats this as the source of truth for
// "is this user still present".
type Registry struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func New() *Registry {
	return &Registry{
		users: make(map[uuid.UUID]*models.User),
	}
}

// Put registers or replaces the profile for a connection.
func (r *Registry) Put(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// Get returns the profile for userID, or nil if the user is not present.
func (r *Registry) Get(userID uuid.UUID) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[userID]
}

// Online reports whether a profile is registered for userID.
func (r *Registry) Online(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[userID]
	return ok
}

// Remove drops the profile for a disconnected user.
func (r *Registry) Remove(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
}

// All returns every live profile as a value copy, for user-list broadcasts.
func (r *Registry) All() []models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out
}

// Count returns the number of live profiles.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}
