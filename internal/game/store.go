// internal/game/store.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// Engine is what the coordinator needs from any variant's round engine.
// Variant-specific operations (guesses, strokes, letters) go through the
// concrete type.
type Engine interface {
	Start() error
	Stop()
	HandleLeave(userID uuid.UUID)
	Snapshot() RoundSnapshot
}

// Store maps room id -> active round engine. An entry exists exactly while a
// game is running in that room; tearing the room down removes the entry.
type Store struct {
	mu      sync.Mutex
	engines map[string]Engine
}

func NewStore() *Store {
	return &Store{
		engines: make(map[string]Engine),
	}
}

// Add registers the engine for a room. Returns false if one already exists.
func (s *Store) Add(roomID string, e Engine) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.engines[roomID]; exists {
		return false
	}
	s.engines[roomID] = e
	return true
}

// Get returns the engine for a room, if a game is running there.
func (s *Store) Get(roomID string) (Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[roomID]
	return e, ok
}

// Remove drops the engine for a room and returns it, if present.
func (s *Store) Remove(roomID string) (Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[roomID]
	if ok {
		delete(s.engines, roomID)
	}
	return e, ok
}
