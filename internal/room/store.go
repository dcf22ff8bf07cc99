// internal/room/store.go
package room

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/auth"
)

// Store is the room directory: the exclusive owner of Room lifecycle. It is
// membership-only — broadcasting the results of a mutation is the caller's
// job, and round state lives in the engine, never here.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
	}
}

// Create registers a new room with host as its sole member. A non-empty
// password is stored as an argon2id hash.
func (s *Store) Create(hostID uuid.UUID, name, password string, variant Variant) (Info, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return Info{}, ErrInvalidName
	}
	if !variant.Valid() {
		return Info{}, ErrBadVariant
	}

	var hash string
	if password != "" {
		h, err := auth.HashRoomPassword(password)
		if err != nil {
			return Info{}, err
		}
		hash = h
	}

	r := &Room{
		ID:           uuid.NewString(),
		Name:         name,
		HostID:       hostID,
		Variant:      variant,
		passwordHash: hash,
		members:      []uuid.UUID{hostID},
		createdAt:    time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r
	return r.snapshot(), nil
}

// Join appends userID to the member list after checking existence, password,
// in-progress state and variant capacity.
func (s *Store) Join(userID uuid.UUID, roomID, password string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Info{}, ErrRoomNotFound
	}
	if r.memberIndex(userID) >= 0 {
		return Info{}, ErrAlreadyMember
	}
	if r.InProgress {
		return Info{}, ErrInProgress
	}
	if len(r.members) >= r.Variant.MaxPlayers() {
		return Info{}, ErrRoomFull
	}
	if r.passwordHash != "" {
		ok, err := auth.VerifyRoomPassword(password, r.passwordHash)
		if err != nil || !ok {
			return Info{}, ErrWrongPassword
		}
	}

	r.members = append(r.members, userID)
	return r.snapshot(), nil
}

// LeaveResult describes what a departure did to the room so the caller can
// broadcast accordingly.
type LeaveResult struct {
	WasMember   bool
	WasHost     bool
	Deleted     bool      // room torn down (empty, or in-game below minimum)
	HostChanged bool      // re-elected exactly once, to the next member in order
	NewHostID   uuid.UUID // valid when HostChanged
	Room        Info      // post-change snapshot; when Deleted, the pre-delete snapshot minus the leaver
}

// Leave removes userID from the room. Policy: an in-progress room whose
// membership falls below the variant minimum is torn down entirely; a lobby
// room survives until its last member leaves. If the departing member was
// host, the next remaining member (by membership order) is elected.
func (s *Store) Leave(userID uuid.UUID, roomID string) (LeaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return LeaveResult{}, ErrRoomNotFound
	}
	idx := r.memberIndex(userID)
	if idx < 0 {
		return LeaveResult{}, nil
	}

	res := LeaveResult{
		WasMember: true,
		WasHost:   r.HostID == userID,
	}
	r.members = append(r.members[:idx], r.members[idx+1:]...)

	if len(r.members) == 0 || (r.InProgress && len(r.members) < r.Variant.MinPlayers()) {
		res.Deleted = true
		res.Room = r.snapshot()
		delete(s.rooms, roomID)
		return res, nil
	}

	if res.WasHost {
		r.HostID = r.members[0]
		res.HostChanged = true
		res.NewHostID = r.HostID
	}
	res.Room = r.snapshot()
	return res, nil
}

// Terminate removes the room on behalf of its host and returns the final
// snapshot so the caller can notify and evict the members.
func (s *Store) Terminate(roomID string, requestedBy uuid.UUID) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Info{}, ErrRoomNotFound
	}
	if r.HostID != requestedBy {
		return Info{}, ErrNotHost
	}
	info := r.snapshot()
	delete(s.rooms, roomID)
	return info, nil
}

// Delete removes a room unconditionally (engine-driven teardown).
func (s *Store) Delete(roomID string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return Info{}, false
	}
	info := r.snapshot()
	delete(s.rooms, roomID)
	return info, true
}

// Get returns a snapshot of the room.
func (s *Store) Get(roomID string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return Info{}, false
	}
	return r.snapshot(), true
}

// Members returns the current ordered member list. The round engine uses
// this as its live-membership source every time it advances a turn.
func (s *Store) Members(roomID string) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]uuid.UUID, len(r.members))
	copy(members, r.members)
	return members
}

// SetInProgress flips the in-progress flag, refusing joins while a game runs.
func (s *Store) SetInProgress(roomID string, inProgress bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		r.InProgress = inProgress
	}
}

// RoomsWithMember lists ids of every room userID belongs to, for disconnect
// cleanup.
func (s *Store) RoomsWithMember(userID uuid.UUID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.rooms {
		if r.memberIndex(userID) >= 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// List returns the public room list, oldest first so the ordering is stable
// across broadcasts.
func (s *Store) List() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]Info, 0, len(s.rooms))
	order := make(map[string]time.Time, len(s.rooms))
	for _, r := range s.rooms {
		infos = append(infos, r.snapshot())
		order[r.ID] = r.createdAt
	}
	sort.Slice(infos, func(i, j int) bool {
		ti, tj := order[infos[i].ID], order[infos[j].ID]
		if ti.Equal(tj) {
			return infos[i].ID < infos[j].ID
		}
		return ti.Before(tj)
	})
	return infos
}
