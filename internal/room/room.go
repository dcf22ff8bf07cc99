// internal/room/room.go
package room

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Variant selects which round engine a room runs once its game starts.
type Variant string

const (
	// VariantDrawing is the free-draw room: one drawer, everyone else
	// guesses the word through chat.
	VariantDrawing Variant = "drawing"
	// VariantWord is the turn-based letter-guess room (two players taking
	// turns guessing letters of a hidden word).
	VariantWord Variant = "word"
)

// Valid reports whether v names a known variant.
func (v Variant) Valid() bool {
	return v == VariantDrawing || v == VariantWord
}

// MinPlayers is the playable minimum; a game below it cannot continue.
func (v Variant) MinPlayers() int {
	return 2
}

// MaxPlayers is the join capacity for the variant.
func (v Variant) MaxPlayers() int {
	switch v {
	case VariantWord:
		return 2
	default:
		return 8
	}
}

// Room is a named, joinable group with a host, an ordered member list and an
// optional password. The Store is the only mutator; everything handed out of
// the Store is a value snapshot.
type Room struct {
	ID           string
	Name         string
	HostID       uuid.UUID
	Variant      Variant
	InProgress   bool
	passwordHash string
	members      []uuid.UUID // join order; host re-election follows it
	createdAt    time.Time
}

// Info is the broadcastable snapshot of a room. The password hash never
// leaves the store; only its presence does.
type Info struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	HostID      uuid.UUID   `json:"hostId"`
	Variant     Variant     `json:"variant"`
	InProgress  bool        `json:"inProgress"`
	HasPassword bool        `json:"hasPassword"`
	Members     []uuid.UUID `json:"members"`
	MaxPlayers  int         `json:"maxPlayers"`
}

func (r *Room) snapshot() Info {
	members := make([]uuid.UUID, len(r.members))
	copy(members, r.members)
	return Info{
		ID:          r.ID,
		Name:        r.Name,
		HostID:      r.HostID,
		Variant:     r.Variant,
		InProgress:  r.InProgress,
		HasPassword: r.passwordHash != "",
		Members:     members,
		MaxPlayers:  r.Variant.MaxPlayers(),
	}
}

func (r *Room) memberIndex(userID uuid.UUID) int {
	for i, id := range r.members {
		if id == userID {
			return i
		}
	}
	return -1
}

// Directory error taxonomy. All of these refuse the specific operation and
// leave existing state untouched.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrWrongPassword = errors.New("wrong room password")
	ErrInProgress    = errors.New("room game already in progress")
	ErrAlreadyMember = errors.New("already a member of this room")
	ErrRoomFull      = errors.New("room is at capacity")
	ErrNotHost       = errors.New("only the host may do that")
	ErrInvalidName   = errors.New("invalid room name")
	ErrBadVariant    = errors.New("unknown game variant")
)
