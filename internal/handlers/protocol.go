// internal/handlers/protocol.go
package handlers

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/game"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/models"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/room"
)

// Envelope is the tagged wire frame for every inbound client message. Type
// selects the operation; Data carries the operation payload and is decoded
// against the matching payload struct below.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound message types.
const (
	MsgProfile     = "profile"
	MsgCreateRoom  = "create_room"
	MsgJoinRoom    = "join_room"
	MsgLeaveRoom   = "leave_room"
	MsgCloseRoom   = "close_room"
	MsgStartGame   = "start_game"
	MsgStopGame    = "stop_game"
	MsgChat        = "chat"
	MsgDraw        = "draw"
	MsgClearCanvas = "canvas_clear"
	MsgLetter      = "letter"
	MsgTyping      = "typing"
)

// ProfilePayload announces or updates the sender's display identity.
type ProfilePayload struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// CreateRoomPayload opens a new room with the sender as host.
type CreateRoomPayload struct {
	Name     string       `json:"name"`
	Password string       `json:"password"`
	Variant  room.Variant `json:"variant"`
}

// JoinRoomPayload asks to join an existing room.
type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

// RoomRefPayload covers every operation that only names a room: leave, close,
// start, stop, canvas clear.
type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

// ChatPayload carries a room chat line. In a drawing room with a round in
// flight the text doubles as a guess.
type ChatPayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// DrawPayload carries one stroke. The stroke body is opaque to the server and
// relayed verbatim.
type DrawPayload struct {
	RoomID string          `json:"roomId"`
	Stroke json.RawMessage `json:"stroke"`
}

// LetterPayload is a word-room letter guess.
type LetterPayload struct {
	RoomID string `json:"roomId"`
	Letter string `json:"letter"`
}

// TypingPayload toggles the sender's typing indicator for a room.
type TypingPayload struct {
	RoomID string `json:"roomId"`
	Typing bool   `json:"typing"`
}

// Outbound frames. Game events go out as game.Event, already tagged; the
// types below cover presence, directory and chat traffic.

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errFrame(message string) errorFrame {
	return errorFrame{Type: "error", Message: message}
}

type welcomeFrame struct {
	Type  string        `json:"type"`
	User  models.User   `json:"user"`
	Users []models.User `json:"users"`
	Rooms []room.Info   `json:"rooms"`
}

type usersFrame struct {
	Type  string        `json:"type"`
	Users []models.User `json:"users"`
}

type roomListFrame struct {
	Type  string      `json:"type"`
	Rooms []room.Info `json:"rooms"`
}

type roomStateFrame struct {
	Type string    `json:"type"`
	Room room.Info `json:"room"`
}

type roomEventFrame struct {
	Type   string    `json:"type"` // user_joined, user_left, host_changed, room_closed
	RoomID string    `json:"roomId"`
	UserID uuid.UUID `json:"userId,omitempty"`
	HostID uuid.UUID `json:"hostId,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

type chatFrame struct {
	Type   string      `json:"type"`
	RoomID string      `json:"roomId"`
	User   models.User `json:"user"`
	Text   string      `json:"text"`
}

type typingFrame struct {
	Type   string    `json:"type"`
	RoomID string    `json:"roomId"`
	UserID uuid.UUID `json:"userId"`
	Typing bool      `json:"typing"`
}

type canvasFrame struct {
	Type    string            `json:"type"` // canvas_state: stroke replay on reconnect
	RoomID  string            `json:"roomId"`
	Strokes []json.RawMessage `json:"strokes"`
}

type roundStateFrame struct {
	Type   string             `json:"type"` // round_state: snapshot for late arrivals
	RoomID string             `json:"roomId"`
	Round  game.RoundSnapshot `json:"round"`
}
