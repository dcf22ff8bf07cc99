// internal/game/events.go
package game

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventType is an enum-like type for round-engine broadcasts.
type EventType string

const (
	EventRoundStart   EventType = "round_start"   // public round state: drawer/turn holder, scores, deadline
	EventWordReveal   EventType = "word_reveal"   // private: the secret word, drawer only
	EventGuessCorrect EventType = "guess_correct" // a chat guess matched the word
	EventRoundEnd     EventType = "round_end"     // word revealed; reason says why
	EventGameEnd      EventType = "game_end"      // final scores and winner
	EventGameStopped  EventType = "game_stopped"  // host stopped the game
	EventTurn         EventType = "turn"          // word variant: whose turn it is now
	EventLetterResult EventType = "letter_result" // word variant: outcome of a letter guess
	EventStroke       EventType = "draw"          // drawing relay
	EventCanvasClear  EventType = "canvas_clear"
)

// EventUser identifies a user within event payloads.
type EventUser struct {
	ID uuid.UUID `json:"id"`
}

// Event is the broadcastable unit the engines emit through their injected
// broadcast functions. Every field is a value copied out of engine state at
// emission time; nothing in an Event aliases live state.
type Event struct {
	Type   EventType      `json:"type"`
	RoomID string         `json:"roomId"`
	User   *EventUser     `json:"user,omitempty"`
	Winner *EventUser     `json:"winner,omitempty"`
	Round  *RoundSnapshot `json:"round,omitempty"`

	Word   string `json:"word,omitempty"`   // revealed word (private reveal / round end)
	Letter string `json:"letter,omitempty"` // word variant: the guessed letter
	Reason string `json:"reason,omitempty"` // round_end / game_end cause

	Hit    *bool          `json:"hit,omitempty"` // word variant: letter outcome
	Scores map[string]int `json:"scores,omitempty"`

	Stroke json.RawMessage `json:"stroke,omitempty"` // drawing relay payload, passed through verbatim
}

// RoundSnapshot is the public view of a round: everything every member may
// see. The secret word never appears here; it travels only in the targeted
// word_reveal event.
type RoundSnapshot struct {
	Active   bool       `json:"active"`
	Round    int        `json:"round"`
	Drawer   *EventUser `json:"drawer,omitempty"`     // drawing variant
	Turn     *EventUser `json:"turnPlayer,omitempty"` // word variant
	Deadline int64      `json:"deadline,omitempty"`   // unix millis

	Scores map[string]int `json:"scores"`

	Hint           string   `json:"hint,omitempty"`           // masked word, e.g. "_ _ _ _ _"
	GuessedLetters []string `json:"guessedLetters,omitempty"` // word variant
	WrongGuesses   int      `json:"wrongGuesses,omitempty"`   // word variant
	MaxWrong       int      `json:"maxWrong,omitempty"`       // word variant
}

// scorePayload copies a score map into string-keyed form for JSON.
func scorePayload(scores map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(scores))
	for id, s := range scores {
		out[id.String()] = s
	}
	return out
}
