// internal/game/errors.go
package game

import "errors"

// Precondition failures. None of these mutate state; callers surface them as
// a sender-only notice (or drop them silently) and never propagate them to
// other room members.
var (
	ErrAlreadyStarted   = errors.New("game already started")
	ErrGameOver         = errors.New("game has ended")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrRoundInactive    = errors.New("no active round")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrNotDrawer        = errors.New("only the drawer may do that")
	ErrBadLetter        = errors.New("guess must be a single letter")
	ErrRepeatLetter     = errors.New("letter already guessed")
)
