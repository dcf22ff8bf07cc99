// internal/game/drawing.go
package game

import (
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DrawingGame runs the draw-and-guess round loop for one room. One drawer per
// round; everyone else guesses through chat. The first correct guess resolves
// the round.
//
// Exported methods take Mu; unexported helpers assume it is held. Timers fire
// on their own goroutines and must re-take the lock, then check the generation
// they captured at arming time before touching anything.
type DrawingGame struct {
	RoomID string
	Config Config

	Mu     sync.Mutex
	Active bool // a round is in flight
	Ended  bool // game over, engine inert

	Round    int
	DrawerID uuid.UUID
	Scores   map[uuid.UUID]int
	Deadline time.Time

	word      string
	usedWords map[string]struct{}

	// playerOrder is refreshed from LiveMembers at every rotation so joins
	// and leaves between rounds are picked up. turnCursor indexes into it.
	playerOrder []uuid.UUID
	turnCursor  int

	// generation fences every scheduled callback. Any state transition that
	// invalidates pending timers bumps it; a timer whose captured generation
	// no longer matches does nothing.
	generation int
	roundTimer *time.Timer
	nextTimer  *time.Timer

	// strokes is the round's draw log, replayed to reconnecting members.
	strokes []json.RawMessage

	Words []string
	rng   *rand.Rand

	// LiveMembers reports the room's current membership in join order. The
	// engine never stores membership itself.
	LiveMembers func() []uuid.UUID

	// BroadcastFn sends to every room member; BroadcastToFn to one member.
	// RelayFn forwards a stroke or clear to everyone except the sender.
	BroadcastFn   func(e Event)
	BroadcastToFn func(userID uuid.UUID, e Event)
	RelayFn       func(sender uuid.UUID, e Event)

	// OnGameEnd fires once, after the game_end broadcast, with final state.
	// It runs with Mu held; implementations must not call back into the
	// engine.
	OnGameEnd func(reason string, winner uuid.UUID, scores map[uuid.UUID]int, rounds int)
}

// NewDrawingGame wires an engine for one room. Callbacks must be set before
// Start.
func NewDrawingGame(roomID string, cfg Config) *DrawingGame {
	return &DrawingGame{
		RoomID:     roomID,
		Config:     cfg,
		Scores:     make(map[uuid.UUID]int),
		usedWords:  make(map[string]struct{}),
		turnCursor: -1,
		Words:      DrawingWords,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins the first round.
func (g *DrawingGame) Start() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Ended {
		return ErrGameOver
	}
	if g.Active || g.Round > 0 {
		return ErrAlreadyStarted
	}
	if len(g.LiveMembers()) < g.Config.MinPlayers {
		return ErrNotEnoughPlayers
	}
	g.advanceTurn()
	return nil
}

// advanceTurn rotates the drawer and opens the next round. Caller holds Mu.
func (g *DrawingGame) advanceTurn() {
	g.invalidateTimers()
	if g.Ended {
		return
	}

	g.playerOrder = g.LiveMembers()
	if len(g.playerOrder) < g.Config.MinPlayers {
		g.endGame("insufficient players", uuid.Nil)
		return
	}

	// Single modular step; membership churn between rounds is already folded
	// into the refreshed playerOrder, so no scan loop is needed.
	g.turnCursor = (g.turnCursor + 1) % len(g.playerOrder)
	g.DrawerID = g.playerOrder[g.turnCursor]
	for _, id := range g.playerOrder {
		if _, ok := g.Scores[id]; !ok {
			g.Scores[id] = 0
		}
	}

	g.word = pickWord(g.rng, g.Words, g.usedWords)
	g.Round++
	g.Active = true
	g.Deadline = time.Now().Add(g.Config.RoundDuration)
	g.strokes = nil

	gen := g.generation
	g.roundTimer = time.AfterFunc(g.Config.RoundDuration, func() {
		g.handleRoundTimeout(gen)
	})

	snap := g.snapshot()
	g.BroadcastFn(Event{
		Type:   EventRoundStart,
		RoomID: g.RoomID,
		Round:  &snap,
	})
	g.BroadcastToFn(g.DrawerID, Event{
		Type:   EventWordReveal,
		RoomID: g.RoomID,
		Word:   g.word,
	})
}

// handleRoundTimeout fires when the round clock expires without a correct
// guess. The word is revealed and the drawer rotates.
func (g *DrawingGame) handleRoundTimeout(gen int) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if gen != g.generation {
		log.Printf("game %s: stale round timer fired (gen %d, now %d). Ignoring.", g.RoomID, gen, g.generation)
		return
	}
	if !g.Active || g.Ended {
		return
	}
	g.Active = false
	g.BroadcastFn(Event{
		Type:   EventRoundEnd,
		RoomID: g.RoomID,
		Word:   g.word,
		Reason: "timeout",
		Scores: scorePayload(g.Scores),
	})
	g.scheduleNextRound()
}

// SubmitGuess checks a chat message against the secret word. It returns true
// only when the guess resolves the round; every other case (round inactive,
// sender is the drawer, wrong word) returns false and the caller relays the
// message as ordinary chat.
func (g *DrawingGame) SubmitGuess(userID uuid.UUID, text string) bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if !g.Active || g.Ended {
		return false
	}
	if userID == g.DrawerID {
		return false
	}
	if !g.isPlayer(userID) {
		return false
	}
	if normalizeGuess(text) != g.word {
		return false
	}

	g.invalidateTimers()
	g.Active = false
	g.Scores[userID] += g.Config.GuesserPoints
	g.Scores[g.DrawerID] += g.Config.DrawerPoints

	g.BroadcastFn(Event{
		Type:   EventGuessCorrect,
		RoomID: g.RoomID,
		User:   &EventUser{ID: userID},
		Word:   g.word,
		Scores: scorePayload(g.Scores),
	})

	// Both sides of a resolved round score, so either can cross the limit.
	// The higher total wins; the guesser takes ties.
	winner := uuid.Nil
	switch {
	case g.Scores[userID] >= g.Config.WinScore && g.Scores[userID] >= g.Scores[g.DrawerID]:
		winner = userID
	case g.Scores[g.DrawerID] >= g.Config.WinScore:
		winner = g.DrawerID
	}
	if winner != uuid.Nil {
		g.endGame("score limit reached", winner)
		return true
	}
	g.scheduleNextRound()
	return true
}

// scheduleNextRound arms the inter-round delay. Caller holds Mu.
func (g *DrawingGame) scheduleNextRound() {
	gen := g.generation
	g.nextTimer = time.AfterFunc(g.Config.NextRoundDelay, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if gen != g.generation {
			log.Printf("game %s: stale next-round timer fired (gen %d, now %d). Ignoring.", g.RoomID, gen, g.generation)
			return
		}
		if g.Ended {
			return
		}
		g.advanceTurn()
	})
}

// SubmitStroke appends a drawer stroke to the round log and relays it to the
// rest of the room. The payload is opaque to the server.
func (g *DrawingGame) SubmitStroke(userID uuid.UUID, stroke json.RawMessage) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if !g.Active || g.Ended {
		return ErrRoundInactive
	}
	if userID != g.DrawerID {
		return ErrNotDrawer
	}
	g.strokes = append(g.strokes, stroke)
	g.RelayFn(userID, Event{
		Type:   EventStroke,
		RoomID: g.RoomID,
		User:   &EventUser{ID: userID},
		Stroke: stroke,
	})
	return nil
}

// ClearCanvas empties the stroke log and tells everyone else to wipe.
func (g *DrawingGame) ClearCanvas(userID uuid.UUID) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if !g.Active || g.Ended {
		return ErrRoundInactive
	}
	if userID != g.DrawerID {
		return ErrNotDrawer
	}
	g.strokes = nil
	g.RelayFn(userID, Event{
		Type:   EventCanvasClear,
		RoomID: g.RoomID,
		User:   &EventUser{ID: userID},
	})
	return nil
}

// StrokeLog returns a copy of the current round's strokes, oldest first, for
// replay to a reconnecting member.
func (g *DrawingGame) StrokeLog() []json.RawMessage {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	out := make([]json.RawMessage, len(g.strokes))
	copy(out, g.strokes)
	return out
}

// WordFor returns the secret word when userID is the drawer of an active
// round. Everyone else gets nothing; the word stays private to the drawer.
func (g *DrawingGame) WordFor(userID uuid.UUID) (string, bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if !g.Active || g.Ended || userID != g.DrawerID {
		return "", false
	}
	return g.word, true
}

// HandleLeave reacts to a member leaving mid-game. If the drawer left, the
// round is voided (word revealed, no points) and the next drawer rotates in.
// If membership fell below the playable minimum the game ends. Any other
// leaver is dropped from the rotation order and the round runs on untouched.
func (g *DrawingGame) HandleLeave(userID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Ended {
		return
	}

	if len(g.LiveMembers()) < g.Config.MinPlayers {
		g.invalidateTimers()
		g.Active = false
		g.endGame("insufficient players", uuid.Nil)
		return
	}

	wasDrawer := g.Active && userID == g.DrawerID
	g.prunePlayer(userID)
	if wasDrawer {
		g.invalidateTimers()
		g.Active = false
		g.BroadcastFn(Event{
			Type:   EventRoundEnd,
			RoomID: g.RoomID,
			Word:   g.word,
			Reason: "drawer left",
			Scores: scorePayload(g.Scores),
		})
		g.advanceTurn()
	}
}

// prunePlayer drops a departed member from playerOrder, shifting the cursor
// so it keeps naming the same drawer slot. Pruning the drawer itself steps
// the cursor back one, so the next rotation lands on the member after them.
// Caller holds Mu.
func (g *DrawingGame) prunePlayer(userID uuid.UUID) {
	for i, id := range g.playerOrder {
		if id == userID {
			g.playerOrder = append(g.playerOrder[:i], g.playerOrder[i+1:]...)
			if i <= g.turnCursor {
				g.turnCursor--
			}
			return
		}
	}
}

// Stop ends the game on host request. Scores so far are final; no winner is
// declared.
func (g *DrawingGame) Stop() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Ended {
		return
	}
	g.invalidateTimers()
	g.Active = false
	g.Ended = true
	g.BroadcastFn(Event{
		Type:   EventGameStopped,
		RoomID: g.RoomID,
		Scores: scorePayload(g.Scores),
	})
	if g.OnGameEnd != nil {
		g.OnGameEnd("stopped by host", uuid.Nil, g.scoresCopy(), g.Round)
	}
}

// endGame finishes the game with a reason and optional winner. Caller holds
// Mu and has already invalidated timers if needed.
func (g *DrawingGame) endGame(reason string, winner uuid.UUID) {
	g.invalidateTimers()
	g.Active = false
	g.Ended = true
	ev := Event{
		Type:   EventGameEnd,
		RoomID: g.RoomID,
		Reason: reason,
		Scores: scorePayload(g.Scores),
	}
	if winner != uuid.Nil {
		ev.Winner = &EventUser{ID: winner}
	}
	g.BroadcastFn(ev)
	if g.OnGameEnd != nil {
		g.OnGameEnd(reason, winner, g.scoresCopy(), g.Round)
	}
}

// Snapshot returns the public round state for late joiners and reconnects.
func (g *DrawingGame) Snapshot() RoundSnapshot {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.snapshot()
}

// snapshot builds the public view. Caller holds Mu.
func (g *DrawingGame) snapshot() RoundSnapshot {
	snap := RoundSnapshot{
		Active: g.Active,
		Round:  g.Round,
		Scores: scorePayload(g.Scores),
	}
	if g.Active {
		snap.Drawer = &EventUser{ID: g.DrawerID}
		snap.Deadline = g.Deadline.UnixMilli()
		snap.Hint = maskWord(g.word, nil)
	}
	return snap
}

// invalidateTimers bumps the generation and stops pending timers. Callbacks
// already in flight see the bump and drop out. Caller holds Mu.
func (g *DrawingGame) invalidateTimers() {
	g.generation++
	if g.roundTimer != nil {
		g.roundTimer.Stop()
		g.roundTimer = nil
	}
	if g.nextTimer != nil {
		g.nextTimer.Stop()
		g.nextTimer = nil
	}
}

func (g *DrawingGame) isPlayer(userID uuid.UUID) bool {
	for _, id := range g.LiveMembers() {
		if id == userID {
			return true
		}
	}
	return false
}

func (g *DrawingGame) scoresCopy() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(g.Scores))
	for id, s := range g.Scores {
		out[id] = s
	}
	return out
}
