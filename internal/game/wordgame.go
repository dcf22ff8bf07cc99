// internal/game/wordgame.go
package game

import (
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// WordGame runs the letter-guessing loop for one room. The server picks a
// secret word nobody can see; members take turns guessing letters against a
// shared miss budget. A correct letter keeps the turn, a miss passes it, and
// whoever reveals the last letter scores the round.
//
// Locking and timer fencing follow the same shape as DrawingGame: exported
// methods take Mu, helpers assume it, and every timer carries the generation
// it was armed under.
type WordGame struct {
	RoomID string
	Config Config

	Mu     sync.Mutex
	Active bool
	Ended  bool

	Round      int
	TurnHolder uuid.UUID
	Scores     map[uuid.UUID]int
	Deadline   time.Time

	word         string
	revealed     []bool
	guessed      map[string]struct{}
	wrongGuesses int
	usedWords    map[string]struct{}

	playerOrder []uuid.UUID
	turnCursor  int

	generation int
	turnTimer  *time.Timer
	nextTimer  *time.Timer

	Words []string
	rng   *rand.Rand

	LiveMembers func() []uuid.UUID

	// BroadcastFn sends to every room member. The word variant has no private
	// payloads; the secret stays server side until the round resolves.
	BroadcastFn func(e Event)

	// OnGameEnd runs with Mu held; implementations must not call back into
	// the engine.
	OnGameEnd func(reason string, winner uuid.UUID, scores map[uuid.UUID]int, rounds int)
}

// NewWordGame wires an engine for one room. Callbacks must be set before
// Start.
func NewWordGame(roomID string, cfg Config) *WordGame {
	return &WordGame{
		RoomID:     roomID,
		Config:     cfg,
		Scores:     make(map[uuid.UUID]int),
		usedWords:  make(map[string]struct{}),
		turnCursor: -1,
		Words:      GuessWords,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins the first round.
func (g *WordGame) Start() error {
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
	g.startRound()
	return nil
}

// startRound picks a fresh word and opens a round with the next player on
// turn. Caller holds Mu.
func (g *WordGame) startRound() {
	g.invalidateTimers()
	if g.Ended {
		return
	}

	g.playerOrder = g.LiveMembers()
	if len(g.playerOrder) < g.Config.MinPlayers {
		g.endGame("insufficient players", uuid.Nil)
		return
	}
	for _, id := range g.playerOrder {
		if _, ok := g.Scores[id]; !ok {
			g.Scores[id] = 0
		}
	}

	g.word = pickWord(g.rng, g.Words, g.usedWords)
	g.revealed = make([]bool, len(g.word))
	g.guessed = make(map[string]struct{})
	g.wrongGuesses = 0
	g.Round++
	g.Active = true

	g.turnCursor = (g.turnCursor + 1) % len(g.playerOrder)
	g.TurnHolder = g.playerOrder[g.turnCursor]
	g.armTurnTimer()

	snap := g.snapshot()
	g.BroadcastFn(Event{
		Type:   EventRoundStart,
		RoomID: g.RoomID,
		Round:  &snap,
	})
}

// passTurn moves the turn to the next live member and restarts the clock.
// Caller holds Mu.
func (g *WordGame) passTurn() {
	g.invalidateTimers()
	if g.Ended || !g.Active {
		return
	}

	g.playerOrder = g.LiveMembers()
	if len(g.playerOrder) < g.Config.MinPlayers {
		g.Active = false
		g.endGame("insufficient players", uuid.Nil)
		return
	}

	g.turnCursor = (g.turnCursor + 1) % len(g.playerOrder)
	g.TurnHolder = g.playerOrder[g.turnCursor]
	g.armTurnTimer()

	g.BroadcastFn(Event{
		Type:   EventTurn,
		RoomID: g.RoomID,
		User:   &EventUser{ID: g.TurnHolder},
	})
}

// armTurnTimer sets the per-turn deadline and its expiry callback. Caller
// holds Mu.
func (g *WordGame) armTurnTimer() {
	g.Deadline = time.Now().Add(g.Config.TurnDuration)
	gen := g.generation
	g.turnTimer = time.AfterFunc(g.Config.TurnDuration, func() {
		g.handleTurnTimeout(gen)
	})
}

// handleTurnTimeout passes the turn when the holder ran out the clock. A
// timeout costs the turn, not a miss.
func (g *WordGame) handleTurnTimeout(gen int) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if gen != g.generation {
		log.Printf("game %s: stale turn timer fired (gen %d, now %d). Ignoring.", g.RoomID, gen, g.generation)
		return
	}
	if !g.Active || g.Ended {
		return
	}
	g.passTurn()
}

// GuessLetter applies a single-letter guess from the turn holder. A hit
// reveals every occurrence and keeps the turn; revealing the last letter
// scores the round. A miss spends one of the shared miss budget and passes
// the turn; exhausting the budget forfeits the round.
func (g *WordGame) GuessLetter(userID uuid.UUID, letter string) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Ended {
		return ErrGameOver
	}
	if !g.Active {
		return ErrRoundInactive
	}
	if userID != g.TurnHolder {
		return ErrNotYourTurn
	}

	l := normalizeGuess(letter)
	if len([]rune(l)) != 1 || !unicode.IsLetter([]rune(l)[0]) {
		return ErrBadLetter
	}
	if _, dup := g.guessed[l]; dup {
		return ErrRepeatLetter
	}
	g.guessed[l] = struct{}{}

	hit := false
	for i, ch := range g.word {
		if string(ch) == l {
			g.revealed[i] = true
			hit = true
		}
	}

	if !hit {
		g.wrongGuesses++
	}

	snap := g.snapshot()
	h := hit
	g.BroadcastFn(Event{
		Type:   EventLetterResult,
		RoomID: g.RoomID,
		User:   &EventUser{ID: userID},
		Letter: l,
		Hit:    &h,
		Round:  &snap,
	})

	switch {
	case hit && g.fullyRevealed():
		g.resolveSolved(userID)
	case hit:
		// Correct letter keeps the turn; reset the clock so a streak is
		// not cut short by the previous deadline.
		g.invalidateTimers()
		g.armTurnTimer()
	case g.wrongGuesses >= g.Config.MaxWrongGuesses:
		g.resolveForfeit()
	default:
		g.passTurn()
	}
	return nil
}

// resolveSolved closes out a round won by solver. Caller holds Mu.
func (g *WordGame) resolveSolved(solver uuid.UUID) {
	g.invalidateTimers()
	g.Active = false
	g.Scores[solver] += g.Config.GuesserPoints
	g.BroadcastFn(Event{
		Type:   EventRoundEnd,
		RoomID: g.RoomID,
		User:   &EventUser{ID: solver},
		Word:   g.word,
		Reason: "solved",
		Scores: scorePayload(g.Scores),
	})
	if g.Scores[solver] >= g.Config.WinScore {
		g.endGame("score limit reached", solver)
		return
	}
	g.scheduleNextRound()
}

// resolveForfeit closes out a round lost to the miss budget. Nobody scores.
// Caller holds Mu.
func (g *WordGame) resolveForfeit() {
	g.invalidateTimers()
	g.Active = false
	g.BroadcastFn(Event{
		Type:   EventRoundEnd,
		RoomID: g.RoomID,
		Word:   g.word,
		Reason: "out of guesses",
		Scores: scorePayload(g.Scores),
	})
	g.scheduleNextRound()
}

// scheduleNextRound arms the inter-round delay. Caller holds Mu.
func (g *WordGame) scheduleNextRound() {
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
		g.startRound()
	})
}

// HandleLeave reacts to a member leaving mid-game. Below the playable minimum
// the game ends; if the departed player held the turn it passes on. Any other
// leaver is dropped from the rotation order without touching the round.
func (g *WordGame) HandleLeave(userID uuid.UUID) {
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

	wasHolder := g.Active && userID == g.TurnHolder
	g.prunePlayer(userID)
	if wasHolder {
		g.passTurn()
	}
}

// prunePlayer drops a departed member from playerOrder, shifting the cursor
// so it keeps naming the same turn slot. Pruning the holder itself steps the
// cursor back one, so the next pass lands on the member after them. Caller
// holds Mu.
func (g *WordGame) prunePlayer(userID uuid.UUID) {
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
func (g *WordGame) Stop() {
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
// Mu.
func (g *WordGame) endGame(reason string, winner uuid.UUID) {
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
func (g *WordGame) Snapshot() RoundSnapshot {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.snapshot()
}

// snapshot builds the public view. The secret word itself never leaves the
// engine until the round resolves. Caller holds Mu.
func (g *WordGame) snapshot() RoundSnapshot {
	snap := RoundSnapshot{
		Active: g.Active,
		Round:  g.Round,
		Scores: scorePayload(g.Scores),
	}
	if g.Active {
		snap.Turn = &EventUser{ID: g.TurnHolder}
		snap.Deadline = g.Deadline.UnixMilli()
		snap.Hint = maskWord(g.word, g.revealed)
		snap.WrongGuesses = g.wrongGuesses
		snap.MaxWrong = g.Config.MaxWrongGuesses

		letters := make([]string, 0, len(g.guessed))
		for l := range g.guessed {
			letters = append(letters, l)
		}
		sort.Strings(letters)
		snap.GuessedLetters = letters
	}
	return snap
}

func (g *WordGame) fullyRevealed() bool {
	for _, r := range g.revealed {
		if !r {
			return false
		}
	}
	return true
}

// invalidateTimers bumps the generation and stops pending timers. Caller
// holds Mu.
func (g *WordGame) invalidateTimers() {
	g.generation++
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
	if g.nextTimer != nil {
		g.nextTimer.Stop()
		g.nextTimer = nil
	}
}

func (g *WordGame) scoresCopy() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(g.Scores))
	for id, s := range g.Scores {
		out[id] = s
	}
	return out
}
