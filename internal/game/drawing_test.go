// internal/game/drawing_test.go
package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []Event
	playerEvents map[uuid.UUID][]Event
	relayEvents  []Event
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]Event),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToFn(playerID uuid.UUID, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) relayFn(sender uuid.UUID, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.relayEvents = append(mb.relayEvents, ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = nil
	mb.playerEvents = make(map[uuid.UUID][]Event)
	mb.relayEvents = nil
}

func (mb *mockBroadcaster) getLastEvent() *Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.allEvents) == 0 {
		return nil
	}
	return &mb.allEvents[len(mb.allEvents)-1]
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events := mb.playerEvents[playerID]
	if len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

func (mb *mockBroadcaster) eventsOfType(t EventType) []Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []Event
	for _, ev := range mb.allEvents {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// testMembers is a mutable membership list standing in for the room store.
type testMembers struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (tm *testMembers) live() []uuid.UUID {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	out := make([]uuid.UUID, len(tm.ids))
	copy(out, tm.ids)
	return out
}

func (tm *testMembers) remove(id uuid.UUID) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for i, v := range tm.ids {
		if v == id {
			tm.ids = append(tm.ids[:i], tm.ids[i+1:]...)
			return
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RoundDuration = 100 * time.Millisecond
	cfg.NextRoundDelay = 50 * time.Millisecond
	return cfg
}

// setupDrawingGame starts a drawing game with numPlayers members and a
// single-word pool so guesses are deterministic.
func setupDrawingGame(t *testing.T, numPlayers int, cfg Config) (*DrawingGame, *testMembers, *mockBroadcaster) {
	t.Helper()
	mb := newMockBroadcaster()
	tm := &testMembers{}
	for i := 0; i < numPlayers; i++ {
		tm.ids = append(tm.ids, uuid.New())
	}

	g := NewDrawingGame("room-1", cfg)
	g.Words = []string{"apple"}
	g.LiveMembers = tm.live
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToFn = mb.broadcastToFn
	g.RelayFn = mb.relayFn

	require.NoError(t, g.Start())
	return g, tm, mb
}

func TestDrawingStartOpensRoundAndRevealsWordToDrawer(t *testing.T) {
	g, tm, mb := setupDrawingGame(t, 3, testConfig())

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventRoundStart, ev.Type)
	require.NotNil(t, ev.Round)
	assert.True(t, ev.Round.Active)
	assert.Equal(t, 1, ev.Round.Round)
	require.NotNil(t, ev.Round.Drawer)
	assert.Contains(t, tm.live(), ev.Round.Drawer.ID)
	assert.Greater(t, ev.Round.Deadline, time.Now().Add(-time.Second).UnixMilli())
	assert.Empty(t, ev.Word, "public round_start must not carry the word")
	assert.Equal(t, "_ _ _ _ _", ev.Round.Hint)

	// Only the drawer gets the reveal.
	drawer := ev.Round.Drawer.ID
	reveal := mb.getLastPlayerEvent(drawer)
	require.NotNil(t, reveal)
	assert.Equal(t, EventWordReveal, reveal.Type)
	assert.Equal(t, "apple", reveal.Word)
	for _, id := range tm.live() {
		if id != drawer {
			assert.Nil(t, mb.getLastPlayerEvent(id), "non-drawer must not receive the word")
		}
	}

	g.Stop()
}

func TestDrawingStartRequiresMinimumPlayers(t *testing.T) {
	mb := newMockBroadcaster()
	tm := &testMembers{ids: []uuid.UUID{uuid.New()}}
	g := NewDrawingGame("room-1", testConfig())
	g.LiveMembers = tm.live
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToFn = mb.broadcastToFn
	g.RelayFn = mb.relayFn

	assert.ErrorIs(t, g.Start(), ErrNotEnoughPlayers)
}

func TestDrawingStartIsOneShot(t *testing.T) {
	g, _, _ := setupDrawingGame(t, 2, testConfig())
	assert.ErrorIs(t, g.Start(), ErrAlreadyStarted)
	g.Stop()
	assert.ErrorIs(t, g.Start(), ErrGameOver)
}

func TestCorrectGuessEndsRoundAndAwardsPoints(t *testing.T) {
	g, tm, mb := setupDrawingGame(t, 3, testConfig())
	drawer := g.Snapshot().Drawer.ID
	var guesser uuid.UUID
	for _, id := range tm.live() {
		if id != drawer {
			guesser = id
			break
		}
	}
	mb.clear()

	// Drawer's own guess never scores.
	assert.False(t, g.SubmitGuess(drawer, "apple"))
	// A miss stays chat.
	assert.False(t, g.SubmitGuess(guesser, "banana"))
	// Case and whitespace are forgiven.
	require.True(t, g.SubmitGuess(guesser, "  APPLE "))

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventGuessCorrect, ev.Type)
	require.NotNil(t, ev.User)
	assert.Equal(t, guesser, ev.User.ID)
	assert.Equal(t, "apple", ev.Word)
	assert.Equal(t, 10, ev.Scores[guesser.String()])
	assert.Equal(t, 5, ev.Scores[drawer.String()])

	// The round is over; a second correct guess changes nothing.
	assert.False(t, g.SubmitGuess(guesser, "apple"))

	g.Stop()
}

func TestRoundTimeoutRevealsWordAndRotatesDrawer(t *testing.T) {
	cfg := testConfig()
	g, _, mb := setupDrawingGame(t, 3, cfg)
	firstDrawer := g.Snapshot().Drawer.ID
	mb.clear()

	time.Sleep(cfg.RoundDuration + cfg.NextRoundDelay + 100*time.Millisecond)

	ends := mb.eventsOfType(EventRoundEnd)
	require.NotEmpty(t, ends)
	assert.Equal(t, "timeout", ends[0].Reason)
	assert.Equal(t, "apple", ends[0].Word)

	starts := mb.eventsOfType(EventRoundStart)
	require.NotEmpty(t, starts, "a new round should start after the delay")
	require.NotNil(t, starts[0].Round.Drawer)
	assert.NotEqual(t, firstDrawer, starts[0].Round.Drawer.ID, "drawer must rotate")
	assert.Equal(t, 2, starts[0].Round.Round)

	g.Stop()
}

func TestStopSilencesPendingTimers(t *testing.T) {
	cfg := testConfig()
	g, _, mb := setupDrawingGame(t, 2, cfg)
	g.Stop()
	mb.clear()

	time.Sleep(cfg.RoundDuration + cfg.NextRoundDelay + 100*time.Millisecond)

	assert.Empty(t, mb.eventsOfType(EventRoundEnd), "stale round timer must not fire after stop")
	assert.Empty(t, mb.eventsOfType(EventRoundStart), "no round may start after stop")
}

func TestDrawerLeaveVoidsRoundWithoutScoring(t *testing.T) {
	g, tm, mb := setupDrawingGame(t, 3, testConfig())
	drawer := g.Snapshot().Drawer.ID
	mb.clear()

	tm.remove(drawer)
	g.HandleLeave(drawer)

	ends := mb.eventsOfType(EventRoundEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, "drawer left", ends[0].Reason)
	assert.Equal(t, "apple", ends[0].Word)
	for _, sc := range ends[0].Scores {
		assert.Zero(t, sc, "a voided round awards no points")
	}

	starts := mb.eventsOfType(EventRoundStart)
	require.Len(t, starts, 1, "next round should start immediately")
	require.NotNil(t, starts[0].Round.Drawer)
	assert.NotEqual(t, drawer, starts[0].Round.Drawer.ID)

	g.Stop()
}

func TestGameEndsWhenMembershipFallsBelowMinimum(t *testing.T) {
	g, tm, mb := setupDrawingGame(t, 2, testConfig())
	leaver := tm.live()[1]
	mb.clear()

	tm.remove(leaver)
	g.HandleLeave(leaver)

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventGameEnd, ev.Type)
	assert.Equal(t, "insufficient players", ev.Reason)
	assert.Nil(t, ev.Winner)
	assert.True(t, g.Ended)
}

func TestWinScoreEndsGameWithWinner(t *testing.T) {
	cfg := testConfig()
	cfg.WinScore = 10
	g, tm, mb := setupDrawingGame(t, 2, cfg)
	drawer := g.Snapshot().Drawer.ID
	var guesser uuid.UUID
	for _, id := range tm.live() {
		if id != drawer {
			guesser = id
		}
	}

	var ended bool
	var winner uuid.UUID
	g.Mu.Lock()
	g.OnGameEnd = func(reason string, w uuid.UUID, scores map[uuid.UUID]int, rounds int) {
		ended = true
		winner = w
	}
	g.Mu.Unlock()
	mb.clear()

	require.True(t, g.SubmitGuess(guesser, "apple"))

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventGameEnd, ev.Type)
	assert.Equal(t, "score limit reached", ev.Reason)
	require.NotNil(t, ev.Winner)
	assert.Equal(t, guesser, ev.Winner.ID)
	assert.True(t, ended)
	assert.Equal(t, guesser, winner)
}

func TestWinScoreEndsGameWhenDrawerCrossesIt(t *testing.T) {
	// Drawer points can cross the limit before any guesser does. The game
	// must end when any player reaches the win score, not just the guesser.
	cfg := testConfig()
	cfg.GuesserPoints = 1
	cfg.DrawerPoints = 5
	cfg.WinScore = 5
	g, tm, mb := setupDrawingGame(t, 2, cfg)
	drawer := g.Snapshot().Drawer.ID
	var guesser uuid.UUID
	for _, id := range tm.live() {
		if id != drawer {
			guesser = id
		}
	}
	mb.clear()

	require.True(t, g.SubmitGuess(guesser, "apple"))

	ev := mb.getLastEvent()
	require.NotNil(t, ev)
	assert.Equal(t, EventGameEnd, ev.Type)
	assert.Equal(t, "score limit reached", ev.Reason)
	require.NotNil(t, ev.Winner)
	assert.Equal(t, drawer, ev.Winner.ID, "the drawer holds the higher total")
	assert.True(t, g.Ended)
}

func TestNonDrawerLeaveMidRoundKeepsRoundRunning(t *testing.T) {
	g, tm, mb := setupDrawingGame(t, 3, testConfig())
	before := g.Snapshot()
	drawer := before.Drawer.ID
	var leaver uuid.UUID
	for _, id := range tm.live() {
		if id != drawer {
			leaver = id
			break
		}
	}
	mb.clear()

	tm.remove(leaver)
	g.HandleLeave(leaver)

	assert.Empty(t, mb.eventsOfType(EventRoundEnd), "round must not end")
	assert.Empty(t, mb.eventsOfType(EventRoundStart), "round must not restart")

	after := g.Snapshot()
	assert.True(t, after.Active)
	assert.Equal(t, before.Round, after.Round)
	require.NotNil(t, after.Drawer)
	assert.Equal(t, drawer, after.Drawer.ID, "drawer keeps the round")
	assert.Equal(t, before.Deadline, after.Deadline, "deadline is untouched")
	assert.Equal(t, before.Hint, after.Hint)

	// The rotation order drops the leaver right away and the cursor still
	// names the current drawer.
	g.Mu.Lock()
	assert.NotContains(t, g.playerOrder, leaver)
	require.Less(t, g.turnCursor, len(g.playerOrder))
	assert.Equal(t, drawer, g.playerOrder[g.turnCursor])
	g.Mu.Unlock()

	g.Stop()
}

func TestWordForIsDrawerOnlyDuringRound(t *testing.T) {
	g, tm, _ := setupDrawingGame(t, 2, testConfig())
	drawer := g.Snapshot().Drawer.ID
	var other uuid.UUID
	for _, id := range tm.live() {
		if id != drawer {
			other = id
		}
	}

	word, ok := g.WordFor(drawer)
	require.True(t, ok)
	assert.Equal(t, "apple", word)

	_, ok = g.WordFor(other)
	assert.False(t, ok, "non-drawer never sees the word")

	g.Stop()
	_, ok = g.WordFor(drawer)
	assert.False(t, ok, "no reveal once the game is over")
}

func TestStrokesAreDrawerOnlyAndReplayInOrder(t *testing.T) {
	g, tm, mb := setupDrawingGame(t, 2, testConfig())
	drawer := g.Snapshot().Drawer.ID
	var other uuid.UUID
	for _, id := range tm.live() {
		if id != drawer {
			other = id
		}
	}
	mb.clear()

	assert.ErrorIs(t, g.SubmitStroke(other, json.RawMessage(`{"x":1}`)), ErrNotDrawer)

	require.NoError(t, g.SubmitStroke(drawer, json.RawMessage(`{"x":1}`)))
	require.NoError(t, g.SubmitStroke(drawer, json.RawMessage(`{"x":2}`)))
	require.NoError(t, g.SubmitStroke(drawer, json.RawMessage(`{"x":3}`)))

	log := g.StrokeLog()
	require.Len(t, log, 3)
	assert.JSONEq(t, `{"x":1}`, string(log[0]))
	assert.JSONEq(t, `{"x":3}`, string(log[2]))
	assert.Len(t, mb.relayEvents, 3, "each stroke is relayed once")

	require.NoError(t, g.ClearCanvas(drawer))
	assert.Empty(t, g.StrokeLog())
	assert.ErrorIs(t, g.ClearCanvas(other), ErrNotDrawer)

	g.Stop()
}

func TestStopBroadcastsAndFiresCallbackOnce(t *testing.T) {
	g, _, mb := setupDrawingGame(t, 2, testConfig())

	calls := 0
	g.Mu.Lock()
	g.OnGameEnd = func(reason string, w uuid.UUID, scores map[uuid.UUID]int, rounds int) {
		calls++
		assert.Equal(t, "stopped by host", reason)
		assert.Equal(t, 1, rounds)
	}
	g.Mu.Unlock()
	mb.clear()

	g.Stop()
	g.Stop() // idempotent

	assert.Len(t, mb.eventsOfType(EventGameStopped), 1)
	assert.Equal(t, 1, calls)
}
