// internal/game/config.go
package game

import (
	"os"
	"strconv"
	"time"
)

// Config holds the round-engine tunables. Point values, durations and the
// win threshold are deployment knobs, not game invariants; the defaults
// below are what the public deployment runs.
type Config struct {
	// RoundDuration is the drawing round clock.
	RoundDuration time.Duration
	// TurnDuration is the word variant's per-turn clock.
	TurnDuration time.Duration
	// NextRoundDelay is the cosmetic gap between a round resolving and the
	// next one starting, so the reveal lands before the board clears.
	NextRoundDelay time.Duration
	// GuesserPoints / DrawerPoints are awarded on a correct guess.
	GuesserPoints int
	DrawerPoints  int
	// WinScore ends the game once any player reaches it.
	WinScore int
	// MaxWrongGuesses is the word variant's cumulative miss ceiling.
	MaxWrongGuesses int
	// MinPlayers is the playable minimum below which a game cannot continue.
	MinPlayers int
}

// DefaultConfig returns the documented defaults: 60s rounds, 30s turns, 5s
// between rounds, 10/5 points, first to 50, 6 misses.
func DefaultConfig() Config {
	return Config{
		RoundDuration:   60 * time.Second,
		TurnDuration:    30 * time.Second,
		NextRoundDelay:  5 * time.Second,
		GuesserPoints:   10,
		DrawerPoints:    5,
		WinScore:        50,
		MaxWrongGuesses: 6,
		MinPlayers:      2,
	}
}

// ConfigFromEnv overlays environment overrides on the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.RoundDuration = time.Duration(getEnvInt("ROUND_DURATION_SEC", int(cfg.RoundDuration/time.Second))) * time.Second
	cfg.TurnDuration = time.Duration(getEnvInt("TURN_DURATION_SEC", int(cfg.TurnDuration/time.Second))) * time.Second
	cfg.NextRoundDelay = time.Duration(getEnvInt("NEXT_ROUND_DELAY_SEC", int(cfg.NextRoundDelay/time.Second))) * time.Second
	cfg.GuesserPoints = getEnvInt("GUESSER_POINTS", cfg.GuesserPoints)
	cfg.DrawerPoints = getEnvInt("DRAWER_POINTS", cfg.DrawerPoints)
	cfg.WinScore = getEnvInt("WIN_SCORE", cfg.WinScore)
	cfg.MaxWrongGuesses = getEnvInt("MAX_WRONG_GUESSES", cfg.MaxWrongGuesses)
	return cfg
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
