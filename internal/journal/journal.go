// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the historian drains.
var DefaultQueueName = "game_results"

// GameResultRecord is the archival summary pushed when a game finishes. Live
// game state never touches Redis; only completed outcomes do.
type GameResultRecord struct {
	RoomID   string         `json:"room_id"`
	Variant  string         `json:"variant"`
	Reason   string         `json:"reason"`
	WinnerID uuid.UUID      `json:"winner_id,omitempty"`
	Scores   map[string]int `json:"scores"`
	Rounds   int            `json:"rounds"`
	EndedAt  int64          `json:"ended_at"`
}

// Journal pushes finished-game records onto a Redis queue for asynchronous
// archival. A nil *Journal is valid and drops everything, so deployments
// without Redis run unchanged.
type Journal struct {
	rdb   *redis.Client
	queue string
}

// Connect builds a Journal from environment configuration:
//   - REDIS_ADDR (empty disables the journal entirely)
//   - REDIS_DB (optional, default 0)
//   - JOURNAL_QUEUE_NAME (optional)
//
// Returns (nil, nil) when REDIS_ADDR is unset.
func Connect(ctx context.Context) (*Journal, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}
	dbIdx := 0
	if s := os.Getenv("REDIS_DB"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			dbIdx = v
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	queue := os.Getenv("JOURNAL_QUEUE_NAME")
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Journal{rdb: rdb, queue: queue}, nil
}

// Publish serializes the record and pushes it onto the queue. No-op on a nil
// receiver.
func (j *Journal) Publish(ctx context.Context, record GameResultRecord) error {
	if j == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameResultRecord: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", j.queue, err)
	}
	return nil
}

// Close releases the Redis connection. No-op on a nil receiver.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.rdb.Close()
}
