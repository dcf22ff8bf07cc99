// cmd/historian/main.go is an asynchronous archival service: it pops finished
// game results from the Redis journal queue and persists them to PostgreSQL.
// The coordinator itself never touches the database; only completed outcomes
// flow here.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/journal"
)

// HistorianService drains the journal queue into Postgres in small batches.
type HistorianService struct {
	redisClient *redis.Client
	pool        *pgxpool.Pool
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []journal.GameResultRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs the service from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - DATABASE_URL (required)
//   - HISTORIAN_BATCH_SIZE (default 20)
//   - HISTORIAN_FLUSH_MS (default 500)
//   - JOURNAL_QUEUE_NAME (default journal.DefaultQueueName)
func NewHistorianService() (*HistorianService, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})

	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		pool:        pool,
		batchSize:   batchSize,
		flushDelay:  time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		batch:       make([]journal.GameResultRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}, nil
}

// Run blocks draining the queue until Stop is called.
func (hs *HistorianService) Run() {
	go hs.readRedisLoop()
	log.Println("historian service started.")
	<-hs.ctx.Done()
	hs.flushBatchToDB()
	log.Println("historian shutting down.")
}

// readRedisLoop pops journal entries with BLPop and accumulates them into the
// batch, flushing on size or on the flush ticker.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	queueName := getEnv("JOURNAL_QUEUE_NAME", journal.DefaultQueueName)

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is noticed.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if hs.ctx.Err() != nil {
					return
				}
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var record journal.GameResultRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid game result record: %v\n", err)
				continue
			}
			hs.appendToBatch(record)
		}
	}
}

func (hs *HistorianService) appendToBatch(record journal.GameResultRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, record)
	if len(hs.batch) >= hs.batchSize {
		hs.flushBatchLocked()
	}
}

func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushBatchLocked()
}

// flushBatchLocked writes the pending batch in a single transaction. Caller
// holds batchMu.
func (hs *HistorianService) flushBatchLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]journal.GameResultRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := beginTxFunc(ctx, hs.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := insertGameResultTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertGameResultTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flush batch: %v\n", err)
	} else {
		log.Printf("Flushed %d game results to DB.\n", len(batchCopy))
	}
}

// insertGameResultTx persists one finished game.
func insertGameResultTx(ctx context.Context, tx pgx.Tx, rec journal.GameResultRecord) error {
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO game_results (
			room_id, variant, reason, winner_id, scores, rounds, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, to_timestamp($7 / 1000.0))
	`
	_, err = tx.Exec(ctx, q,
		rec.RoomID, rec.Variant, rec.Reason, rec.WinnerID, scores, rec.Rounds, rec.EndedAt,
	)
	return err
}

// beginTxFunc starts a transaction, runs f, and commits or rolls back.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}

// Stop gracefully stops the service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
	hs.pool.Close()
}

func main() {
	hs, err := NewHistorianService()
	if err != nil {
		log.Fatalf("historian setup failed: %v", err)
	}
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	hs.Stop()
	log.Println("Historian shutdown complete.")
}

func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
