// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/auth"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/game"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/handlers"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/journal"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/middleware"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	j, err := journal.Connect(context.Background())
	if err != nil {
		log.Fatalf("journal setup failed: %v", err)
	}
	if j == nil {
		logger.Info("REDIS_ADDR not set; game results will not be journaled")
	}

	srv := handlers.NewServer(logger, game.ConfigFromEnv(), j)

	mux := http.NewServeMux()

	// The websocket route skips LogMiddleware: the status recorder hides the
	// Hijacker the upgrade needs. It logs through its own connect hooks.
	mux.Handle("/ws", http.HandlerFunc(handlers.WSHandler(logger, srv)))

	mux.Handle("/health", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.HealthHandler(srv),
	)))
	mux.Handle("/rooms", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListRoomsHandler(srv),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
