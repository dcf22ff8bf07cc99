// internal/handlers/ws.go
package handlers

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/auth"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/broadcast"
	"github.com/Roshan-Pokharel/anonymous-chat-backend/internal/middleware"
)

const sessionCookieName = "session"

// originPatterns reads the comma-separated ALLOWED_ORIGINS list, defaulting
// to permissive for local development.
func originPatterns() []string {
	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ensureSession resolves the caller's user id from the session cookie, or
// mints a fresh session and sets the cookie. Identity survives reconnects
// only as long as the cookie and the signing key do; there is no account
// behind it.
func ensureSession(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if id, err := auth.VerifyToken(c.Value); err == nil {
			return id, nil
		}
		// Invalid or expired cookie falls through to a fresh session.
	}

	id, token, err := auth.NewSession()
	if err != nil {
		return uuid.Nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// WSHandler upgrades the connection and runs its read/write pumps. One
// websocket per user: a second connection for the same session displaces the
// first.
func WSHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	origins := originPatterns()
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		userID, err := ensureSession(w, r)
		if err != nil {
			logger.Warnf("session setup failed for %s: %v", remoteAddr, err)
			http.Error(w, "session error", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: origins,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "game" {
			c.Close(BadSubprotocolError, "client must speak the game subprotocol")
			return
		}

		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		conn := &broadcast.Conn{
			UserID: userID,
			Out:    make(chan []byte, 32),
			Cancel: cancel,
		}
		s.Gateway.Register(conn)
		logger.Infof("user %v (%s) connected", userID, remoteAddr)

		s.HandleConnect(userID)

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, s, conn, logger)

		// Only the connection that still owns the session tears the user
		// down; a displaced connection's exit must not evict the fresh one.
		if s.Gateway.Unregister(conn) {
			s.HandleDisconnect(userID)
		}
		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, nil)
	}
}

// readPump pulls frames off the websocket and hands them to the server until
// the connection dies or the context is cancelled.
func readPump(ctx context.Context, c *websocket.Conn, s *Server, conn *broadcast.Conn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("websocket closed normally for user %v", conn.UserID)
			} else if strings.Contains(err.Error(), "context canceled") {
				// Displaced or shutting down; nothing to report.
			} else {
				logger.Warnf("read error for user %v: %v (CloseStatus: %d)", conn.UserID, err, closeStatus)
			}
			return
		}

		if typ != websocket.MessageText {
			logger.Warnf("received non-text message type %d from user %v. Ignoring.", typ, conn.UserID)
			continue
		}

		s.HandleMessage(conn.UserID, msg)
	}
}

// writePump drains the connection's outbound queue onto the websocket and
// keeps the peer alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *broadcast.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-conn.Out:
			if !ok {
				// Displaced by a reconnect; the new connection owns the user.
				_ = c.Close(websocket.StatusGoingAway, "session resumed elsewhere")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for user %v: %v", conn.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("failed to ping user %v: %v. Assuming disconnect.", conn.UserID, err)
				return
			}
		}
	}
}
