// internal/broadcast/gateway.go
package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Conn is a single user's outbound leg. The write pump in the handlers
// package drains Out and pushes frames onto the websocket; Cancel tears the
// connection's goroutines down.
type Conn struct {
	UserID uuid.UUID
	Out    chan []byte
	Cancel context.CancelFunc
}

// push enqueues pre-marshaled bytes non-blockingly. A full or closed channel
// drops the frame; the read loop will notice a dead peer soon enough.
func (c *Conn) push(data []byte) {
	defer func() {
		// Out may have been closed by Unregister while we were selecting.
		_ = recover()
	}()
	select {
	case c.Out <- data:
	default:
		log.Printf("broadcast: outbound queue full for user %s, dropping frame", c.UserID)
	}
}

// Gateway is the sole fan-out path for state-change notifications. It holds
// every live connection and emits serialized snapshots to audiences; it never
// reads or mutates room or round state itself.
//
// Each emission marshals the payload exactly once before fanning out, so a
// later in-process mutation cannot alter what was already "sent". Frames are
// enqueued to per-connection ordered channels in call order, which preserves
// the per-room broadcast ordering guarantee.
type Gateway struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*Conn
}

func NewGateway() *Gateway {
	return &Gateway{
		conns: make(map[uuid.UUID]*Conn),
	}
}

// Register adds a connection for userID, displacing any previous connection
// for the same user (the old outbound channel is closed and its context
// cancelled, same as a lobby rejoin).
func (g *Gateway) Register(conn *Conn) {
	g.mu.Lock()
	old := g.conns[conn.UserID]
	g.conns[conn.UserID] = conn
	g.mu.Unlock()

	if old != nil && old != conn {
		close(old.Out)
		if old.Cancel != nil {
			old.Cancel()
		}
	}
}

// Unregister removes the connection for userID if it is still the current
// one and reports whether it did. A stale Unregister from a displaced
// connection is a no-op returning false, so a rejoin's old handler does not
// tear down the user's fresh session.
func (g *Gateway) Unregister(conn *Conn) bool {
	g.mu.Lock()
	cur, ok := g.conns[conn.UserID]
	if !ok || cur != conn {
		g.mu.Unlock()
		return false
	}
	delete(g.conns, conn.UserID)
	g.mu.Unlock()

	close(conn.Out)
	if conn.Cancel != nil {
		conn.Cancel()
	}
	return true
}

// ToAll emits msg to every live connection.
func (g *Gateway) ToAll(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast: marshal failed: %v", err)
		return
	}
	g.mu.Lock()
	targets := make([]*Conn, 0, len(g.conns))
	for _, c := range g.conns {
		targets = append(targets, c)
	}
	g.mu.Unlock()
	for _, c := range targets {
		c.push(data)
	}
}

// ToUsers emits msg to the listed users; absent users are skipped.
func (g *Gateway) ToUsers(ids []uuid.UUID, msg interface{}) {
	g.toUsersExcept(ids, uuid.Nil, msg)
}

// ToUsersExcept emits msg to the listed users minus one (the sender of a
// relayed event).
func (g *Gateway) ToUsersExcept(ids []uuid.UUID, except uuid.UUID, msg interface{}) {
	g.toUsersExcept(ids, except, msg)
}

// ToUser emits msg to a single connection, e.g. the secret-word reveal to
// the current drawer.
func (g *Gateway) ToUser(id uuid.UUID, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast: marshal failed: %v", err)
		return
	}
	g.mu.Lock()
	c := g.conns[id]
	g.mu.Unlock()
	if c != nil {
		c.push(data)
	}
}

func (g *Gateway) toUsersExcept(ids []uuid.UUID, except uuid.UUID, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast: marshal failed: %v", err)
		return
	}
	g.mu.Lock()
	targets := make([]*Conn, 0, len(ids))
	for _, id := range ids {
		if id == except {
			continue
		}
		if c, ok := g.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	g.mu.Unlock()
	for _, c := range targets {
		c.push(data)
	}
}
