// internal/broadcast/gateway_test.go
package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConn() *Conn {
	return &Conn{UserID: uuid.New(), Out: make(chan []byte, 16)}
}

func drain(c *Conn) []string {
	var out []string
	for {
		select {
		case b := <-c.Out:
			out = append(out, string(b))
		default:
			return out
		}
	}
}

func TestFanOutPreservesEnqueueOrder(t *testing.T) {
	g := NewGateway()
	a, b := newConn(), newConn()
	g.Register(a)
	g.Register(b)

	ids := []uuid.UUID{a.UserID, b.UserID}
	g.ToUsers(ids, map[string]int{"seq": 1})
	g.ToUsers(ids, map[string]int{"seq": 2})
	g.ToUsers(ids, map[string]int{"seq": 3})

	for _, c := range []*Conn{a, b} {
		frames := drain(c)
		require.Len(t, frames, 3)
		for i, f := range frames {
			var m map[string]int
			require.NoError(t, json.Unmarshal([]byte(f), &m))
			assert.Equal(t, i+1, m["seq"], "frames must arrive in emission order")
		}
	}
}

func TestToUsersExceptSkipsSender(t *testing.T) {
	g := NewGateway()
	a, b := newConn(), newConn()
	g.Register(a)
	g.Register(b)

	g.ToUsersExcept([]uuid.UUID{a.UserID, b.UserID}, a.UserID, "x")
	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)
}

func TestToUserTargetsOneConnection(t *testing.T) {
	g := NewGateway()
	a, b := newConn(), newConn()
	g.Register(a)
	g.Register(b)

	g.ToUser(a.UserID, "secret")
	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))

	// Absent users are skipped silently.
	g.ToUser(uuid.New(), "void")
}

func TestRegisterDisplacesPreviousConnection(t *testing.T) {
	g := NewGateway()
	old := newConn()
	g.Register(old)

	fresh := &Conn{UserID: old.UserID, Out: make(chan []byte, 16)}
	g.Register(fresh)

	_, open := <-old.Out
	assert.False(t, open, "displaced connection's channel is closed")

	g.ToUser(old.UserID, "hi")
	assert.Len(t, drain(fresh), 1)

	// The displaced connection's cleanup must not evict the fresh one.
	assert.False(t, g.Unregister(old))
	g.ToUser(old.UserID, "still here")
	assert.Len(t, drain(fresh), 1)

	assert.True(t, g.Unregister(fresh))
}

func TestEmitAfterUnregisterDoesNotPanic(t *testing.T) {
	g := NewGateway()
	c := newConn()
	g.Register(c)
	require.True(t, g.Unregister(c))

	// Frame for a vanished user is dropped, not delivered or panicked on.
	g.ToAll("late")
	g.ToUsers([]uuid.UUID{c.UserID}, "late")
}
