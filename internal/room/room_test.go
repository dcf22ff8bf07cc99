// internal/room/room_test.go
package room

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateValidatesNameAndVariant(t *testing.T) {
	s := NewStore()
	host := uuid.New()

	_, err := s.Create(host, "   ", "", VariantDrawing)
	assert.ErrorIs(t, err, ErrInvalidName)

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.Create(host, string(long), "", VariantDrawing)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = s.Create(host, "ok", "", Variant("poker"))
	assert.ErrorIs(t, err, ErrBadVariant)

	info, err := s.Create(host, "  Doodles  ", "", VariantDrawing)
	require.NoError(t, err)
	assert.Equal(t, "Doodles", info.Name)
	assert.Equal(t, host, info.HostID)
	assert.Equal(t, []uuid.UUID{host}, info.Members)
	assert.False(t, info.HasPassword)
	assert.Equal(t, 8, info.MaxPlayers)
}

func TestJoinChecksPasswordAndCapacity(t *testing.T) {
	s := NewStore()
	host := uuid.New()
	info, err := s.Create(host, "secret club", "hunter2", VariantWord)
	require.NoError(t, err)
	assert.True(t, info.HasPassword)
	assert.Equal(t, 2, info.MaxPlayers)

	_, err = s.Join(uuid.New(), "no-such-room", "")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = s.Join(host, info.ID, "hunter2")
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = s.Join(uuid.New(), info.ID, "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)

	second := uuid.New()
	got, err := s.Join(second, info.ID, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{host, second}, got.Members)

	// Word rooms cap at two.
	_, err = s.Join(uuid.New(), info.ID, "hunter2")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinRefusedWhileInProgress(t *testing.T) {
	s := NewStore()
	host := uuid.New()
	info, err := s.Create(host, "busy", "", VariantDrawing)
	require.NoError(t, err)
	_, err = s.Join(uuid.New(), info.ID, "")
	require.NoError(t, err)

	s.SetInProgress(info.ID, true)
	_, err = s.Join(uuid.New(), info.ID, "")
	assert.ErrorIs(t, err, ErrInProgress)

	s.SetInProgress(info.ID, false)
	_, err = s.Join(uuid.New(), info.ID, "")
	assert.NoError(t, err)
}

func TestLeaveReelectsHostInJoinOrder(t *testing.T) {
	s := NewStore()
	host, second, third := uuid.New(), uuid.New(), uuid.New()
	info, err := s.Create(host, "migration", "", VariantDrawing)
	require.NoError(t, err)
	_, err = s.Join(second, info.ID, "")
	require.NoError(t, err)
	_, err = s.Join(third, info.ID, "")
	require.NoError(t, err)

	res, err := s.Leave(host, info.ID)
	require.NoError(t, err)
	assert.True(t, res.WasMember)
	assert.True(t, res.WasHost)
	assert.False(t, res.Deleted)
	require.True(t, res.HostChanged)
	assert.Equal(t, second, res.NewHostID, "host passes to the next member in join order")
	assert.Equal(t, []uuid.UUID{second, third}, res.Room.Members)

	// A non-host departure does not touch the host.
	res, err = s.Leave(third, info.ID)
	require.NoError(t, err)
	assert.False(t, res.WasHost)
	assert.False(t, res.HostChanged)
	got, ok := s.Get(info.ID)
	require.True(t, ok)
	assert.Equal(t, second, got.HostID)
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	s := NewStore()
	host := uuid.New()
	info, err := s.Create(host, "solo", "", VariantDrawing)
	require.NoError(t, err)

	res, err := s.Leave(host, info.ID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	_, ok := s.Get(info.ID)
	assert.False(t, ok)
}

func TestLeaveTearsDownInProgressRoomBelowMinimum(t *testing.T) {
	s := NewStore()
	host, second := uuid.New(), uuid.New()
	info, err := s.Create(host, "fragile", "", VariantDrawing)
	require.NoError(t, err)
	_, err = s.Join(second, info.ID, "")
	require.NoError(t, err)
	s.SetInProgress(info.ID, true)

	res, err := s.Leave(second, info.ID)
	require.NoError(t, err)
	assert.True(t, res.Deleted, "an in-progress room below minimum is torn down")
	assert.Equal(t, []uuid.UUID{host}, res.Room.Members)
	_, ok := s.Get(info.ID)
	assert.False(t, ok)

	// A lobby room with the same membership survives.
	info2, err := s.Create(host, "idle", "", VariantDrawing)
	require.NoError(t, err)
	_, err = s.Join(second, info2.ID, "")
	require.NoError(t, err)
	res, err = s.Leave(second, info2.ID)
	require.NoError(t, err)
	assert.False(t, res.Deleted, "a lobby room survives down to one member")
}

func TestLeaveByNonMemberIsNoOp(t *testing.T) {
	s := NewStore()
	host := uuid.New()
	info, err := s.Create(host, "closed circle", "", VariantDrawing)
	require.NoError(t, err)

	res, err := s.Leave(uuid.New(), info.ID)
	require.NoError(t, err)
	assert.False(t, res.WasMember)
	got, ok := s.Get(info.ID)
	require.True(t, ok)
	assert.Len(t, got.Members, 1)
}

func TestTerminateIsHostOnly(t *testing.T) {
	s := NewStore()
	host, second := uuid.New(), uuid.New()
	info, err := s.Create(host, "ours", "", VariantDrawing)
	require.NoError(t, err)
	_, err = s.Join(second, info.ID, "")
	require.NoError(t, err)

	_, err = s.Terminate(info.ID, second)
	assert.ErrorIs(t, err, ErrNotHost)

	final, err := s.Terminate(info.ID, host)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{host, second}, final.Members)
	_, ok := s.Get(info.ID)
	assert.False(t, ok)
}

func TestRoomsWithMemberAndList(t *testing.T) {
	s := NewStore()
	u := uuid.New()
	a, err := s.Create(u, "first", "", VariantDrawing)
	require.NoError(t, err)
	b, err := s.Create(uuid.New(), "second", "", VariantWord)
	require.NoError(t, err)
	_, err = s.Join(u, b.ID, "")
	require.NoError(t, err)

	ids := s.RoomsWithMember(u)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID, "list is ordered oldest first")
	assert.Equal(t, b.ID, list[1].ID)
}

func TestMembersReturnsCopy(t *testing.T) {
	s := NewStore()
	host := uuid.New()
	info, err := s.Create(host, "copies", "", VariantDrawing)
	require.NoError(t, err)

	m := s.Members(info.ID)
	require.Len(t, m, 1)
	m[0] = uuid.New()
	assert.Equal(t, []uuid.UUID{host}, s.Members(info.ID), "mutating a returned slice must not touch the store")

	assert.Nil(t, s.Members("missing"))
}
