package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledum/huddle/internal/domain"
)

func TestJoinRejectsEmptyIdentity(t *testing.T) {
	m := NewRoomManager()
	_, _, err := m.Join("r1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))

	_, ok := m.Get("r1")
	assert.False(t, ok, "rejected join must not create the room")
}

func TestJoinIsIdempotentPerIdentity(t *testing.T) {
	m := NewRoomManager()
	first, _, err := m.Join("r1", "a")
	require.NoError(t, err)
	again, _, err := m.Join("r1", "a")
	require.NoError(t, err)

	assert.Equal(t, first.Members, again.Members)
	assert.Equal(t, []domain.UserID{"a"}, again.Members)
	assert.Equal(t, domain.ModeMesh, again.Mode)
}

func TestModeInvariantAfterEveryMutation(t *testing.T) {
	m := NewRoomManager()
	users := []domain.UserID{"a", "b", "c", "d", "e"}

	for i, u := range users {
		snap, _, err := m.Join("r1", u)
		require.NoError(t, err)
		assert.Len(t, snap.Members, i+1)
		assertModeInvariant(t, snap.Mode, len(snap.Members))
	}
	for i := len(users) - 1; i > 0; i-- {
		snap, _, ok := m.Leave("r1", users[i])
		require.True(t, ok)
		assert.Len(t, snap.Members, i)
		assertModeInvariant(t, snap.Mode, len(snap.Members))
	}
}

func assertModeInvariant(t *testing.T, mode domain.Mode, count int) {
	t.Helper()
	if count >= 3 {
		assert.Equal(t, domain.ModeRouted, mode, "count=%d", count)
	} else {
		assert.Equal(t, domain.ModeMesh, mode, "count=%d", count)
	}
}

func TestMembersKeepJoinOrder(t *testing.T) {
	m := NewRoomManager()
	for _, u := range []domain.UserID{"c", "a", "b"} {
		_, _, err := m.Join("r1", u)
		require.NoError(t, err)
	}
	snap, ok := m.Get("r1")
	require.True(t, ok)
	assert.Equal(t, []domain.UserID{"c", "a", "b"}, snap.Members)

	// Removing from the middle keeps the order of the rest.
	snap, _, ok = m.Leave("r1", "a")
	require.True(t, ok)
	assert.Equal(t, []domain.UserID{"c", "b"}, snap.Members)
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	m := NewRoomManager()
	_, _, err := m.Join("r1", "a")
	require.NoError(t, err)

	_, prev, ok := m.Leave("r1", "a")
	assert.False(t, ok, "leave emptying the room reports deletion")
	assert.Equal(t, domain.ModeMesh, prev)

	_, ok = m.Get("r1")
	assert.False(t, ok, "deleted room must not be retrievable")
	assert.Empty(t, m.List())

	// The identifier is reusable after deletion.
	snap, _, err := m.Join("r1", "b")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"b"}, snap.Members)
}

func TestLeaveUnknownRoomOrMember(t *testing.T) {
	m := NewRoomManager()
	_, _, ok := m.Leave("ghost", "a")
	assert.False(t, ok)

	_, _, err := m.Join("r1", "a")
	require.NoError(t, err)
	snap, _, ok := m.Leave("r1", "not-there")
	require.True(t, ok, "leave of an absent identity is a no-op, room stays")
	assert.Equal(t, []domain.UserID{"a"}, snap.Members)
}

func TestPrevModeReporting(t *testing.T) {
	m := NewRoomManager()

	_, prev, err := m.Join("r1", "a")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeMesh, prev, "fresh room starts as p2p")

	_, prev, err = m.Join("r1", "b")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeMesh, prev)

	snap, prev, err := m.Join("r1", "c")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeMesh, prev)
	assert.Equal(t, domain.ModeRouted, snap.Mode)

	snap, prev, ok := m.Leave("r1", "c")
	require.True(t, ok)
	assert.Equal(t, domain.ModeRouted, prev)
	assert.Equal(t, domain.ModeMesh, snap.Mode)
}

func TestEndToEndScenario(t *testing.T) {
	m := NewRoomManager()

	snap, _, err := m.Join("R1", "a")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeMesh, snap.Mode)
	assert.Equal(t, []domain.UserID{"a"}, snap.Members)

	snap, prev, err := m.Join("R1", "b")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeMesh, snap.Mode)
	assert.Equal(t, []domain.UserID{"a", "b"}, snap.Members)
	assert.Equal(t, prev, snap.Mode, "no mode change on second join")

	snap, prev, err = m.Join("R1", "c")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeRouted, snap.Mode)
	assert.Equal(t, []domain.UserID{"a", "b", "c"}, snap.Members)
	assert.NotEqual(t, prev, snap.Mode, "third join flips mode")

	snap, prev, ok := m.Leave("R1", "c")
	require.True(t, ok)
	assert.Equal(t, domain.ModeMesh, snap.Mode)
	assert.Equal(t, []domain.UserID{"a", "b"}, snap.Members)
	assert.NotEqual(t, prev, snap.Mode)

	_, _, ok = m.Leave("R1", "a")
	assert.True(t, ok)
	_, _, ok = m.Leave("R1", "b")
	assert.False(t, ok, "last leave deletes the room")

	_, ok = m.Get("R1")
	assert.False(t, ok)
}

func TestSnapshotIsDetachedCopy(t *testing.T) {
	m := NewRoomManager()
	_, _, err := m.Join("r1", "a")
	require.NoError(t, err)
	snap, ok := m.Get("r1")
	require.True(t, ok)

	snap.Members[0] = "mutated"

	fresh, ok := m.Get("r1")
	require.True(t, ok)
	assert.Equal(t, []domain.UserID{"a"}, fresh.Members)
}

func TestIndependentRoomsInParallel(t *testing.T) {
	m := NewRoomManager()
	const rooms = 16
	const users = 8

	var wg sync.WaitGroup
	for r := 0; r < rooms; r++ {
		for u := 0; u < users; u++ {
			wg.Add(1)
			go func(r, u int) {
				defer wg.Done()
				id := domain.RoomID(fmt.Sprintf("room-%d", r))
				user := domain.UserID(fmt.Sprintf("user-%d", u))
				_, _, err := m.Join(id, user)
				assert.NoError(t, err)
			}(r, u)
		}
	}
	wg.Wait()

	for r := 0; r < rooms; r++ {
		snap, ok := m.Get(domain.RoomID(fmt.Sprintf("room-%d", r)))
		require.True(t, ok)
		assert.Len(t, snap.Members, users)
		assert.Equal(t, domain.ModeRouted, snap.Mode)
	}
}
