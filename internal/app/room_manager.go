package app

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ledum/huddle/internal/core"
	"github.com/ledum/huddle/internal/domain"
)

// roomEntry holds live room state. Its mutex serializes all mutation for
// that room; the manager-level lock only guards the map itself.
type roomEntry struct {
	mu      sync.Mutex
	members []domain.UserID // join order, unique
	mode    domain.Mode
	gone    bool // set when the entry was deleted from the map
}

// RoomManager is the authoritative in-memory room registry.
// A room exists iff it has at least one member.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomEntry
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomID]*roomEntry)}
}

// Join adds user to the room, creating it on first join. Re-joining with an
// identity already present is a no-op on membership but still returns the
// current snapshot. prev is the mode the room held just before the call
// (p2p for a fresh room).
func (m *RoomManager) Join(id domain.RoomID, user domain.UserID) (core.RoomSnapshot, domain.Mode, error) {
	if user == "" {
		return core.RoomSnapshot{}, domain.ModeMesh, fmt.Errorf("%w: empty identity", domain.ErrInvalidArgument)
	}
	for {
		e := m.getOrCreate(id)
		e.mu.Lock()
		if e.gone {
			// Lost a race with deletion; the map no longer holds this entry.
			e.mu.Unlock()
			continue
		}
		prev := e.mode
		if !containsUser(e.members, user) {
			e.members = append(e.members, user)
			e.mode = DeriveMode(len(e.members))
		}
		snap := e.snapshotLocked(id)
		e.mu.Unlock()
		log.Debug().Str("module", "app.rooms").Str("room", string(id)).Str("user", string(user)).
			Str("mode", string(snap.Mode)).Int("members", len(snap.Members)).Msg("join")
		return snap, prev, nil
	}
}

// Leave removes user if present. When the room empties it is deleted and
// ok is false; otherwise the recomputed snapshot is returned. Leaving a
// room that does not exist is a no-op with ok false.
func (m *RoomManager) Leave(id domain.RoomID, user domain.UserID) (core.RoomSnapshot, domain.Mode, bool) {
	m.mu.RLock()
	e := m.rooms[id]
	m.mu.RUnlock()
	if e == nil {
		return core.RoomSnapshot{}, domain.ModeMesh, false
	}

	e.mu.Lock()
	if e.gone {
		e.mu.Unlock()
		return core.RoomSnapshot{}, domain.ModeMesh, false
	}
	prev := e.mode
	for i, u := range e.members {
		if u == user {
			e.members = append(e.members[:i], e.members[i+1:]...)
			break
		}
	}
	if len(e.members) == 0 {
		e.gone = true
		e.mu.Unlock()
		m.mu.Lock()
		if m.rooms[id] == e {
			delete(m.rooms, id)
		}
		m.mu.Unlock()
		log.Debug().Str("module", "app.rooms").Str("room", string(id)).Msg("room emptied, deleted")
		return core.RoomSnapshot{}, prev, false
	}
	e.mode = DeriveMode(len(e.members))
	snap := e.snapshotLocked(id)
	e.mu.Unlock()
	log.Debug().Str("module", "app.rooms").Str("room", string(id)).Str("user", string(user)).
		Str("mode", string(snap.Mode)).Int("members", len(snap.Members)).Msg("leave")
	return snap, prev, true
}

// Get returns a read-only snapshot, or ok false for an unknown room.
func (m *RoomManager) Get(id domain.RoomID) (core.RoomSnapshot, bool) {
	m.mu.RLock()
	e := m.rooms[id]
	m.mu.RUnlock()
	if e == nil {
		return core.RoomSnapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return core.RoomSnapshot{}, false
	}
	return e.snapshotLocked(id), true
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for id, e := range m.rooms {
		e.mu.Lock()
		if !e.gone {
			out = append(out, core.RoomInfo{ID: id, MemberCount: len(e.members)})
		}
		e.mu.Unlock()
	}
	return out
}

func (m *RoomManager) getOrCreate(id domain.RoomID) *roomEntry {
	m.mu.RLock()
	e, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return e
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.rooms[id]; ok {
		return e
	}
	e = &roomEntry{mode: domain.ModeMesh}
	m.rooms[id] = e
	return e
}

func (e *roomEntry) snapshotLocked(id domain.RoomID) core.RoomSnapshot {
	members := make([]domain.UserID, len(e.members))
	copy(members, e.members)
	return core.RoomSnapshot{ID: id, Mode: e.mode, Members: members}
}

func containsUser(members []domain.UserID, user domain.UserID) bool {
	for _, u := range members {
		if u == user {
			return true
		}
	}
	return false
}
