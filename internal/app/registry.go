package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ledum/huddle/internal/core"
	"github.com/ledum/huddle/internal/domain"
)

// sessionEntry tracks one live connection. Identity and room are written
// exactly once, when the session joins.
type sessionEntry struct {
	Identity domain.UserID
	Room     domain.RoomID
	Conn     core.SignalConnection
	Cancel   context.CancelFunc
	Joined   bool
}

// Registry maps live connections to their room binding. It is relay-side
// bookkeeping only; room membership itself lives in the RoomManager.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

// Bind registers a fresh, unjoined connection.
func (r *Registry) Bind(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

// MarkJoined binds the session to a room and identity. Repeating the same
// binding is a no-op; a conflicting one is rejected because a session's
// identity and room are immutable once set.
func (r *Registry) MarkJoined(sid core.SessionID, room domain.RoomID, user domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return fmt.Errorf("%w: unknown session", domain.ErrInvalidArgument)
	}
	if e.Joined {
		if e.Room == room && e.Identity == user {
			return nil
		}
		return fmt.Errorf("%w: session already joined", domain.ErrInvalidArgument)
	}
	e.Room = room
	e.Identity = user
	e.Joined = true
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("room", string(room)).Str("user", string(user)).Msg("session joined")
	return nil
}

// Joined reports the binding of a session, if it has one.
func (r *Registry) Joined(sid core.SessionID) (domain.RoomID, domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || !e.Joined {
		return "", "", false
	}
	return e.Room, e.Identity, true
}

// Unbind removes the session and returns its last known state.
func (r *Registry) Unbind(sid core.SessionID) (sessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return sessionEntry{}, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound session")
	return *e, true
}

// peerSnap is a broadcast target inside one room.
type peerSnap struct {
	SID      core.SessionID
	Identity domain.UserID
	Conn     core.SignalConnection
}

func (r *Registry) PeersOfRoom(room domain.RoomID) []peerSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]peerSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.Joined && e.Room == room {
			out = append(out, peerSnap{SID: sid, Identity: e.Identity, Conn: e.Conn})
		}
	}
	return out
}
