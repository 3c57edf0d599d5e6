// Package core declares the seams between transport adapters and room logic.
package core

import "github.com/ledum/huddle/internal/domain"

// Frame is a raw message payload already encoded for the wire.
type Frame []byte

// SessionID identifies one live transport connection.
type SessionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// RoomSnapshot is an immutable copy of room state. Callers never observe
// live registry internals, so there are no torn reads under concurrency.
type RoomSnapshot struct {
	ID      domain.RoomID   `json:"roomId"`
	Mode    domain.Mode     `json:"mode"`
	Members []domain.UserID `json:"participants"`
}

type RoomInfo struct {
	ID          domain.RoomID `json:"roomId"`
	MemberCount int           `json:"memberCount"`
}

// RoomRegistry exclusively owns all room records. Mutations for the same
// room are serialized; independent rooms proceed in parallel. Join and
// Leave also report the mode the room held immediately before the
// mutation so callers can announce topology changes without racing.
type RoomRegistry interface {
	Join(id domain.RoomID, user domain.UserID) (snap RoomSnapshot, prev domain.Mode, err error)
	Leave(id domain.RoomID, user domain.UserID) (snap RoomSnapshot, prev domain.Mode, ok bool)
	Get(id domain.RoomID) (RoomSnapshot, bool)
	List() []RoomInfo
}
