// Package domain contains entities without logic, just meta-data.
package domain

type (
	RoomID string
	UserID string
)

// Mode is the media topology of a room. It is derived from room size and
// never set directly by a client.
type Mode string

const (
	// ModeMesh: the (at most two) members connect to each other directly.
	ModeMesh Mode = "p2p"
	// ModeRouted: members connect to the external forwarding service.
	ModeRouted Mode = "sfu"
)
