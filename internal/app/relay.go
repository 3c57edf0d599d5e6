package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ledum/huddle/internal/core"
	"github.com/ledum/huddle/internal/domain"
)

// Wire event types, coordinator → clients.
const (
	EventRoomUpdated = "room-updated"
	EventModeChanged = "mode-changed"
)

// RoomUpdatedEvent announces current membership and mode to a whole room.
type RoomUpdatedEvent struct {
	Type         string          `json:"type"`
	RoomID       domain.RoomID   `json:"roomId"`
	Mode         domain.Mode     `json:"mode"`
	Participants []domain.UserID `json:"participants"`
}

// ModeChangedEvent is emitted once whenever a join or leave flips topology.
type ModeChangedEvent struct {
	Type         string          `json:"type"`
	RoomID       domain.RoomID   `json:"roomId"`
	OldMode      domain.Mode     `json:"oldMode"`
	NewMode      domain.Mode     `json:"newMode"`
	Participants []domain.UserID `json:"participants"`
}

// RelayedMessage is a negotiation message as delivered to recipients.
// Payload is opaque: the relay never parses or validates it. The room id
// is omitted; the recipient's own binding implies it.
type RelayedMessage struct {
	Type    string          `json:"type"`
	From    domain.UserID   `json:"from"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Relay routes negotiation messages between the members of a room and
// keeps the room registry in step with connection lifecycle.
type Relay struct {
	Rooms    core.RoomRegistry
	Registry *Registry
}

func NewRelay(rooms core.RoomRegistry, registry *Registry) *Relay {
	return &Relay{Rooms: rooms, Registry: registry}
}

// Attach registers a fresh connection in the UNJOINED state.
func (r *Relay) Attach(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.Registry.Bind(sid, conn, cancel)
}

// Join binds the connection to (room, identity), applies the membership
// change and announces it to every connection in the room, the new one
// included. A mode flip is announced first, as a separate event.
func (r *Relay) Join(sid core.SessionID, room domain.RoomID, user domain.UserID) error {
	if room == "" || user == "" {
		return fmt.Errorf("%w: roomId and userId are required", domain.ErrInvalidArgument)
	}
	if err := r.Registry.MarkJoined(sid, room, user); err != nil {
		return err
	}
	_, err := r.CreateOrJoin(room, user)
	return err
}

// CreateOrJoin applies a join without a standing connection (the REST
// surface) and notifies whoever is connected to the room right now.
func (r *Relay) CreateOrJoin(room domain.RoomID, user domain.UserID) (core.RoomSnapshot, error) {
	if room == "" || user == "" {
		return core.RoomSnapshot{}, fmt.Errorf("%w: roomId and userId are required", domain.ErrInvalidArgument)
	}
	snap, prev, err := r.Rooms.Join(room, user)
	if err != nil {
		return core.RoomSnapshot{}, err
	}
	r.announce(snap, prev)
	return snap, nil
}

// Forward relays a negotiation message verbatim to every other connection
// bound to the sender's room. Ordering from a single sender is preserved;
// delivery is best-effort per recipient.
func (r *Relay) Forward(sid core.SessionID, msgType string, from domain.UserID, payload json.RawMessage) error {
	room, identity, ok := r.Registry.Joined(sid)
	if !ok {
		return fmt.Errorf("%w: join a room first", domain.ErrInvalidArgument)
	}
	if from == "" {
		from = identity
	}
	data, err := json.Marshal(RelayedMessage{Type: msgType, From: from, Payload: payload})
	if err != nil {
		return err
	}
	for _, peer := range r.Registry.PeersOfRoom(room) {
		if peer.SID == sid {
			continue
		}
		if err := peer.Conn.TrySend(core.Frame(data)); err != nil {
			log.Warn().Err(err).Str("module", "app.relay").Str("room", string(room)).
				Str("to", string(peer.Identity)).Str("type", msgType).Msg("dropped relayed message")
		}
	}
	return nil
}

// Disconnect is the implicit leave. It must run before any further message
// from the connection is processed; the adapter calls it from the read
// loop's exit path.
func (r *Relay) Disconnect(sid core.SessionID) {
	sess, ok := r.Registry.Unbind(sid)
	if !ok {
		return
	}
	defer func() {
		if sess.Cancel != nil {
			sess.Cancel()
		}
	}()
	if !sess.Joined {
		return
	}

	snap, prev, alive := r.Rooms.Leave(sess.Room, sess.Identity)
	if !alive {
		// Room emptied. The only party left to tell is the departing
		// connection itself; best effort before its pumps wind down.
		r.sendEvent(sess.Conn, sess.Identity, RoomUpdatedEvent{
			Type:         EventRoomUpdated,
			RoomID:       sess.Room,
			Mode:         domain.ModeMesh,
			Participants: []domain.UserID{},
		})
		return
	}
	r.announce(snap, prev)
}

// announce emits mode-changed (when topology flipped) followed by
// room-updated to every connection in the room.
func (r *Relay) announce(snap core.RoomSnapshot, prev domain.Mode) {
	peers := r.Registry.PeersOfRoom(snap.ID)
	if snap.Mode != prev {
		ev := ModeChangedEvent{
			Type:         EventModeChanged,
			RoomID:       snap.ID,
			OldMode:      prev,
			NewMode:      snap.Mode,
			Participants: snap.Members,
		}
		for _, peer := range peers {
			r.sendEvent(peer.Conn, peer.Identity, ev)
		}
		log.Info().Str("module", "app.relay").Str("room", string(snap.ID)).
			Str("old", string(prev)).Str("new", string(snap.Mode)).Msg("mode changed")
	}
	ev := RoomUpdatedEvent{
		Type:         EventRoomUpdated,
		RoomID:       snap.ID,
		Mode:         snap.Mode,
		Participants: snap.Members,
	}
	for _, peer := range peers {
		r.sendEvent(peer.Conn, peer.Identity, ev)
	}
}

// sendEvent delivers one event to one connection. Failures are logged and
// skipped: a dead or slow recipient never aborts the triggering operation.
func (r *Relay) sendEvent(conn core.SignalConnection, to domain.UserID, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal event")
		return
	}
	if err := conn.TrySend(core.Frame(data)); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("to", string(to)).Msg("dropped event")
	}
}
