// Package negotiation implements the per-pair offer/answer state machine a
// client runs against messages delivered by the signaling relay. The relay
// forwards payloads verbatim, so every ordering and queueing guarantee the
// exchange needs lives here.
package negotiation

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/ledum/huddle/internal/domain"
)

// Phase mirrors the two-phase offer/answer exchange.
type Phase int

const (
	PhaseStable Phase = iota
	PhaseLocalOffer
	PhaseRemoteOffer
)

func (p Phase) String() string {
	switch p {
	case PhaseLocalOffer:
		return "local-offer"
	case PhaseRemoteOffer:
		return "remote-offer"
	default:
		return "stable"
	}
}

// Role is resolved during negotiation, never chosen up front.
type Role int

const (
	RoleUndecided Role = iota
	RoleInitiator
	RoleResponder
)

// Engine is the underlying media agent, normally a webrtc.PeerConnection.
// Behind an interface so the state machine is testable without one.
type Engine interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	Rollback() error
}

// Peer drives one side of a two-party negotiation. All transitions are
// serialized by its mutex; emit callbacks run outside the lock.
type Peer struct {
	identity domain.UserID
	engine   Engine

	mu        sync.Mutex
	phase     Phase
	role      Role
	remoteSet bool
	offered   bool // an offer has been sent or received at least once
	pending   []webrtc.ICECandidateInit

	onOffer  func(webrtc.SessionDescription)
	onAnswer func(webrtc.SessionDescription)
}

func NewPeer(identity domain.UserID, engine Engine) *Peer {
	return &Peer{identity: identity, engine: engine}
}

// OnOffer and OnAnswer register emit callbacks. Set them before feeding
// messages in; they are not guarded.
func (p *Peer) OnOffer(fn func(webrtc.SessionDescription))  { p.onOffer = fn }
func (p *Peer) OnAnswer(fn func(webrtc.SessionDescription)) { p.onAnswer = fn }

func (p *Peer) Identity() domain.UserID { return p.identity }

func (p *Peer) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

func (p *Peer) Role() Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role
}

// QueuedCandidates reports how many remote candidates are waiting for a
// remote description.
func (p *Peer) QueuedCandidates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Negotiate is the local intent to (re)negotiate. It only acts from the
// stable phase; otherwise it is a no-op.
func (p *Peer) Negotiate() error {
	p.mu.Lock()
	offer, err := p.negotiateLocked()
	p.mu.Unlock()
	if err != nil || offer == nil {
		return err
	}
	if p.onOffer != nil {
		p.onOffer(*offer)
	}
	return nil
}

func (p *Peer) negotiateLocked() (*webrtc.SessionDescription, error) {
	if p.phase != PhaseStable {
		return nil, nil
	}
	offer, err := p.engine.CreateOffer()
	if err != nil {
		return nil, err
	}
	if err := p.engine.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	p.phase = PhaseLocalOffer
	p.role = RoleInitiator
	p.offered = true
	return &offer, nil
}

// HandleOffer accepts a remote offer. On glare (we hold an uncommitted
// local offer) our own offer is rolled back unconditionally — no priority
// comparison, no automatic retry — and the incoming one wins.
func (p *Peer) HandleOffer(from domain.UserID, offer webrtc.SessionDescription) error {
	if from == p.identity {
		return nil
	}
	p.mu.Lock()
	if p.phase == PhaseLocalOffer {
		if err := p.engine.Rollback(); err != nil {
			p.mu.Unlock()
			return err
		}
		p.phase = PhaseStable
	}
	answer, err := p.acceptOfferLocked(offer)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if p.onAnswer != nil {
		p.onAnswer(answer)
	}
	return nil
}

func (p *Peer) acceptOfferLocked(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	var zero webrtc.SessionDescription
	if err := p.engine.SetRemoteDescription(offer); err != nil {
		return zero, err
	}
	p.phase = PhaseRemoteOffer
	p.remoteSet = true
	p.offered = true
	p.role = RoleResponder
	if err := p.drainLocked(); err != nil {
		return zero, err
	}
	answer, err := p.engine.CreateAnswer()
	if err != nil {
		return zero, err
	}
	if err := p.engine.SetLocalDescription(answer); err != nil {
		return zero, err
	}
	p.phase = PhaseStable
	return answer, nil
}

// HandleAnswer completes an exchange we initiated. Answers arriving in any
// other phase are stray (e.g. after a glare rollback) and ignored.
func (p *Peer) HandleAnswer(from domain.UserID, answer webrtc.SessionDescription) error {
	if from == p.identity {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhaseLocalOffer {
		return nil
	}
	if err := p.engine.SetRemoteDescription(answer); err != nil {
		return err
	}
	p.remoteSet = true
	if err := p.drainLocked(); err != nil {
		return err
	}
	p.phase = PhaseStable
	p.role = RoleInitiator
	return nil
}

// HandleCandidate applies a remote candidate, or queues it until a remote
// description exists. Candidates routinely race ahead of the offer/answer
// exchange, so queueing is mandatory; none are dropped.
func (p *Peer) HandleCandidate(from domain.UserID, cand webrtc.ICECandidateInit) error {
	if from == p.identity {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.remoteSet {
		p.pending = append(p.pending, cand)
		return nil
	}
	return p.engine.AddICECandidate(cand)
}

// drainLocked applies queued candidates in receipt order.
func (p *Peer) drainLocked() error {
	for len(p.pending) > 0 {
		cand := p.pending[0]
		p.pending = p.pending[1:]
		if err := p.engine.AddICECandidate(cand); err != nil {
			return err
		}
	}
	return nil
}

// HandleRoomUpdate reacts to a room-updated event. The relay never picks
// an initiator: a peer that sees the room reach exactly two members while
// it has neither sent nor received an offer starts negotiating. Both sides
// may do so at once; the resulting glare is resolved in HandleOffer.
func (p *Peer) HandleRoomUpdate(mode domain.Mode, participants []domain.UserID) error {
	if mode != domain.ModeMesh || len(participants) != 2 {
		return nil
	}
	if !containsUser(participants, p.identity) {
		return nil
	}
	p.mu.Lock()
	if p.offered {
		p.mu.Unlock()
		return nil
	}
	offer, err := p.negotiateLocked()
	p.mu.Unlock()
	if err != nil || offer == nil {
		return err
	}
	if p.onOffer != nil {
		p.onOffer(*offer)
	}
	return nil
}

func containsUser(users []domain.UserID, u domain.UserID) bool {
	for _, v := range users {
		if v == u {
			return true
		}
	}
	return false
}
