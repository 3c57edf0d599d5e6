package negotiation

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// PeerEngine adapts a pion PeerConnection to the Engine interface.
type PeerEngine struct {
	pc *webrtc.PeerConnection
}

func DefaultRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewPeerEngine(cfg webrtc.Configuration) (*PeerEngine, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &PeerEngine{pc: pc}, nil
}

func (e *PeerEngine) CreateOffer() (webrtc.SessionDescription, error) {
	return e.pc.CreateOffer(nil)
}

func (e *PeerEngine) CreateAnswer() (webrtc.SessionDescription, error) {
	return e.pc.CreateAnswer(nil)
}

func (e *PeerEngine) SetLocalDescription(desc webrtc.SessionDescription) error {
	return e.pc.SetLocalDescription(desc)
}

func (e *PeerEngine) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return e.pc.SetRemoteDescription(desc)
}

func (e *PeerEngine) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return e.pc.AddICECandidate(cand)
}

// Rollback discards the uncommitted local description so a competing
// remote offer can be accepted.
func (e *PeerEngine) Rollback() error {
	return e.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
}

// OnICECandidate forwards locally discovered candidates, skipping the
// final nil sentinel pion delivers when gathering completes.
func (e *PeerEngine) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	e.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil && fn != nil {
			fn(c.ToJSON())
		}
	})
}

func (e *PeerEngine) Close() {
	if err := e.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "negotiation").Msg("close peer connection")
	}
}
