package negotiation

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Drives a real pion peer connection through the losing side of crossed
// offers: offer, commit it locally, roll it back, then accept the remote
// offer and answer it. No network involved.
func TestPeerEngineRollbackAcceptsRemoteOffer(t *testing.T) {
	eng, err := NewPeerEngine(webrtc.Configuration{})
	require.NoError(t, err)
	defer eng.Close()

	candidates := make(chan webrtc.ICECandidateInit, 16)
	eng.OnICECandidate(func(c webrtc.ICECandidateInit) { candidates <- c })

	offer, err := eng.CreateOffer()
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	require.NoError(t, eng.SetLocalDescription(offer))

	remote, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer remote.Close()
	_, err = remote.CreateDataChannel("signal", nil)
	require.NoError(t, err)
	remoteOffer, err := remote.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(remoteOffer))

	require.NoError(t, eng.Rollback())
	require.NoError(t, eng.SetRemoteDescription(remoteOffer))

	answer, err := eng.CreateAnswer()
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	require.NoError(t, eng.SetLocalDescription(answer))

	// Gathering is asynchronous and may yield nothing in a constrained
	// environment, but whatever reaches the handler must be a real
	// candidate, never the end-of-gathering sentinel.
	for {
		select {
		case c := <-candidates:
			assert.NotEmpty(t, c.Candidate)
		case <-time.After(500 * time.Millisecond):
			return
		}
	}
}

func TestPeerEngineToleratesNilCandidateHandler(t *testing.T) {
	eng, err := NewPeerEngine(webrtc.Configuration{})
	require.NoError(t, err)
	defer eng.Close()

	eng.OnICECandidate(nil)

	offer, err := eng.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, eng.SetLocalDescription(offer))
}
