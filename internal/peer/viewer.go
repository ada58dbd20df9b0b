package peer

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/junsooki/InkCast/internal/transport"
)

// Offerer is the part of the signaling client a Viewer negotiates through.
type Offerer interface {
	SendOffer(target string, payload json.RawMessage) error
	SendICECandidate(target string, payload json.RawMessage) error
}

// Viewer manages the viewing side of the WebRTC connection.
type Viewer struct {
	pc        *webrtc.PeerConnection
	sig       Offerer
	transport *transport.DataChannelTransport
	hostID    string
}

// NewViewer creates a Viewer peer that will receive frames from hostID.
func NewViewer(sig Offerer, hostID string, iceServers []string) (*Viewer, error) {
	pc, err := NewPeerConnection(iceServers)
	if err != nil {
		return nil, err
	}

	// Created before the offer so the SDP carries the data section.
	// Ordered and reliable: frames arrive fragmented.
	ordered := true
	framesDC, err := pc.CreateDataChannel(FramesLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		pc.Close()
		return nil, err
	}
	framesDC.OnOpen(func() {
		log.Info().Str("module", "peer").Msg("frames data channel open")
	})

	v := &Viewer{
		pc:        pc,
		sig:       sig,
		transport: transport.NewDataChannelTransport(framesDC),
		hostID:    hostID,
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Info().Str("module", "peer").Str("host", hostID).Str("state", state.String()).Msg("peer connection state")
	})

	// ICE candidate handling.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Warn().Str("module", "peer").Err(err).Msg("marshal ICE candidate")
			return
		}
		_ = sig.SendICECandidate(hostID, data)
	})

	return v, nil
}

// Transport returns the frame transport.
func (v *Viewer) Transport() *transport.DataChannelTransport {
	return v.transport
}

// Connect initiates the WebRTC connection by creating and sending an offer.
func (v *Viewer) Connect() error {
	offer, err := v.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := v.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	offerJSON, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return v.sig.SendOffer(v.hostID, offerJSON)
}

// HandleAnswer processes an incoming SDP answer.
func (v *Viewer) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return err
	}
	return v.pc.SetRemoteDescription(answer)
}

// HandleICECandidate adds a remote ICE candidate.
func (v *Viewer) HandleICECandidate(payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return err
	}
	return v.pc.AddICECandidate(candidate)
}

// Close shuts down the peer connection.
func (v *Viewer) Close() {
	if v.pc != nil {
		v.pc.Close()
	}
}
