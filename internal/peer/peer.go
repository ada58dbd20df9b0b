package peer

import "github.com/pion/webrtc/v4"

// FramesLabel is the DataChannel the viewer opens for frames.
const FramesLabel = "frames"

// DefaultICEServers is used when no STUN servers are configured.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}

// NewPeerConnection creates a PeerConnection using the given STUN/TURN URLs.
func NewPeerConnection(iceServers []string) (*webrtc.PeerConnection, error) {
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers
	}
	cfg := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
	return webrtc.NewPeerConnection(cfg)
}
