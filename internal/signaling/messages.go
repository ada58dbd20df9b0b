package signaling

import "encoding/json"

// Message types for signaling protocol.
const (
	TypeRegister         = "register"
	TypeRegistered       = "registered"
	TypeOffer            = "offer"
	TypeAnswer           = "answer"
	TypeICECandidate     = "ice-candidate"
	TypePing             = "ping"
	TypePong             = "pong"
	TypeError            = "error"
	TypeHostDisconnected = "host-disconnected"
)

// ClientType distinguishes the capture host from viewers.
const (
	ClientTypeHost   = "host"
	ClientTypeViewer = "controller"
)

// Message is the envelope for all signaling messages.
type Message struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	ClientType string          `json:"clientType,omitempty"`
	From       string          `json:"from,omitempty"`
	Target     string          `json:"target,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	HostID     string          `json:"hostId,omitempty"`
	Msg        string          `json:"message,omitempty"`
}
