package peer

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/junsooki/InkCast/internal/transport"
)

// Feed hands out frame subscriptions; transport.Hub implements it.
type Feed interface {
	Subscribe(buffer int) (id string, frames <-chan []byte, cancel func())
}

// Signaler is the part of the signaling client a Host answers through.
type Signaler interface {
	SendAnswer(target string, payload json.RawMessage) error
	SendICECandidate(target string, payload json.RawMessage) error
}

// Hooks run when a viewer's frames channel opens and when it goes away.
// OnGone runs once the peer connection itself has been closed.
type Hooks struct {
	OnOpen  func() error
	OnClose func()
	OnGone  func()
}

// Host serves frames to one WebRTC viewer.
type Host struct {
	pc        *webrtc.PeerConnection
	sig       Signaler
	feed      Feed
	hooks     Hooks
	transport *transport.DataChannelTransport
	viewerID  string
	buffer    int
	closePC   sync.Once

	mu     sync.Mutex
	cancel func()
	opened bool
	closed bool
}

// NewHost creates a Host for the viewer identified by viewerID. buffer is the
// viewer's frame queue length.
func NewHost(sig Signaler, feed Feed, viewerID string, iceServers []string, buffer int, hooks Hooks) (*Host, error) {
	pc, err := NewPeerConnection(iceServers)
	if err != nil {
		return nil, err
	}

	h := &Host{
		pc:        pc,
		sig:       sig,
		feed:      feed,
		hooks:     hooks,
		transport: transport.NewDataChannelTransport(nil),
		viewerID:  viewerID,
		buffer:    max(buffer, 1),
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != FramesLabel {
			log.Warn().Str("module", "peer").Str("label", dc.Label()).Msg("ignoring data channel")
			return
		}
		h.transport.SetFramesChannel(dc)
		dc.OnOpen(h.open)
		dc.OnClose(h.close)
	})

	pc.OnConnectionStateChange(h.onState)

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
		_ = sig.SendICECandidate(h.viewerID, data)
	})

	return h, nil
}

// HandleOffer processes the viewer's offer and sends back an answer.
func (h *Host) HandleOffer(payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return err
	}
	if err := h.pc.SetRemoteDescription(offer); err != nil {
		return err
	}

	answer, err := h.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := h.pc.SetLocalDescription(answer); err != nil {
		return err
	}

	answerJSON, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return h.sig.SendAnswer(h.viewerID, answerJSON)
}

// HandleICECandidate adds a remote ICE candidate.
func (h *Host) HandleICECandidate(payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return err
	}
	return h.pc.AddICECandidate(candidate)
}

func (h *Host) onState(state webrtc.PeerConnectionState) {
	log.Info().Str("module", "peer").Str("viewer", h.viewerID).Str("state", state.String()).Msg("peer connection state")
	switch state {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		// Close must not run on the pion callback goroutine.
		go h.Close()
	}
}

// Close releases the viewer and shuts down the peer connection. OnGone runs
// after the first call.
func (h *Host) Close() {
	h.close()
	h.closePC.Do(func() {
		if err := h.pc.Close(); err != nil {
			log.Debug().Str("module", "peer").Str("viewer", h.viewerID).Err(err).Msg("close peer connection")
		}
		if h.hooks.OnGone != nil {
			h.hooks.OnGone()
		}
	})
}

func (h *Host) open() {
	if h.hooks.OnOpen != nil {
		if err := h.hooks.OnOpen(); err != nil {
			log.Warn().Str("module", "peer").Str("viewer", h.viewerID).Err(err).Msg("viewer rejected")
			go h.Close()
			return
		}
	}
	_, frames, cancel := h.feed.Subscribe(h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		if h.hooks.OnClose != nil {
			h.hooks.OnClose()
		}
		return
	}
	h.cancel = cancel
	h.opened = true
	h.mu.Unlock()

	log.Info().Str("module", "peer").Str("viewer", h.viewerID).Msg("frames channel open")
	go h.pump(frames)
}

// close releases the subscription and the viewer hook exactly once.
func (h *Host) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	cancel, opened := h.cancel, h.opened
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if opened && h.hooks.OnClose != nil {
		h.hooks.OnClose()
	}
}

func (h *Host) pump(frames <-chan []byte) {
	for frame := range frames {
		err := h.transport.SendFrame(frame)
		if err != nil && !errors.Is(err, transport.ErrBackpressure) {
			log.Debug().Str("module", "peer").Str("viewer", h.viewerID).Err(err).Msg("send frame")
		}
	}
}
