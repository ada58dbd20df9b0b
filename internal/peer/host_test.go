package peer

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/InkCast/internal/transport"
)

type nopSignaler struct{}

func (nopSignaler) SendAnswer(string, json.RawMessage) error       { return nil }
func (nopSignaler) SendICECandidate(string, json.RawMessage) error { return nil }

// offerRecorder keeps the last offer a Viewer sends.
type offerRecorder struct {
	mu    sync.Mutex
	offer json.RawMessage
}

func (r *offerRecorder) SendOffer(_ string, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offer = payload
	return nil
}

func (r *offerRecorder) SendICECandidate(string, json.RawMessage) error { return nil }

// recordingFeed remembers the queue length asked for.
type recordingFeed struct {
	*transport.Hub
	buffer int
}

func (f *recordingFeed) Subscribe(buffer int) (string, <-chan []byte, func()) {
	f.buffer = buffer
	return f.Hub.Subscribe(buffer)
}

func newOffer(t *testing.T) json.RawMessage {
	t.Helper()
	rec := &offerRecorder{}
	v, err := NewViewer(rec, "host-1", nil)
	if err != nil {
		t.Fatalf("NewViewer: %v", err)
	}
	t.Cleanup(v.Close)
	if err := v.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.offer
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHostOpenCloseHooks(t *testing.T) {
	feed := &recordingFeed{Hub: transport.NewHub()}
	var opens, closes, gone int
	h, err := NewHost(nopSignaler{}, feed, "viewer-1", nil, 3, Hooks{
		OnOpen:  func() error { opens++; return nil },
		OnClose: func() { closes++ },
		OnGone:  func() { gone++ },
	})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}

	h.open()
	if opens != 1 || feed.Stats().Subscribers != 1 {
		t.Fatalf("opens=%d subscribers=%d", opens, feed.Stats().Subscribers)
	}
	if feed.buffer != 3 {
		t.Errorf("subscribed with buffer %d, want 3", feed.buffer)
	}
	h.Close()
	h.Close()
	if closes != 1 || gone != 1 {
		t.Errorf("closes=%d gone=%d, want 1 each", closes, gone)
	}
	if n := feed.Stats().Subscribers; n != 0 {
		t.Errorf("subscribers after Close = %d", n)
	}
	if state := h.pc.SignalingState(); state != webrtc.SignalingStateClosed {
		t.Errorf("signaling state = %s, want closed", state)
	}
}

func TestHostRejectedViewer(t *testing.T) {
	hub := transport.NewHub()
	closes := 0
	h, err := NewHost(nopSignaler{}, hub, "viewer-1", nil, 2, Hooks{
		OnOpen:  func() error { return errors.New("capture unavailable") },
		OnClose: func() { closes++ },
	})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	h.open()
	h.Close()
	if hub.Stats().Subscribers != 0 || closes != 0 {
		t.Errorf("rejected viewer subscribed=%d closes=%d", hub.Stats().Subscribers, closes)
	}
}

func TestBrokerBadOffer(t *testing.T) {
	b := NewBroker(nopSignaler{}, transport.NewHub(), nil, 2, Hooks{})
	defer b.Close()

	b.HandleOffer("viewer-1", json.RawMessage(`not json`))
	waitUntil(t, "bad offer to be dropped", func() bool { return b.Len() == 0 })
	// Unknown viewers are ignored.
	b.HandleICECandidate("nobody", json.RawMessage(`{}`))
}

func TestBrokerDropsFailedHost(t *testing.T) {
	b := NewBroker(nopSignaler{}, transport.NewHub(), nil, 2, Hooks{})
	defer b.Close()

	b.HandleOffer("viewer-1", newOffer(t))
	if n := b.Len(); n != 1 {
		t.Fatalf("Len = %d after a valid offer", n)
	}
	b.mu.Lock()
	h := b.hosts["viewer-1"]
	b.mu.Unlock()

	h.onState(webrtc.PeerConnectionStateFailed)
	waitUntil(t, "failed host to be dropped", func() bool { return b.Len() == 0 })
	waitUntil(t, "peer connection to close", func() bool {
		return h.pc.SignalingState() == webrtc.SignalingStateClosed
	})
}

func TestBrokerReplacedHostKeepsNewOne(t *testing.T) {
	b := NewBroker(nopSignaler{}, transport.NewHub(), nil, 2, Hooks{})
	defer b.Close()

	b.HandleOffer("viewer-1", newOffer(t))
	b.mu.Lock()
	first := b.hosts["viewer-1"]
	b.mu.Unlock()

	b.HandleOffer("viewer-1", newOffer(t))
	waitUntil(t, "replaced peer connection to close", func() bool {
		return first.pc.SignalingState() == webrtc.SignalingStateClosed
	})
	// The old host going away must not evict its replacement.
	time.Sleep(50 * time.Millisecond)
	b.mu.Lock()
	current := b.hosts["viewer-1"]
	b.mu.Unlock()
	if current == nil || current == first {
		t.Fatalf("hosts[viewer-1] = %p, want the replacement", current)
	}
}
