package transport

import (
	"sync"

	"github.com/google/uuid"
)

// HubStats is a snapshot of hub counters.
type HubStats struct {
	Subscribers int    `json:"subscribers"`
	Frames      uint64 `json:"frames"`
	Drops       uint64 `json:"drops"`
}

// Hub fans frames out to any number of subscribers without blocking the
// sender. Each subscriber has its own bounded queue; a full queue drops the
// frame for that subscriber only. All subscribers share the same frame slice,
// which must be treated as read-only.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]chan []byte
	latest []byte
	frames uint64
	drops  uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan []byte)}
}

// SendFrame publishes frame to every subscriber. It returns ErrBackpressure
// if any subscriber missed it.
func (h *Hub) SendFrame(frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = frame
	h.frames++
	dropped := false
	for _, ch := range h.subs {
		select {
		case ch <- frame:
		default:
			h.drops++
			dropped = true
		}
	}
	if dropped {
		return ErrBackpressure
	}
	return nil
}

// Subscribe registers a receiver with a queue of buffer frames (minimum 1).
// The queue is primed with the latest frame, if any. cancel unregisters and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (id string, frames <-chan []byte, cancel func()) {
	ch := make(chan []byte, max(buffer, 1))
	id = uuid.NewString()

	h.mu.Lock()
	if h.latest != nil {
		ch <- h.latest
	}
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return id, ch, cancel
}

// Latest returns the most recent frame, or nil.
func (h *Hub) Latest() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Reset forgets the latest frame, e.g. when the capture stops.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = nil
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HubStats{Subscribers: len(h.subs), Frames: h.frames, Drops: h.drops}
}
