package peer

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Broker tracks one Host per viewer and routes signaling to it.
type Broker struct {
	sig        Signaler
	feed       Feed
	iceServers []string
	buffer     int
	hooks      Hooks

	mu    sync.Mutex
	hosts map[string]*Host
}

// NewBroker creates a Broker. buffer is the per-viewer frame queue length.
func NewBroker(sig Signaler, feed Feed, iceServers []string, buffer int, hooks Hooks) *Broker {
	return &Broker{
		sig:        sig,
		feed:       feed,
		iceServers: iceServers,
		buffer:     buffer,
		hooks:      hooks,
		hosts:      make(map[string]*Host),
	}
}

// HandleOffer replaces any previous Host for from and answers the offer.
func (b *Broker) HandleOffer(from string, payload json.RawMessage) {
	var h *Host
	hooks := b.hooks
	hooks.OnGone = func() { b.forget(from, h) }
	h, err := NewHost(b.sig, b.feed, from, b.iceServers, b.buffer, hooks)
	if err != nil {
		log.Warn().Str("module", "peer").Err(err).Msg("create host peer")
		return
	}

	b.mu.Lock()
	old := b.hosts[from]
	b.hosts[from] = h
	b.mu.Unlock()
	if old != nil {
		old.Close()
	}

	if err := h.HandleOffer(payload); err != nil {
		log.Warn().Str("module", "peer").Str("viewer", from).Err(err).Msg("handle offer")
		b.remove(from, h)
	}
}

// HandleICECandidate forwards a candidate to the viewer's Host.
func (b *Broker) HandleICECandidate(from string, payload json.RawMessage) {
	b.mu.Lock()
	h := b.hosts[from]
	b.mu.Unlock()
	if h == nil {
		return
	}
	if err := h.HandleICECandidate(payload); err != nil {
		log.Warn().Str("module", "peer").Str("viewer", from).Err(err).Msg("handle ICE candidate")
	}
}

// Close shuts down every Host.
func (b *Broker) Close() {
	b.mu.Lock()
	hosts := b.hosts
	b.hosts = make(map[string]*Host)
	b.mu.Unlock()
	for _, h := range hosts {
		h.Close()
	}
}

// Len returns the number of tracked viewers.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.hosts)
}

func (b *Broker) remove(from string, h *Host) {
	b.forget(from, h)
	h.Close()
}

// forget drops h unless a newer Host has replaced it.
func (b *Broker) forget(from string, h *Host) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hosts[from] == h {
		delete(b.hosts, from)
	}
}
