package transport

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketReceiver receives frames as binary WebSocket messages.
type WebSocketReceiver struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	onFrame func(data []byte)
	done    chan struct{}
	closed  bool
}

// NewWebSocketReceiver creates a receiver for url (ws:// or wss://).
func NewWebSocketReceiver(url string) *WebSocketReceiver {
	return &WebSocketReceiver{url: url, done: make(chan struct{})}
}

func (r *WebSocketReceiver) OnFrame(cb func(data []byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFrame = cb
}

// Connect dials the server and starts reading frames.
func (r *WebSocketReceiver) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(r.url, nil)
	if err != nil {
		return fmt.Errorf("frames dial: %w", err)
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	go r.readLoop(conn)
	return nil
}

// Done is closed when the connection ends.
func (r *WebSocketReceiver) Done() <-chan struct{} {
	return r.done
}

// Close shuts down the connection.
func (r *WebSocketReceiver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
	if r.conn != nil {
		_ = r.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		r.conn.Close()
	}
}

func (r *WebSocketReceiver) readLoop(conn *websocket.Conn) {
	defer r.Close()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-r.done:
			default:
				log.Warn().Str("module", "transport").Err(err).Msg("frames read")
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		r.mu.Lock()
		cb := r.onFrame
		r.mu.Unlock()
		if cb != nil {
			cb(data)
		}
	}
}
