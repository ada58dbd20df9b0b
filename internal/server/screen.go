package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/junsooki/InkCast/internal/capture"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 50 * time.Second
	maxReadBytes = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleScreen streams each frame as one binary WebSocket message. The first
// viewer starts the capture for ?ip=&port=, the last one to leave stops it.
func (s *Server) handleScreen(c *gin.Context) {
	host, port := s.target(c)
	if err := capture.ValidateTarget(host, port); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.demand.Acquire(host, port); err != nil {
		log.Error().Str("module", "server").Err(err).Str("device", host+":"+port).Msg("start stream for viewer")
		c.JSON(errorStatus(err), errorResponse{Error: err.Error()})
		return
	}
	defer s.demand.Release()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "server").Err(err).Msg("ws upgrade")
		return
	}
	defer ws.Close()

	id, frames, cancel := s.feed.Subscribe(s.opts.Buffer)
	defer cancel()
	logger := log.With().Str("module", "server").Str("viewer", id).Logger()
	logger.Info().Str("remote", c.ClientIP()).Str("device", host+":"+port).Msg("viewer connected")

	done := make(chan struct{})
	go readPump(ws, done)
	err = s.writePump(ws, frames, done)
	logger.Info().AnErr("reason", err).Msg("viewer disconnected")
}

// readPump discards client messages and closes done when the peer goes away.
func readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	ws.SetReadLimit(maxReadBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(ws *websocket.Conn, frames <-chan []byte, done <-chan struct{}) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return s.ctx.Err()
		case <-done:
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return err
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}
