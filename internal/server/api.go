package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/junsooki/InkCast/internal/capture"
	"github.com/junsooki/InkCast/internal/transport"
)

type startRequest struct {
	Host string `json:"host"`
	Port string `json:"port"`
}

type statusResponse struct {
	Session capture.Status     `json:"session"`
	Hub     transport.HubStats `json:"hub"`
	Viewers int                `json:"viewers"`
}

type errorResponse struct {
	Error   string          `json:"error"`
	Session *capture.Status `json:"session,omitempty"`
}

func (s *Server) status() statusResponse {
	return statusResponse{
		Session: s.session.Status(),
		Hub:     s.feed.Stats(),
		Viewers: s.demand.Viewers(),
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status())
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	if req.Host == "" {
		req.Host = s.opts.Host
	}
	if req.Port == "" {
		req.Port = s.opts.Port
	}

	if err := s.demand.Start(req.Host, req.Port); err != nil {
		log.Error().Str("module", "server").Err(err).Msg("start stream")
		c.JSON(errorStatus(err), errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.status())
}

func (s *Server) handleStop(c *gin.Context) {
	err := s.demand.Stop()
	s.feed.Reset()
	if err != nil {
		log.Error().Str("module", "server").Err(err).Msg("stop stream")
		st := s.session.Status()
		c.JSON(errorStatus(err), errorResponse{Error: err.Error(), Session: &st})
		return
	}
	c.JSON(http.StatusOK, s.status())
}

// errorStatus maps capture errors onto HTTP status codes.
func errorStatus(err error) int {
	var spawn *capture.SpawnError
	switch {
	case errors.Is(err, capture.ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.As(err, &spawn):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
