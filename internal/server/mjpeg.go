package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/junsooki/InkCast/internal/capture"
)

const boundary = "inkcastframe"

// handleMJPEG serves the feed as multipart/x-mixed-replace, which browsers
// render natively in an <img> tag.
func (s *Server) handleMJPEG(c *gin.Context) {
	host, port := s.target(c)
	if err := capture.ValidateTarget(host, port); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.demand.Acquire(host, port); err != nil {
		log.Error().Str("module", "server").Err(err).Str("device", host+":"+port).Msg("start stream for mjpeg viewer")
		c.JSON(errorStatus(err), errorResponse{Error: err.Error()})
		return
	}
	defer s.demand.Release()

	id, frames, cancel := s.feed.Subscribe(s.opts.Buffer)
	defer cancel()
	log.Info().Str("module", "server").Str("viewer", id).Str("remote", c.ClientIP()).Msg("mjpeg viewer connected")

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "close")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	mw := multipart.NewWriter(c.Writer)
	if err := mw.SetBoundary(boundary); err != nil {
		return
	}
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-s.ctx.Done():
			return false
		case <-ctx.Done():
			return false
		case frame, ok := <-frames:
			if !ok {
				return false
			}
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {strconv.Itoa(len(frame))},
			})
			if err != nil {
				return false
			}
			_, err = part.Write(frame)
			return err == nil
		}
	})
	log.Info().Str("module", "server").Str("viewer", id).Msg("mjpeg viewer disconnected")
}
