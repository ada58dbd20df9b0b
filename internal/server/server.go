package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/junsooki/InkCast/internal/capture"
	"github.com/junsooki/InkCast/internal/transport"
)

// Demand is the viewer-counted capture control, see capture.Demand.
type Demand interface {
	Acquire(host, port string) error
	Release()
	Start(host, port string) error
	Stop() error
	Viewers() int
}

// Session reports the capture state.
type Session interface {
	Status() capture.Status
}

// Feed is the frame fan-out, see transport.Hub.
type Feed interface {
	Subscribe(buffer int) (id string, frames <-chan []byte, cancel func())
	Reset()
	Stats() transport.HubStats
}

// Options configures the HTTP surface.
type Options struct {
	// Mode is the gin mode: "release", "debug" or "test".
	Mode string
	// Host and Port are the device used when a request names none.
	Host string
	Port string
	// Buffer is the per-viewer frame queue length.
	Buffer int
}

// Server exposes the frame feed over WebSocket and multipart MJPEG, plus a
// small JSON API to drive the capture.
type Server struct {
	ctx     context.Context
	demand  Demand
	session Session
	feed    Feed
	opts    Options
}

// New creates a server. Streaming handlers end when ctx is cancelled.
func New(ctx context.Context, demand Demand, session Session, feed Feed, opts Options) *Server {
	if opts.Buffer <= 0 {
		opts.Buffer = 4
	}
	return &Server{ctx: ctx, demand: demand, session: session, feed: feed, opts: opts}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	switch s.opts.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(s.opts.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if s.opts.Mode == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/stream.mjpeg", s.handleMJPEG)

	api := r.Group("/api")
	api.GET("/screen", s.handleScreen)
	api.GET("/status", s.handleStatus)
	api.POST("/stream/start", s.handleStart)
	api.POST("/stream/stop", s.handleStop)

	log.Info().Str("module", "server").Str("device", s.opts.Host+":"+s.opts.Port).Msg("router setup")
	return r
}

// target reads ?ip=&port=, falling back to the configured device.
func (s *Server) target(c *gin.Context) (host, port string) {
	return c.DefaultQuery("ip", s.opts.Host), c.DefaultQuery("port", s.opts.Port)
}
