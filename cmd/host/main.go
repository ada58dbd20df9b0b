package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/junsooki/InkCast/internal/capture"
	"github.com/junsooki/InkCast/internal/config"
	"github.com/junsooki/InkCast/internal/peer"
	"github.com/junsooki/InkCast/internal/server"
	"github.com/junsooki/InkCast/internal/signaling"
	"github.com/junsooki/InkCast/internal/transport"
)

const (
	shutdownTimeout = 5 * time.Second
	reconnectDelay  = 5 * time.Second
)

func main() {
	cfg, err := config.LoadHost(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "inkcast-host: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Log.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "inkcast-host: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("host exited")
	}
	log.Info().Msg("host exited gracefully")
}

func run(ctx context.Context, cfg *config.Host) error {
	log.Info().
		Str("listen", cfg.Listen).
		Str("device", cfg.Device.Host+":"+cfg.Device.Port).
		Str("framebuffer", cfg.Capture.Framebuffer).
		Int("width", cfg.Capture.Width).
		Int("height", cfg.Capture.Height).
		Int("fps", cfg.Capture.OutputFPS).
		Bool("webrtc", cfg.Signaling.Enabled()).
		Msg("InkCast host starting")

	hub := transport.NewHub()
	session := capture.NewSession(hub,
		capture.WithPipeline(cfg.Capture),
		capture.WithStopTimeout(cfg.StopTimeout),
		capture.WithChunkSize(cfg.ChunkSize),
		capture.WithExitHook(func(capture.Exit) { hub.Reset() }),
	)
	demand := capture.NewDemand(session)
	defer func() {
		if err := session.Stop(); err != nil {
			log.Error().Str("module", "capture").Err(err).Msg("stop on exit")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	srv := server.New(gctx, demand, session, hub, server.Options{
		Host:   cfg.Device.Host,
		Port:   cfg.Device.Port,
		Buffer: cfg.SubscriberBuffer,
	})
	httpSrv := &http.Server{Addr: cfg.Listen, Handler: srv.Router()}

	g.Go(func() error {
		log.Info().Str("addr", cfg.Listen).Msg("http server started")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server forced to shutdown")
		}
		return nil
	})

	if cfg.Signaling.Enabled() {
		relay := &signalRelay{}
		broker := peer.NewBroker(relay, hub, cfg.Signaling.ICEServers, cfg.SubscriberBuffer, peer.Hooks{
			OnOpen: func() error {
				return demand.Acquire(cfg.Device.Host, cfg.Device.Port)
			},
			OnClose: demand.Release,
		})
		defer broker.Close()
		g.Go(func() error {
			serveSignaling(gctx, cfg.Signaling, relay, broker)
			return nil
		})
	}

	return g.Wait()
}

// serveSignaling keeps a registration on the signaling server until ctx ends,
// reconnecting after a drop.
func serveSignaling(ctx context.Context, cfg config.Signaling, relay *signalRelay, broker *peer.Broker) {
	for {
		client := signaling.NewClient(cfg.URL, cfg.ID, signaling.ClientTypeHost, signaling.Handler{
			OnRegistered: func() {
				log.Info().Str("module", "signaling").Str("id", cfg.ID).Msg("registered, share this ID with viewers")
			},
			OnOffer:        broker.HandleOffer,
			OnICECandidate: broker.HandleICECandidate,
			OnError: func(msg string) {
				log.Warn().Str("module", "signaling").Str("error", msg).Msg("signaling error")
			},
		})
		if err := client.Connect(); err != nil {
			log.Warn().Str("module", "signaling").Err(err).Dur("retry", reconnectDelay).Msg("signaling connect")
		} else {
			relay.set(client)
			select {
			case <-ctx.Done():
				client.Close()
				return
			case <-client.Done():
				log.Warn().Str("module", "signaling").Dur("retry", reconnectDelay).Msg("signaling connection lost")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// signalRelay forwards to whichever signaling client is currently connected.
type signalRelay struct {
	client atomic.Pointer[signaling.Client]
}

func (r *signalRelay) set(c *signaling.Client) { r.client.Store(c) }

func (r *signalRelay) SendAnswer(target string, payload json.RawMessage) error {
	c := r.client.Load()
	if c == nil {
		return errors.New("signaling not connected")
	}
	return c.SendAnswer(target, payload)
}

func (r *signalRelay) SendICECandidate(target string, payload json.RawMessage) error {
	c := r.client.Load()
	if c == nil {
		return errors.New("signaling not connected")
	}
	return c.SendICECandidate(target, payload)
}
