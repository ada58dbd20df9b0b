package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/junsooki/InkCast/internal/config"
	"github.com/junsooki/InkCast/internal/decoder"
	"github.com/junsooki/InkCast/internal/display"
	"github.com/junsooki/InkCast/internal/peer"
	"github.com/junsooki/InkCast/internal/signaling"
	"github.com/junsooki/InkCast/internal/transport"
)

func main() {
	cfg, err := config.LoadViewer(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "inkcast-viewer: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Log.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "inkcast-viewer: %v\n", err)
		os.Exit(2)
	}

	tone := decoder.Tone{}
	if cfg.EInkTone {
		tone = decoder.EInkTone
	}
	dec := decoder.NewJPEGDecoder(tone)
	disp := display.NewEbitenDisplay("InkCast")

	onFrame := func(data []byte) {
		img, err := dec.Decode(data)
		if err != nil {
			log.Debug().Err(err).Int("bytes", len(data)).Msg("decode frame")
			return
		}
		disp.SetFrame(img)
	}

	var closeFn func()
	if cfg.WebRTC() {
		closeFn, err = connectWebRTC(cfg, disp, onFrame)
	} else {
		closeFn, err = connectWebSocket(cfg, disp, onFrame)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer closeFn()

	// Ebitengine RunGame must be on the main goroutine.
	if err := disp.Run(); err != nil {
		log.Fatal().Err(err).Msg("display")
	}
}

func connectWebSocket(cfg *config.Viewer, disp display.Display, onFrame func([]byte)) (func(), error) {
	url, err := cfg.ScreenURL()
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", url).Msg("InkCast viewer connecting")

	ws := transport.NewWebSocketReceiver(url)
	ws.OnFrame(onFrame)
	if err := ws.Connect(); err != nil {
		return nil, err
	}
	disp.SetStatus("connected to " + url)

	go func() {
		<-ws.Done()
		log.Warn().Msg("stream connection closed")
		disp.SetStatus("disconnected")
	}()
	return ws.Close, nil
}

func connectWebRTC(cfg *config.Viewer, disp display.Display, onFrame func([]byte)) (func(), error) {
	log.Info().
		Str("id", cfg.Signaling.ID).
		Str("signaling", cfg.Signaling.URL).
		Str("host", cfg.HostID).
		Msg("InkCast viewer connecting over WebRTC")

	var viewer *peer.Viewer
	var sig *signaling.Client
	sig = signaling.NewClient(cfg.Signaling.URL, cfg.Signaling.ID, signaling.ClientTypeViewer, signaling.Handler{
		OnRegistered: func() {
			log.Info().Str("module", "signaling").Msg("registered with signaling server")
			if err := viewer.Connect(); err != nil {
				log.Error().Str("module", "peer").Err(err).Msg("send offer")
				disp.SetStatus("offer failed")
				return
			}
			disp.SetStatus("waiting for " + cfg.HostID)
		},
		OnAnswer: func(from string, payload json.RawMessage) {
			if err := viewer.HandleAnswer(payload); err != nil {
				log.Warn().Str("module", "peer").Err(err).Msg("handle answer")
			}
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			if err := viewer.HandleICECandidate(payload); err != nil {
				log.Warn().Str("module", "peer").Err(err).Msg("handle ICE candidate")
			}
		},
		OnHostDisconnected: func(hostID string) {
			log.Warn().Str("module", "signaling").Str("host", hostID).Msg("host disconnected")
			disp.SetStatus("host disconnected")
		},
		OnError: func(msg string) {
			log.Warn().Str("module", "signaling").Str("error", msg).Msg("signaling error")
			disp.SetStatus(msg)
		},
	})

	var err error
	viewer, err = peer.NewViewer(sig, cfg.HostID, cfg.Signaling.ICEServers)
	if err != nil {
		return nil, fmt.Errorf("create viewer peer: %w", err)
	}
	viewer.Transport().OnFrame(onFrame)

	if err := sig.Connect(); err != nil {
		viewer.Close()
		return nil, err
	}
	return func() {
		viewer.Close()
		sig.Close()
	}, nil
}
