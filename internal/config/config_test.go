package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/junsooki/InkCast/internal/capture"
)

func TestLoadHostDefaults(t *testing.T) {
	cfg, err := LoadHost(nil)
	if err != nil {
		t.Fatalf("LoadHost: %v", err)
	}
	if cfg.Listen != ":3000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Device != (Device{Host: "192.168.50.73", Port: "2222"}) {
		t.Errorf("Device = %+v", cfg.Device)
	}
	if cfg.Capture != capture.DefaultPipeline() {
		t.Errorf("Capture = %+v", cfg.Capture)
	}
	if cfg.StopTimeout != 5*time.Second {
		t.Errorf("StopTimeout = %v", cfg.StopTimeout)
	}
	if cfg.ChunkSize != 40960 {
		t.Errorf("ChunkSize = %d", cfg.ChunkSize)
	}
	if cfg.Signaling.Enabled() {
		t.Error("signaling enabled by default")
	}
	if !strings.HasPrefix(cfg.Signaling.ID, "inkcast-") {
		t.Errorf("ID = %q", cfg.Signaling.ID)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoadHostFlags(t *testing.T) {
	cfg, err := LoadHost([]string{
		"--ip", "10.0.0.2", "--port", "22", "--fps", "2",
		"--signaling", "ws://sig:8080/ws", "--id", "desk",
		"--ice", "stun:a:3478,stun:b:3478",
	})
	if err != nil {
		t.Fatalf("LoadHost: %v", err)
	}
	if cfg.Device.Host != "10.0.0.2" || cfg.Device.Port != "22" {
		t.Errorf("Device = %+v", cfg.Device)
	}
	if cfg.Capture.OutputFPS != 2 {
		t.Errorf("OutputFPS = %d", cfg.Capture.OutputFPS)
	}
	if !cfg.Signaling.Enabled() || cfg.Signaling.ID != "desk" {
		t.Errorf("Signaling = %+v", cfg.Signaling)
	}
	if len(cfg.Signaling.ICEServers) != 2 || cfg.Signaling.ICEServers[1] != "stun:b:3478" {
		t.Errorf("ICEServers = %v", cfg.Signaling.ICEServers)
	}
}

func TestLoadHostEnv(t *testing.T) {
	t.Setenv("INKCAST_DEVICE_PORT", "2223")
	t.Setenv("INKCAST_CAPTURE_USER", "admin")
	t.Setenv("INKCAST_STOP_TIMEOUT", "2s")

	cfg, err := LoadHost(nil)
	if err != nil {
		t.Fatalf("LoadHost: %v", err)
	}
	if cfg.Device.Port != "2223" {
		t.Errorf("Device.Port = %q", cfg.Device.Port)
	}
	if cfg.Capture.User != "admin" {
		t.Errorf("Capture.User = %q", cfg.Capture.User)
	}
	if cfg.StopTimeout != 2*time.Second {
		t.Errorf("StopTimeout = %v", cfg.StopTimeout)
	}

	cfg, err = LoadHost([]string{"--port", "22"})
	if err != nil {
		t.Fatalf("LoadHost: %v", err)
	}
	if cfg.Device.Port != "22" {
		t.Errorf("flag did not override env: %q", cfg.Device.Port)
	}
}

func TestLoadHostFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkcast.yaml")
	data := `
listen: ":8080"
device:
  host: paper.local
capture:
  pixel_format: rgb565le
  interval: 250ms
  crop: ""
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadHost([]string{"--config", path})
	if err != nil {
		t.Fatalf("LoadHost: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.Device.Host != "paper.local" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Device.Port != "2222" {
		t.Errorf("Device.Port = %q, want default", cfg.Device.Port)
	}
	if cfg.Capture.PixelFormat != "rgb565le" || cfg.Capture.Interval != 250*time.Millisecond {
		t.Errorf("Capture = %+v", cfg.Capture)
	}
	if cfg.Capture.Crop != "" {
		t.Errorf("Crop = %q, want empty", cfg.Capture.Crop)
	}
	if cfg.Capture.Width != 1872 {
		t.Errorf("Width = %d, want default", cfg.Capture.Width)
	}
}

func TestLoadHostErrors(t *testing.T) {
	if _, err := LoadHost([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("--help: err = %v", err)
	}
	if _, err := LoadHost([]string{"--ip", "-oProxyCommand=x"}); !errors.Is(err, capture.ErrInvalidTarget) {
		t.Errorf("bad ip: err = %v", err)
	}
	if _, err := LoadHost([]string{"--port", "0"}); !errors.Is(err, capture.ErrInvalidTarget) {
		t.Errorf("bad port: err = %v", err)
	}
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := LoadHost([]string{"--config", missing}); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestLoadViewer(t *testing.T) {
	cfg, err := LoadViewer(nil)
	if err != nil {
		t.Fatalf("LoadViewer: %v", err)
	}
	if cfg.WebRTC() {
		t.Error("WebRTC enabled by default")
	}
	if !cfg.EInkTone {
		t.Error("EInkTone off by default")
	}
	u, err := cfg.ScreenURL()
	if err != nil {
		t.Fatalf("ScreenURL: %v", err)
	}
	if u != "ws://localhost:3000/api/screen" {
		t.Errorf("ScreenURL = %q", u)
	}

	cfg, err = LoadViewer([]string{"--url", "http://pi:3000/api/screen", "--ip", "10.0.0.2", "--port", "22", "--eink=false"})
	if err != nil {
		t.Fatalf("LoadViewer: %v", err)
	}
	if cfg.EInkTone {
		t.Error("--eink=false ignored")
	}
	u, err = cfg.ScreenURL()
	if err != nil {
		t.Fatalf("ScreenURL: %v", err)
	}
	if u != "ws://pi:3000/api/screen?ip=10.0.0.2&port=22" {
		t.Errorf("ScreenURL = %q", u)
	}
}

func TestLoadViewerWebRTC(t *testing.T) {
	if _, err := LoadViewer([]string{"--signaling", "ws://sig/ws"}); err == nil {
		t.Error("signaling without host accepted")
	}
	cfg, err := LoadViewer([]string{"--signaling", "ws://sig/ws", "--host", "desk"})
	if err != nil {
		t.Fatalf("LoadViewer: %v", err)
	}
	if !cfg.WebRTC() || !strings.HasPrefix(cfg.Signaling.ID, "viewer-") {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestScreenURLBadScheme(t *testing.T) {
	cfg := &Viewer{URL: "ftp://x/api/screen"}
	if _, err := cfg.ScreenURL(); err == nil {
		t.Error("ftp scheme accepted")
	}
}
