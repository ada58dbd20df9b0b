package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/junsooki/InkCast/internal/capture"
	"github.com/junsooki/InkCast/internal/mjpeg"
)

// EnvPrefix prefixes every environment override, e.g. INKCAST_DEVICE_HOST.
const EnvPrefix = "INKCAST"

const (
	defaultDeviceHost = "192.168.50.73"
	defaultDevicePort = "2222"
)

// Device is the e-ink device reached over ssh.
type Device struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Signaling configures the optional WebRTC path.
type Signaling struct {
	URL        string   `mapstructure:"url"`
	ID         string   `mapstructure:"id"`
	ICEServers []string `mapstructure:"ice_servers"`
}

// Enabled reports whether a signaling server was configured.
func (s Signaling) Enabled() bool { return s.URL != "" }

// Log configures the global zerolog logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Host holds the configuration of the streaming server.
type Host struct {
	Listen           string           `mapstructure:"listen"`
	Device           Device           `mapstructure:"device"`
	Capture          capture.Pipeline `mapstructure:"capture"`
	StopTimeout      time.Duration    `mapstructure:"stop_timeout"`
	ChunkSize        int              `mapstructure:"chunk_size"`
	SubscriberBuffer int              `mapstructure:"subscriber_buffer"`
	Signaling        Signaling        `mapstructure:"signaling"`
	Log              Log              `mapstructure:"log"`
}

// Viewer holds the configuration of the desktop viewer.
type Viewer struct {
	URL       string    `mapstructure:"url"`
	Device    Device    `mapstructure:"device"`
	EInkTone  bool      `mapstructure:"eink_tone"`
	HostID    string    `mapstructure:"host_id"`
	Signaling Signaling `mapstructure:"signaling"`
	Log       Log       `mapstructure:"log"`
}

// WebRTC reports whether the viewer should connect through signaling.
func (c *Viewer) WebRTC() bool {
	return c.Signaling.Enabled() && c.HostID != ""
}

// ScreenURL is the WebSocket URL carrying the device target as ?ip=&port=.
func (c *Viewer) ScreenURL() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("url %q: unsupported scheme %q", c.URL, u.Scheme)
	}
	q := u.Query()
	if c.Device.Host != "" {
		q.Set("ip", c.Device.Host)
	}
	if c.Device.Port != "" {
		q.Set("port", c.Device.Port)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// LoadHost reads the host configuration from defaults, an optional yaml
// file, INKCAST_* environment variables and command-line flags, in
// increasing priority. A --help request returns pflag.ErrHelp.
func LoadHost(args []string) (*Host, error) {
	fs := pflag.NewFlagSet("inkcast-host", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Path to a yaml config file")
	fs.String("listen", ":3000", "HTTP listen address")
	fs.String("ip", defaultDeviceHost, "Default device address")
	fs.String("port", defaultDevicePort, "Default device ssh port")
	fs.Int("fps", 1, "MJPEG output frame rate")
	fs.String("signaling", "", "Signaling server WebSocket URL (empty disables WebRTC)")
	fs.String("id", "", "Host ID on the signaling server (auto-generated if empty)")
	fs.StringSlice("ice", nil, "ICE server URLs")
	fs.String("log-level", "info", "Log level")

	v := viper.New()
	p := capture.DefaultPipeline()
	v.SetDefault("listen", ":3000")
	v.SetDefault("device.host", defaultDeviceHost)
	v.SetDefault("device.port", defaultDevicePort)
	v.SetDefault("capture.shell", p.Shell)
	v.SetDefault("capture.user", p.User)
	v.SetDefault("capture.framebuffer", p.Framebuffer)
	v.SetDefault("capture.width", p.Width)
	v.SetDefault("capture.height", p.Height)
	v.SetDefault("capture.pixel_format", p.PixelFormat)
	v.SetDefault("capture.interval", p.Interval)
	v.SetDefault("capture.input_fps", p.InputFPS)
	v.SetDefault("capture.crop", p.Crop)
	v.SetDefault("capture.output_fps", p.OutputFPS)
	v.SetDefault("capture.ffmpeg_log_level", p.LogLevel)
	v.SetDefault("stop_timeout", capture.DefaultStopTimeout)
	v.SetDefault("chunk_size", mjpeg.DefaultChunkSize)
	v.SetDefault("subscriber_buffer", 4)
	v.SetDefault("signaling.url", "")
	v.SetDefault("signaling.id", "")
	v.SetDefault("signaling.ice_servers", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := load(v, fs, args, configFile, map[string]string{
		"listen":                "listen",
		"device.host":           "ip",
		"device.port":           "port",
		"capture.output_fps":    "fps",
		"signaling.url":         "signaling",
		"signaling.id":          "id",
		"signaling.ice_servers": "ice",
		"log.level":             "log-level",
	}); err != nil {
		return nil, err
	}

	var cfg Host
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Signaling.ID == "" {
		cfg.Signaling.ID = "inkcast-" + uuid.NewString()[:8]
	}
	if err := capture.ValidateTarget(cfg.Device.Host, cfg.Device.Port); err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size must be positive, got %d", cfg.ChunkSize)
	}
	return &cfg, nil
}

// LoadViewer reads the viewer configuration the same way as LoadHost.
func LoadViewer(args []string) (*Viewer, error) {
	fs := pflag.NewFlagSet("inkcast-viewer", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Path to a yaml config file")
	fs.String("url", "ws://localhost:3000/api/screen", "Host screen WebSocket URL")
	fs.String("ip", "", "Device address forwarded to the host (host default if empty)")
	fs.String("port", "", "Device ssh port forwarded to the host (host default if empty)")
	fs.Bool("eink", true, "Apply the e-ink contrast tone")
	fs.String("signaling", "", "Signaling server WebSocket URL (enables WebRTC with --host)")
	fs.String("host", "", "Host ID to connect to over WebRTC")
	fs.String("id", "", "Viewer ID on the signaling server (auto-generated if empty)")
	fs.StringSlice("ice", nil, "ICE server URLs")
	fs.String("log-level", "info", "Log level")

	v := viper.New()
	v.SetDefault("url", "ws://localhost:3000/api/screen")
	v.SetDefault("device.host", "")
	v.SetDefault("device.port", "")
	v.SetDefault("eink_tone", true)
	v.SetDefault("host_id", "")
	v.SetDefault("signaling.url", "")
	v.SetDefault("signaling.id", "")
	v.SetDefault("signaling.ice_servers", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := load(v, fs, args, configFile, map[string]string{
		"url":                   "url",
		"device.host":           "ip",
		"device.port":           "port",
		"eink_tone":             "eink",
		"host_id":               "host",
		"signaling.url":         "signaling",
		"signaling.id":          "id",
		"signaling.ice_servers": "ice",
		"log.level":             "log-level",
	}); err != nil {
		return nil, err
	}

	var cfg Viewer
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Signaling.ID == "" {
		cfg.Signaling.ID = "viewer-" + uuid.NewString()[:8]
	}
	if cfg.Signaling.Enabled() && cfg.HostID == "" {
		return nil, errors.New("--host is required with --signaling")
	}
	return &cfg, nil
}

// load parses args, binds the flags to their keys and reads the config file.
func load(v *viper.Viper, fs *pflag.FlagSet, args []string, configFile *string, bindings map[string]string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", *configFile, err)
		}
		return nil
	}
	v.SetConfigName("inkcast")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
