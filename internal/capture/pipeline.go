package capture

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Pipeline describes the external capture pipeline: an ssh session that dumps
// the remote framebuffer on a fixed cadence, piped into ffmpeg, which crops the
// raw frames and re-encodes them as an MJPEG stream on stdout.
type Pipeline struct {
	Shell       string        `mapstructure:"shell"`
	User        string        `mapstructure:"user"`
	Framebuffer string        `mapstructure:"framebuffer"`
	Width       int           `mapstructure:"width"`
	Height      int           `mapstructure:"height"`
	PixelFormat string        `mapstructure:"pixel_format"`
	Interval    time.Duration `mapstructure:"interval"`
	InputFPS    int           `mapstructure:"input_fps"`
	Crop        string        `mapstructure:"crop"`
	OutputFPS   int           `mapstructure:"output_fps"`
	LogLevel    string        `mapstructure:"ffmpeg_log_level"`
}

// DefaultPipeline matches a 1872x2480 grayscale e-ink panel read once a second.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Shell:       "sh",
		User:        "root",
		Framebuffer: "/dev/fb0",
		Width:       1872,
		Height:      2480,
		PixelFormat: "gray",
		Interval:    time.Second,
		InputFPS:    1,
		Crop:        "1860:2480:0:0",
		OutputFPS:   1,
		LogLevel:    "warning",
	}
}

// bytesPerPixel for the raw formats ffmpeg can read straight from a panel.
var bytesPerPixel = map[string]int{
	"gray":     1,
	"gray16le": 2,
	"rgb565le": 2,
	"rgb24":    3,
	"bgr24":    3,
	"rgba":     4,
	"bgra":     4,
}

// ValidateTarget checks host and port before they reach the shell.
func ValidateTarget(host, port string) error {
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidTarget)
	}
	if strings.HasPrefix(host, "-") || strings.ContainsFunc(host, isSpaceOrControl) {
		return fmt.Errorf("%w: host %q", ErrInvalidTarget, host)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: port %q", ErrInvalidTarget, port)
	}
	return nil
}

func isSpaceOrControl(r rune) bool {
	return r <= ' ' || r == 0x7F
}

// Script renders the shell pipeline for host:port.
func (p Pipeline) Script(host, port string) (string, error) {
	if err := ValidateTarget(host, port); err != nil {
		return "", err
	}
	bpp, ok := bytesPerPixel[p.PixelFormat]
	if !ok {
		return "", fmt.Errorf("unsupported pixel format %q", p.PixelFormat)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return "", fmt.Errorf("invalid frame size %dx%d", p.Width, p.Height)
	}

	remote := fmt.Sprintf(
		"while true; do dd if=%s bs=%d count=%d 2>/dev/null; sleep %s; done",
		shellQuote(p.Framebuffer), p.Width*bpp, p.Height, formatSeconds(p.Interval),
	)
	ssh := []string{
		"ssh",
		"-p", shellQuote(port),
		"-o", "StrictHostKeyChecking=no",
		"-o", "BatchMode=yes",
		shellQuote(p.User + "@" + host),
		shellQuote(remote),
	}
	ffmpeg := []string{
		"ffmpeg",
		"-loglevel", shellQuote(p.LogLevel),
		"-f", "rawvideo",
		"-pixel_format", shellQuote(p.PixelFormat),
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", strconv.Itoa(p.InputFPS),
		"-i", "-",
	}
	if p.Crop != "" {
		ffmpeg = append(ffmpeg, "-vf", shellQuote("crop="+p.Crop))
	}
	ffmpeg = append(ffmpeg,
		"-r", strconv.Itoa(p.OutputFPS),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	)
	return strings.Join(ssh, " ") + " | " + strings.Join(ffmpeg, " "), nil
}

// Command builds the pipeline as a single shell process.
func (p Pipeline) Command(host, port string) (*exec.Cmd, error) {
	script, err := p.Script(host, port)
	if err != nil {
		return nil, err
	}
	shell := p.Shell
	if shell == "" {
		shell = "sh"
	}
	return exec.Command(shell, "-c", script), nil
}

// shellQuote wraps s in single quotes for safe use in a shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func formatSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
