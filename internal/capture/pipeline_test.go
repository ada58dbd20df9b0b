package capture

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		host, port string
		ok         bool
	}{
		{"192.168.50.73", "2222", true},
		{"kindle.local", "22", true},
		{"", "22", false},
		{"-oProxyCommand=touch /tmp/x", "22", false},
		{"host name", "22", false},
		{"host\nname", "22", false},
		{"kindle", "0", false},
		{"kindle", "65536", false},
		{"kindle", "22; rm -rf /", false},
		{"kindle", "", false},
	}
	for _, tt := range tests {
		err := ValidateTarget(tt.host, tt.port)
		if tt.ok && err != nil {
			t.Errorf("ValidateTarget(%q, %q) = %v", tt.host, tt.port, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("ValidateTarget(%q, %q) = %v, want ErrInvalidTarget", tt.host, tt.port, err)
		}
	}
}

func TestPipelineScriptDefaults(t *testing.T) {
	script, err := DefaultPipeline().Script("192.168.50.73", "2222")
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	for _, want := range []string{
		"ssh -p '2222' -o StrictHostKeyChecking=no -o BatchMode=yes 'root@192.168.50.73' ",
		"dd if=",
		"/dev/fb0",
		" bs=1872 count=2480 2>/dev/null; sleep 1; done",
		" | ffmpeg -loglevel 'warning' -f rawvideo -pixel_format 'gray' -video_size 1872x2480 -framerate 1 -i - ",
		"-vf 'crop=1860:2480:0:0' -r 1 -f image2pipe -vcodec mjpeg pipe:1",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestPipelineScriptVariants(t *testing.T) {
	p := DefaultPipeline()
	p.PixelFormat = "rgb565le"
	p.Width, p.Height = 800, 600
	p.Interval = 250 * time.Millisecond
	p.Crop = ""

	script, err := p.Script("10.0.0.2", "22")
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if !strings.Contains(script, "bs=1600 count=600") {
		t.Errorf("row bytes not scaled by pixel size:\n%s", script)
	}
	if !strings.Contains(script, "sleep 0.25;") {
		t.Errorf("fractional interval missing:\n%s", script)
	}
	if strings.Contains(script, "-vf") {
		t.Errorf("empty crop still rendered:\n%s", script)
	}

	p.PixelFormat = "yuv420p"
	if _, err := p.Script("10.0.0.2", "22"); err == nil {
		t.Error("unsupported pixel format accepted")
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Errorf("shellQuote = %s", got)
	}
}

func TestPipelineCommand(t *testing.T) {
	cmd, err := DefaultPipeline().Command("kindle", "2222")
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if len(cmd.Args) != 3 || cmd.Args[0] != "sh" || cmd.Args[1] != "-c" {
		t.Errorf("args = %q", cmd.Args)
	}
	if _, err := DefaultPipeline().Command("-x", "2222"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Command with bad host = %v", err)
	}
}
