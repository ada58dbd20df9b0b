package capture

import (
	"bytes"

	"github.com/rs/zerolog/log"
)

const maxStderrLine = 4096

// stderrLogger forwards pipeline stderr to the logger, one event per line.
// exec.Cmd copies stderr from a single goroutine, so no locking is needed.
type stderrLogger struct {
	runID uint64
	buf   []byte
}

func (w *stderrLogger) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxStderrLine {
		w.emit(w.buf)
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

func (w *stderrLogger) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	log.Warn().Str("module", "capture").Uint64("run", w.runID).Msg(string(line))
}
