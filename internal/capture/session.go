package capture

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/junsooki/InkCast/internal/mjpeg"
)

// DefaultStopTimeout bounds how long Stop waits for the pipeline to exit.
const DefaultStopTimeout = 5 * time.Second

// State is the session lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// ExitReason says why a run ended.
type ExitReason string

const (
	ReasonStopped     ExitReason = "stopped"
	ReasonEndOfStream ExitReason = "end-of-stream"
	ReasonReadError   ExitReason = "read-error"
)

// Exit records how a run ended.
type Exit struct {
	Run    uint64      `json:"run"`
	Reason ExitReason  `json:"reason"`
	Error  string      `json:"error,omitempty"`
	At     time.Time   `json:"at"`
	Stats  mjpeg.Stats `json:"stats"`
}

// Status is a point-in-time view of the session.
type Status struct {
	State    State        `json:"state"`
	Run      uint64       `json:"run,omitempty"`
	Host     string       `json:"host,omitempty"`
	Port     string       `json:"port,omitempty"`
	PID      int          `json:"pid,omitempty"`
	Since    *time.Time   `json:"since,omitempty"`
	Stats    *mjpeg.Stats `json:"stats,omitempty"`
	LastExit *Exit        `json:"lastExit,omitempty"`
}

// CommandFunc builds the pipeline command for host:port.
type CommandFunc func(host, port string) (*exec.Cmd, error)

// Session owns at most one running capture pipeline and the goroutine that
// extracts frames from it.
type Session struct {
	command     CommandFunc
	sink        mjpeg.Sink
	chunkSize   int
	stopTimeout time.Duration
	onExit      func(Exit)

	// ops serialises Start and Stop end to end; mu guards the fields below
	// and is never held across I/O.
	ops     sync.Mutex
	mu      sync.Mutex
	run     *run
	last    *Exit
	nextRun uint64
}

type run struct {
	id        uint64
	host      string
	port      string
	cmd       *exec.Cmd
	extractor *mjpeg.Extractor
	started   time.Time
	stopping  atomic.Bool
	done      chan struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPipeline builds commands from p.
func WithPipeline(p Pipeline) SessionOption {
	return func(s *Session) { s.command = p.Command }
}

// WithCommand replaces the command builder.
func WithCommand(fn CommandFunc) SessionOption {
	return func(s *Session) { s.command = fn }
}

// WithStopTimeout overrides DefaultStopTimeout.
func WithStopTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithChunkSize sets the extractor read size.
func WithChunkSize(n int) SessionOption {
	return func(s *Session) { s.chunkSize = n }
}

// WithExitHook runs fn once per run after its pipeline has been reaped, for
// every exit reason. Stop returns only after fn has returned, unless the
// stop timeout expires first.
func WithExitHook(fn func(Exit)) SessionOption {
	return func(s *Session) { s.onExit = fn }
}

// NewSession creates an idle session that delivers frames to sink.
func NewSession(sink mjpeg.Sink, opts ...SessionOption) *Session {
	s := &Session{
		command:     DefaultPipeline().Command,
		sink:        sink,
		chunkSize:   mjpeg.DefaultChunkSize,
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the pipeline for host:port and returns without waiting for
// a frame. It is a no-op while a pipeline is running.
func (s *Session) Start(host, port string) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	if s.Running() {
		return nil
	}

	cmd, err := s.command(host, port)
	if err != nil {
		return &SpawnError{Host: host, Port: port, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Host: host, Port: port, Err: err}
	}

	s.mu.Lock()
	s.nextRun++
	id := s.nextRun
	s.mu.Unlock()

	if cmd.Stderr == nil {
		cmd.Stderr = &stderrLogger{runID: id}
	}
	// Own process group, so Stop reaches ssh and ffmpeg, not just the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return &SpawnError{Host: host, Port: port, Err: err}
	}

	r := &run{
		id:        id,
		host:      host,
		port:      port,
		cmd:       cmd,
		extractor: mjpeg.NewExtractor(mjpeg.WithChunkSize(s.chunkSize)),
		started:   time.Now(),
		done:      make(chan struct{}),
	}
	s.mu.Lock()
	s.run = r
	s.mu.Unlock()

	go s.supervise(r, stdout)

	log.Info().Str("module", "capture").Uint64("run", id).Str("host", host).Str("port", port).
		Int("pid", cmd.Process.Pid).Msg("capture pipeline started")
	return nil
}

// Stop kills the running pipeline and waits for its extractor to finish.
// It is a no-op when idle. The session is idle when Stop returns, even if it
// returns a *TeardownError.
func (s *Session) Stop() error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	r := s.run
	s.run = nil
	s.mu.Unlock()
	if r == nil {
		return nil
	}

	r.stopping.Store(true)
	var errs []error
	if err := killGroup(r.cmd); err != nil {
		errs = append(errs, fmt.Errorf("kill: %w", err))
	}

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()
	select {
	case <-r.done:
	case <-timer.C:
		errs = append(errs, fmt.Errorf("pipeline still running after %s", s.stopTimeout))
	}

	if len(errs) > 0 {
		err := &TeardownError{PID: r.cmd.Process.Pid, Err: errors.Join(errs...)}
		log.Warn().Str("module", "capture").Uint64("run", r.id).Err(err).Msg("capture teardown incomplete")
		return err
	}
	return nil
}

// Running reports whether a pipeline is tracked.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// Status returns the current state, live counters and the last exit.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: StateIdle}
	if s.last != nil {
		last := *s.last
		st.LastExit = &last
	}
	if r := s.run; r != nil {
		stats := r.extractor.Stats()
		since := r.started
		st.State = StateRunning
		st.Run = r.id
		st.Host = r.host
		st.Port = r.port
		st.PID = r.cmd.Process.Pid
		st.Since = &since
		st.Stats = &stats
	}
	return st
}

// supervise runs the extractor until the pipeline output ends, reaps the
// process and records why the run ended.
func (s *Session) supervise(r *run, stdout io.Reader) {
	defer close(r.done)

	sink := mjpeg.SinkFunc(func(frame []byte) error {
		if r.stopping.Load() {
			return errStopping
		}
		return s.sink.SendFrame(frame)
	})
	readErr := r.extractor.Run(stdout, sink)
	if readErr != nil && !r.stopping.Load() {
		// Nothing drains stdout any more; make sure Wait can return.
		_ = killGroup(r.cmd)
	}
	waitErr := r.cmd.Wait()

	exit := Exit{Run: r.id, At: time.Now(), Stats: r.extractor.Stats()}
	switch {
	case r.stopping.Load():
		exit.Reason = ReasonStopped
	case readErr != nil:
		exit.Reason = ReasonReadError
		exit.Error = readErr.Error()
	default:
		exit.Reason = ReasonEndOfStream
		if waitErr != nil {
			exit.Error = waitErr.Error()
		}
	}

	if s.onExit != nil {
		s.onExit(exit)
	}

	s.mu.Lock()
	if s.run == r {
		s.run = nil
	}
	s.last = &exit
	s.mu.Unlock()

	ev := log.Info()
	if exit.Reason != ReasonStopped {
		ev = log.Warn()
	}
	ev.Str("module", "capture").Uint64("run", r.id).Str("reason", string(exit.Reason)).
		Str("error", exit.Error).Uint64("frames", exit.Stats.Frames).Msg("capture pipeline exited")
}

// killGroup sends SIGKILL to the pipeline's process group. A group that is
// already gone is not an error.
func killGroup(cmd *exec.Cmd) error {
	err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
