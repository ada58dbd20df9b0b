package capture

import (
	"errors"
	"fmt"
)

// ErrInvalidTarget is returned for a host or port that cannot be passed to ssh.
var ErrInvalidTarget = errors.New("invalid capture target")

// errStopping rejects frames from a run that is being torn down.
var errStopping = errors.New("capture run stopping")

// SpawnError means the pipeline could not be launched. Nothing is tracked.
type SpawnError struct {
	Host string
	Port string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start capture pipeline for %s:%s: %v", e.Host, e.Port, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TeardownError means Stop could not confirm the pipeline exited.
// The session is idle regardless.
type TeardownError struct {
	PID int
	Err error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("stop capture pipeline (pid %d): %v", e.PID, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }
