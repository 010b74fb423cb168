package supervisor

import (
	"errors"
	"fmt"

	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/worker"
)

var (
	ErrNotRunning       = errors.New("worker not running")
	ErrWorkerTerminated = errors.New("worker terminated")
	ErrUnexpectedExit   = errors.New("worker exited unexpectedly")
	ErrMissingDataStore = errors.New("data store path not configured")
	ErrMissingStdin     = errors.New("worker has no stdin")
)

type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// SpawnError is returned when the worker process could not be launched.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn worker: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError fails the requests that were pending when the worker
// exited without being asked to.
type ExitError struct {
	Event worker.ExitEvent
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrUnexpectedExit, e.Event)
}

func (e *ExitError) Is(target error) bool {
	return target == ErrUnexpectedExit
}
