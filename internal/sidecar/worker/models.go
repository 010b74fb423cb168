package worker

import (
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrKillTimeout          = errors.New("kill timeout")
	ErrWorkerNotStarted     = errors.New("worker not started")
	ErrWorkerAlreadyStarted = errors.New("worker already started")
)

type StartConfig struct {
	// Cmd is the path or name of the binary to execute
	Cmd string `conf:"cmd"`

	// Cwd is the working directory in which
	// the binary should be executed
	Cwd string `conf:"cwd"`

	// Args is the list of arguments to pass to the command
	Args []string `conf:"args"`

	// Env is a map of environment variables that override the
	// environment inherited from the current process
	Env map[string]string `conf:"env"`
}

type StopConfig struct {
	// Timeout is the duration to wait for the worker to exit after
	// it was asked to terminate, before it is killed
	Timeout time.Duration `conf:"timeout"`
}

// Streams receive the output of the worker process. Each stream is
// copied by a dedicated goroutine, so writes to a single stream are
// never concurrent and arrive in the order they were produced.
type Streams struct {
	// Stdout receives the standard output of the process
	Stdout io.Writer

	// Stderr receives the standard error of the process
	Stderr io.Writer
}

type ExitEvent struct {
	// Code is the exit code of the process
	Code *int

	// Signal is the signal that caused the process to exit
	Signal *int
}

// String renders the exit event as `code=N` or `signal=N`.
func (e ExitEvent) String() string {
	switch {
	case e.Code != nil:
		return fmt.Sprintf("code=%d", *e.Code)
	case e.Signal != nil:
		return fmt.Sprintf("signal=%d", *e.Signal)
	default:
		return "code=unknown"
	}
}

// Success reports whether the process exited with a zero exit code.
func (e ExitEvent) Success() bool {
	return e.Code != nil && *e.Code == 0
}
