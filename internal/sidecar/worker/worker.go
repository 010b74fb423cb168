package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Worker interface {
	Start(context.Context) error
	Stdin() io.WriteCloser
	Terminate() error
	Kill() error
	Wait(context.Context) (ExitEvent, error)
	WaitFor(context.Context, time.Duration) (ExitEvent, error)
	Done() <-chan struct{}
	Pid() int
}

type ProcessWorker struct {
	// ctx bounds the lifetime of the process
	ctx context.Context

	config  StartConfig
	streams Streams

	processLock sync.Mutex
	process     *proc

	exited    chan struct{}
	exitEvent ExitEvent

	log *zap.Logger
}

var _ Worker = (*ProcessWorker)(nil)

// NewProcessWorker creates a worker for the given command. The process
// is killed when ctx is cancelled. Output of the process is written to
// the given streams.
func NewProcessWorker(
	ctx context.Context,
	config StartConfig,
	streams Streams,
	log *zap.Logger,
) *ProcessWorker {
	return &ProcessWorker{
		ctx:     ctx,
		config:  config,
		streams: streams,
		exited:  make(chan struct{}),
		log:     log.Named("worker"),
	}
}

// Start starts the worker process.
func (w *ProcessWorker) Start(ctx context.Context) error {
	w.log.With(
		zap.String("command", w.config.Cmd),
		zap.Strings("args", w.config.Args),
		zap.String("cwd", w.config.Cwd),
		zap.Any("env", w.config.Env),
	).Debug("starting worker process")

	// synchronize access to the process
	w.processLock.Lock()
	defer w.processLock.Unlock()

	// return if the worker is already started
	if w.process != nil {
		return ErrWorkerAlreadyStarted
	}

	// exit early if the context is already cancelled
	if ctx.Err() != nil {
		return fmt.Errorf("failed to start process: %w", ctx.Err())
	}

	process, err := startProc(w.ctx, w.config, w.streams, w.log)
	if err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	w.process = process

	go func() {
		// block until the process exits
		_ = process.Wait()

		w.exitEvent = getExitEvent(process.ProcessState())

		w.log.With(
			zap.Int("pid", process.Pid()),
			zap.Stringer("exit", w.exitEvent),
		).Debug("worker process exited")

		close(w.exited)
	}()

	return nil
}

// Stdin returns the pipe connected to the standard input of the worker
// process, or nil if the worker has not been started.
func (w *ProcessWorker) Stdin() io.WriteCloser {
	if process := w.acquireProcess(); process != nil {
		return process.Stdin()
	}

	return nil
}

// Wait waits for the worker process to exit. The method blocks until the process
// exits. The method returns an ExitEvent object that contains the exit status of
// the process. If the process is already terminated, the method returns immediately.
// Every call observes the same ExitEvent.
func (w *ProcessWorker) Wait(ctx context.Context) (ExitEvent, error) {
	if w.acquireProcess() == nil {
		return ExitEvent{}, ErrWorkerNotStarted
	}

	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-w.exited:
		return w.exitEvent, nil
	}
}

// WaitFor waits for the worker process to exit. It blocks until the process exits
// or the timeout is reached. The method returns an ExitEvent that contains the exit
// status. If the process is already terminated, the method returns immediately.
func (w *ProcessWorker) WaitFor(
	ctx context.Context,
	timeout time.Duration,
) (ExitEvent, error) {
	var waitCtx context.Context
	var cancel context.CancelFunc

	if timeout <= 0 {
		waitCtx, cancel = context.WithCancel(ctx)
	} else {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	defer cancel()

	evt, err := w.Wait(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return evt, ErrKillTimeout
	}

	return evt, err
}

// Done returns a channel that is closed once the worker process exited.
func (w *ProcessWorker) Done() <-chan struct{} {
	return w.exited
}

// Kill sends a SIGKILL signal to the worker process to force it to stop.
// The method returns immediately, without waiting for the process to stop.
func (w *ProcessWorker) Kill() error {
	if process := w.acquireProcess(); process != nil {
		return process.Kill()
	}

	return ErrWorkerNotStarted
}

// Terminate closes stdin and sends a SIGTERM signal to the worker process to
// request it to stop. The method returns immediately, without waiting for the
// process to stop.
func (w *ProcessWorker) Terminate() error {
	if process := w.acquireProcess(); process != nil {
		return process.Terminate()
	}

	return ErrWorkerNotStarted
}

func (w *ProcessWorker) Pid() int {
	if process := w.acquireProcess(); process != nil {
		return process.Pid()
	}

	return 0
}

// acquireProcess returns the worker process. The method is thread-safe.
func (w *ProcessWorker) acquireProcess() *proc {
	w.processLock.Lock()
	defer w.processLock.Unlock()

	return w.process
}
