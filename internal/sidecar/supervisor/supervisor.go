package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/correlator"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/protocol"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/transport"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/worker"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Supervisor interface {
	// Start launches the worker. Start is a no-op if the worker is
	// already running.
	Start(ctx context.Context) error

	// Stop terminates the worker and fails all pending requests. Stop
	// returns once the worker exited. It is a no-op if no worker runs.
	Stop(ctx context.Context) error

	// Restart stops the running worker, if any, and starts a new one.
	Restart(ctx context.Context) error

	// Send sends a message to the worker and waits for its reply.
	Send(ctx context.Context, message string) (string, error)

	// State returns the current lifecycle state.
	State() State
}

type WorkerFactoryFn func(
	context.Context,
	worker.StartConfig,
	worker.Streams,
	*zap.Logger,
) (worker.Worker, error)

type Params struct {
	// Config is the config used to launch and stop workers.
	Config Config

	// WorkerFactory is a factory function to create a new worker. This
	// is called whenever the supervisor spawns a new incarnation.
	WorkerFactory WorkerFactoryFn

	// Context bounds the lifetime of all workers. Defaults to
	// context.Background().
	Context context.Context

	// Log is the logger to use for the supervisor
	Log *zap.Logger
}

// incarnation is a single spawn of the worker process.
type incarnation struct {
	id     string
	worker worker.Worker
	writer *transport.Writer

	stdout *transport.LineSplitter
	stderr *transport.LineSplitter

	// stopping is set once the exit was requested
	stopping atomic.Bool

	// exited is closed once the exit watcher is done
	exited chan struct{}

	log *zap.Logger
}

type WorkerSupervisor struct {
	ctx    context.Context
	config Config

	createWorker func(context.Context, worker.StartConfig, worker.Streams) (worker.Worker, error)

	// lifecycle serializes Start, Stop and Restart
	lifecycle sync.Mutex

	mu      sync.RWMutex
	current *incarnation
	state   State

	correlator *correlator.Correlator
	classifier *protocol.Classifier

	log *zap.Logger
}

var _ Supervisor = (*WorkerSupervisor)(nil)

func New(params Params) (*WorkerSupervisor, error) {
	config := params.Config

	if config.DataStore.Path == "" {
		return nil, ErrMissingDataStore
	}

	if config.DataStore.EnvVar == "" {
		config.DataStore.EnvVar = DefaultDataStoreEnvVar
	}

	if params.WorkerFactory == nil {
		params.WorkerFactory = defaultWorkerFactory
	}

	if params.Context == nil {
		params.Context = context.Background()
	}

	classifier, err := protocol.NewClassifier()
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	log := params.Log.Named("supervisor")

	return &WorkerSupervisor{
		ctx:    params.Context,
		config: config,
		createWorker: func(
			ctx context.Context,
			config worker.StartConfig,
			streams worker.Streams,
		) (worker.Worker, error) {
			return params.WorkerFactory(ctx, config, streams, params.Log)
		},
		state:      StateStopped,
		correlator: correlator.New(log),
		classifier: classifier,
		log:        log,
	}, nil
}

func (s *WorkerSupervisor) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	return s.start(ctx)
}

func (s *WorkerSupervisor) Stop(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	return s.stop(ctx)
}

func (s *WorkerSupervisor) Restart(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.log.Info("restarting worker")

	if err := s.stop(ctx); err != nil {
		return fmt.Errorf("failed to stop worker: %w", err)
	}

	return s.start(ctx)
}

func (s *WorkerSupervisor) Send(ctx context.Context, message string) (string, error) {
	inc, state := s.snapshot()
	if inc == nil || state != StateRunning {
		return "", ErrNotRunning
	}

	h, err := s.correlator.Submit(message, func(req protocol.Request) error {
		return s.write(inc, req)
	})
	if err != nil {
		return "", err
	}

	inc.log.Debug("request sent", zap.Int64("id", h.ID()))

	return h.Wait(ctx)
}

func (s *WorkerSupervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// MARK: - lifecycle

func (s *WorkerSupervisor) start(ctx context.Context) error {
	if inc, state := s.snapshot(); inc != nil {
		select {
		case <-inc.worker.Done():
			// the worker exited, wait for the watcher to clean up
			select {
			case <-inc.exited:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			if state != StateStopping {
				return nil
			}

			// an earlier stop gave up before the worker exited
			if err := s.stop(ctx); err != nil {
				return err
			}
		}
	}

	s.setState(StateStarting)

	inc, err := s.spawn(ctx)
	if err != nil {
		s.setState(StateStopped)
		s.log.Error("failed to spawn worker", zap.Error(err))
		return &SpawnError{Err: err}
	}

	s.mu.Lock()
	s.current = inc
	s.state = StateRunning
	s.mu.Unlock()

	go s.watch(inc)

	return nil
}

func (s *WorkerSupervisor) stop(ctx context.Context) error {
	inc, _ := s.snapshot()
	if inc == nil {
		s.log.Debug("no worker to stop")
		return nil
	}

	s.setState(StateStopping)
	inc.stopping.Store(true)

	inc.log.Info("stopping worker")

	if err := inc.worker.Terminate(); err != nil {
		inc.log.Debug("failed to terminate worker", zap.Error(err))
	}

	if _, err := inc.worker.WaitFor(ctx, s.config.Stop.Timeout); err != nil {
		inc.log.Warn("worker did not stop, killing", zap.Error(err))

		if err := inc.worker.Kill(); err != nil {
			inc.log.Debug("failed to kill worker", zap.Error(err))
		}
	}

	select {
	case <-inc.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *WorkerSupervisor) spawn(ctx context.Context) (*incarnation, error) {
	id := uuid.NewString()

	inc := &incarnation{
		id:     id,
		exited: make(chan struct{}),
		log:    s.log.With(zap.String("session", id)),
	}

	inc.stdout = transport.NewLineSplitter(func(line string) {
		s.handleLine(inc, line)
	})

	inc.stderr = transport.NewLineSplitter(func(line string) {
		inc.log.Warn("worker output",
			zap.String("stream", "stderr"),
			zap.String("line", line),
		)
	})

	config := s.config.startConfig()

	inc.log.Debug("spawning worker",
		zap.String("command", config.Cmd),
		zap.Strings("args", config.Args),
	)

	w, err := s.createWorker(s.ctx, config, worker.Streams{
		Stdout: inc.stdout,
		Stderr: inc.stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}

	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	stdin := w.Stdin()
	if stdin == nil {
		_ = w.Kill()
		return nil, ErrMissingStdin
	}

	inc.worker = w
	inc.writer = transport.NewWriter(stdin)

	inc.log.Info("worker started", zap.Int("pid", w.Pid()))

	return inc, nil
}

// watch waits for the incarnation to exit and fails its pending
// requests. Output of the worker is drained once Wait returns.
func (s *WorkerSupervisor) watch(inc *incarnation) {
	evt, _ := inc.worker.Wait(context.Background())

	for stream, splitter := range map[string]*transport.LineSplitter{
		"stdout": inc.stdout,
		"stderr": inc.stderr,
	} {
		if rest := splitter.Close(); rest != "" {
			inc.log.Warn("discarding unterminated worker output",
				zap.String("stream", stream),
				zap.String("line", rest),
			)
		}
	}

	_ = inc.writer.Close()

	var reason error
	if inc.stopping.Load() {
		reason = ErrWorkerTerminated
		inc.log.Info("worker stopped", zap.Stringer("exit", evt))
	} else {
		reason = &ExitError{Event: evt}
		inc.log.Error("worker exited unexpectedly", zap.Stringer("exit", evt))
		reportExit(inc.id, reason)
	}

	if n := s.correlator.FailAll(reason); n > 0 {
		inc.log.Warn("failed pending requests", zap.Int("count", n))
	}

	s.mu.Lock()
	if s.current == inc {
		s.current = nil
		s.state = StateStopped
	}
	s.mu.Unlock()

	close(inc.exited)
}

// MARK: - io

func (s *WorkerSupervisor) write(inc *incarnation, req protocol.Request) error {
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	if err := inc.writer.WriteLine(data); err != nil {
		if isClosed(err) {
			return ErrNotRunning
		}

		return fmt.Errorf("failed to write request: %w", err)
	}

	return nil
}

func (s *WorkerSupervisor) handleLine(inc *incarnation, line string) {
	msg := s.classifier.Classify(line)

	switch msg.Kind {
	case protocol.KindReply:
		if msg.Err != nil {
			inc.log.Info("malformed worker reply",
				zap.Int64("id", msg.Reply.ID),
				zap.String("line", line),
				zap.Error(msg.Err),
			)
		}
		s.correlator.Resolve(msg.Reply)
	case protocol.KindLog:
		forwardLog(inc.log, msg.Log)
	case protocol.KindMalformed:
		inc.log.Info("unclassifiable worker output",
			zap.String("reason", msg.Kind.String()),
			zap.String("line", line),
			zap.Error(msg.Err),
		)
	default:
		inc.log.Info("unclassifiable worker output",
			zap.String("reason", msg.Kind.String()),
			zap.String("line", line),
		)
	}
}

// MARK: - helpers

func (s *WorkerSupervisor) snapshot() (*incarnation, State) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current, s.state
}

func (s *WorkerSupervisor) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

func isClosed(err error) bool {
	return errors.Is(err, transport.ErrClosed) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE)
}

func reportExit(session string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("session", session)
		sentry.CaptureException(err)
	})
}

func defaultWorkerFactory(
	ctx context.Context,
	config worker.StartConfig,
	streams worker.Streams,
	log *zap.Logger,
) (worker.Worker, error) {
	return worker.NewProcessWorker(ctx, config, streams, log), nil
}
