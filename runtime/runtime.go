package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/supervisor"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrChatTimeout = errors.New("chat timed out")

// Runtime is the interface the rest of the application talks to the
// assistant through.
type Runtime interface {
	// Chat sends a message to the assistant and returns its reply.
	Chat(ctx context.Context, message string) (string, error)

	// OnCredentialChange restarts the assistant so it picks up an
	// updated credential from the shared data store.
	OnCredentialChange(ctx context.Context) error

	// Status returns the lifecycle state of the assistant worker.
	Status() supervisor.State

	Start(context.Context) error

	Shutdown(context.Context) error
}

type Config struct {
	// Supervisor is the config of the worker supervisor
	Supervisor supervisor.Config `conf:"supervisor"`

	// ChatTimeout bounds a single chat request. Zero means no timeout.
	ChatTimeout time.Duration `conf:"chat_timeout"`
}

// AssistantRuntime is a runtime backed by a supervised worker process.
type AssistantRuntime struct {
	supervisor  supervisor.Supervisor
	chatTimeout time.Duration

	log *zap.Logger
}

var _ Runtime = (*AssistantRuntime)(nil)

// RuntimeParams defines the dependencies for the runtime.
type RuntimeParams struct {
	fx.In

	// Context bounds the lifetime of the worker processes
	Context context.Context

	// Config is the config for the runtime
	Config Config

	// Log is the logger to use for the runtime
	Log *zap.Logger
}

// NewRuntime creates a new runtime.
func NewRuntime(params RuntimeParams) (Runtime, error) {
	sup, err := supervisor.New(supervisor.Params{
		Context: params.Context,
		Config:  params.Config.Supervisor,
		Log:     params.Log,
	})
	if err != nil {
		return nil, err
	}

	return newRuntime(sup, params.Config, params.Log), nil
}

func newRuntime(sup supervisor.Supervisor, config Config, log *zap.Logger) *AssistantRuntime {
	return &AssistantRuntime{
		supervisor:  sup,
		chatTimeout: config.ChatTimeout,
		log:         log.Named("runtime"),
	}
}

// NewLifecycleRuntime creates a runtime whose worker is started and
// stopped with the application. Failing to spawn the worker does not
// fail the application; chats fail until a restart succeeds.
func NewLifecycleRuntime(params RuntimeParams, lc fx.Lifecycle) (Runtime, error) {
	r, err := NewRuntime(params)
	if err != nil {
		return nil, err
	}

	lc.Append(lifecycleHook(r, params.Log))

	return r, nil
}

func lifecycleHook(r Runtime, log *zap.Logger) fx.Hook {
	return fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := r.Start(ctx); err != nil {
				log.Error("assistant unavailable", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return r.Shutdown(ctx)
		},
	}
}

func (r *AssistantRuntime) Start(ctx context.Context) error {
	return r.supervisor.Start(ctx)
}

func (r *AssistantRuntime) Chat(ctx context.Context, message string) (string, error) {
	chatCtx := ctx

	if r.chatTimeout > 0 {
		var cancel context.CancelFunc
		chatCtx, cancel = context.WithTimeout(ctx, r.chatTimeout)
		defer cancel()
	}

	reply, err := r.supervisor.Send(chatCtx, message)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrChatTimeout
		}

		r.log.Debug("chat failed", zap.Error(err))

		return "", err
	}

	return reply, nil
}

func (r *AssistantRuntime) OnCredentialChange(ctx context.Context) error {
	r.log.Info("credential changed, restarting assistant")

	return r.supervisor.Restart(ctx)
}

func (r *AssistantRuntime) Status() supervisor.State {
	return r.supervisor.State()
}

func (r *AssistantRuntime) Shutdown(ctx context.Context) error {
	return r.supervisor.Stop(ctx)
}
