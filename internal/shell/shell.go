package shell

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Shell runs an fx application until it is signalled to stop.
type Shell struct {
	log     *zap.Logger
	options []fx.Option
}

func New(log *zap.Logger, options ...fx.Option) *Shell {
	return &Shell{
		log:     log,
		options: options,
	}
}

// Run starts the application built from the shell options and the given
// options, blocks until a shutdown signal arrives and stops it again. A
// non-zero exit is returned as *ExitError.
func (s *Shell) Run(ctx context.Context, options ...fx.Option) error {
	defer s.log.Sync()

	// the app context outlives start and stop, and ends with Run
	appCtx, cancelApp := context.WithCancel(ctx)
	defer cancelApp()

	fxApp := s.createFxApp(appCtx, options...)
	if err := fxApp.Err(); err != nil {
		s.log.Error("invalid application graph", zap.Error(err))
		return NewExitError(1)
	}

	startCtx, cancelStart := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancelStart()

	if err := fxApp.Start(startCtx); err != nil {
		s.log.Error("failed to start application", zap.Error(err))
		return NewExitError(1)
	}

	// wait for a shutdown signal, or for the parent context to end
	var exitCode int
	select {
	case sig := <-fxApp.Wait():
		exitCode = sig.ExitCode
	case <-ctx.Done():
	}

	// stop with a fresh context, the parent may already be done
	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), fxApp.StopTimeout())
	defer cancelStop()

	if err := fxApp.Stop(stopCtx); err != nil {
		s.log.Error("failed to stop application", zap.Error(err))
		return NewExitError(1)
	}

	if exitCode != 0 {
		return NewExitError(exitCode)
	}

	return nil
}

func (s *Shell) createFxApp(ctx context.Context, options ...fx.Option) *fx.App {
	return fx.New(
		// inject global execution context
		fx.Supply(fx.Annotate(ctx, fx.As(new(context.Context)))),

		// inject the logger
		fx.Supply(s.log),

		// use the logger also for fx' logs
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: s.log.Named("fx")}
		}),

		fx.Options(s.options...),
		fx.Options(options...),
	)
}
