package app

import (
	"fmt"

	"github.com/AnushSomasundaram/Calendarllm/config"
	"github.com/AnushSomasundaram/Calendarllm/internal/shell"
	"github.com/AnushSomasundaram/Calendarllm/runtime"
	"github.com/AnushSomasundaram/Calendarllm/settings"
	"github.com/AnushSomasundaram/Calendarllm/util/conf"
	"github.com/AnushSomasundaram/Calendarllm/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Resolve reads the config from the cli context and resolves it against
// the current environment.
func Resolve(ctx *cli.Context) (config.Config, config.Resolved, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return config.Config{}, config.Resolved{}, err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return config.Config{}, config.Resolved{}, err
	}

	env, err := config.DetectEnvironment()
	if err != nil {
		return config.Config{}, config.Resolved{}, err
	}

	resolved, err := cfg.Resolve(env)
	if err != nil {
		return config.Config{}, config.Resolved{}, fmt.Errorf("invalid worker config: %w", err)
	}

	log.Info("resolved worker",
		zap.String("mode", string(resolved.Mode)),
		zap.String("command", resolved.Runtime.Supervisor.Start.Cmd),
		zap.Strings("args", resolved.Runtime.Supervisor.Start.Args),
		zap.String("data_store", resolved.Settings.Path),
	)

	return cfg, resolved, nil
}

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	cfg, resolved, err := Resolve(ctx)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(cfg),
		// provide shared data store
		settings.Module(resolved.Settings),
		// provide runtime
		runtime.Module(resolved.Runtime),
	)

	return shell.New(log, sharedModule), nil
}
