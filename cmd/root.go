package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/AnushSomasundaram/Calendarllm/config"
	"github.com/AnushSomasundaram/Calendarllm/internal/shell"
	"github.com/AnushSomasundaram/Calendarllm/util/conf"
	"github.com/AnushSomasundaram/Calendarllm/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// EnvPrefix prefixes environment variables that configure the host.
const EnvPrefix = "CALENDARLLM__"

var (
	appName  = "calendarllm"
	appUsage = `Host for the calendar assistant. Supervises the assistant
worker process and exposes it to the desktop application.`
	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "set the log level. Options: debug, info, warn, error, panic, fatal.",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "set the log format. Options: production, development.",
			},
			&cli.PathFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from a .json, .yaml or .env file.",
			},
			// worker flags
			&cli.StringFlag{
				Name:     "mode",
				Aliases:  []string{"m"},
				Usage:    "how to launch the worker. Options: auto, packaged, development.",
				Category: "worker",
			},
			&cli.PathFlag{
				Name:     "data-dir",
				Usage:    "the directory holding the shared data store.",
				Category: "worker",
			},
			&cli.StringFlag{
				Name:     "worker-cmd",
				Usage:    "the command to invoke in order to start the worker process.",
				Category: "worker",
			},
			&cli.StringSliceFlag{
				Name:     "worker-arg",
				Usage:    "arguments to pass to the worker process.",
				Category: "worker",
			},
			&cli.DurationFlag{
				Name:     "chat-timeout",
				Usage:    "fail chats that take longer than this. Zero disables the timeout.",
				Category: "worker",
			},
		},
		Before: func(ctx *cli.Context) error {
			// parse config from defaults, file, env and flags
			cfg, err := conf.Parse[config.Config](conf.ParseOptions{
				Cli:       ctx,
				CliMap:    cliMap,
				Defaults:  config.Defaults(),
				EnvPrefix: EnvPrefix,
				FileName:  ctx.Path("config"),
			})
			if err != nil {
				return err
			}

			// create the logger
			log, err := createLogger(cfg)
			if err != nil {
				return err
			}

			// inject logger and config into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			_ = log.Sync()

			return nil
		},
	}
)

// cliMap maps flag names to config keys where they differ.
var cliMap = map[string]string{
	"mode":       "worker.mode",
	"worker-cmd": "worker.cmd",
	"worker-arg": "worker.args",
}

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time

	// Finalize is called after the app ran, before the exit code is returned
	Finalize func()
}

// Execute runs the root command and returns the process exit code.
func Execute(params ExecuteParams) int {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	code := run(context.Background(), os.Args)

	if params.Finalize != nil {
		params.Finalize()
	}

	return code
}

func run(ctx context.Context, args []string) int {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return 0
	}

	// if app exited with ExitError, exit with given exit code
	var exitErr *shell.ExitError
	if shell.AsExitError(err, &exitErr) {
		return exitErr.ExitCode
	}

	fmt.Fprintf(os.Stderr, "exit error: %s\n", err.Error())

	// otherwise, exit with exit code 1
	return 1
}

func createLogger(cfg config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.LogFormat == "development" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.InitialFields = map[string]any{
		"app": appName,
	}

	zapConfig.Level = parseLogLevel(cfg.LogLevel)

	return zapConfig.Build()
}

func parseLogLevel(lvl string) zap.AtomicLevel {
	if atom, err := zap.ParseAtomicLevel(lvl); err == nil && lvl != "" {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
