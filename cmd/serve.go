package cmd

import (
	"github.com/AnushSomasundaram/Calendarllm/app"
	"github.com/AnushSomasundaram/Calendarllm/app/standalone"
	"github.com/AnushSomasundaram/Calendarllm/config"
	"github.com/AnushSomasundaram/Calendarllm/util/conf"
	"github.com/urfave/cli/v2"
)

var (
	serveCmdDescription = `The serve command launches the assistant worker and starts
	a local http server for the desktop application.

	The command blocks until it is signalled, then stops the
	server and the worker.`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start the assistant and serve the local API.",
		Description: serveCmdDescription,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Category: "http",
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Category: "http",
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Category: "http",
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
	shell, err := app.New(ctx)
	if err != nil {
		return err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	httpConfig := cfg.Http
	if ctx.IsSet("host") {
		httpConfig.Host = ctx.String("host")
	}
	if ctx.IsSet("port") {
		httpConfig.Port = ctx.Int("port")
	}
	if ctx.IsSet("h2c") {
		httpConfig.H2c = ctx.Bool("h2c")
	}

	return shell.Run(ctx.Context, standalone.Module(standalone.Config{
		HttpConfig: httpConfig,
	}))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}
