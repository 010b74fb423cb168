package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AnushSomasundaram/Calendarllm/app"
	"github.com/AnushSomasundaram/Calendarllm/runtime"
	"github.com/AnushSomasundaram/Calendarllm/settings"
	"github.com/AnushSomasundaram/Calendarllm/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	chatCmdDescription = `The chat command launches the assistant worker, sends it a
	single message and prints the reply. The worker is stopped
	afterwards.`
	chatCmd = &cli.Command{
		Name:        "chat",
		Usage:       "Send a single message to the assistant.",
		ArgsUsage:   "<message...>",
		Description: chatCmdDescription,
		Action:      chatAction,
	}
)

func chatAction(ctx *cli.Context) error {
	message := strings.Join(ctx.Args().Slice(), " ")
	if strings.TrimSpace(message) == "" {
		return errors.New("no message provided")
	}

	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	_, resolved, err := app.Resolve(ctx)
	if err != nil {
		return err
	}

	// the worker expects an initialized data store
	store, err := settings.Open(resolved.Settings.Path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := runtime.NewRuntime(runtime.RuntimeParams{
		Context: ctx.Context,
		Config:  resolved.Runtime,
		Log:     log,
	})
	if err != nil {
		return err
	}

	if err := r.Start(ctx.Context); err != nil {
		return err
	}

	defer func() {
		if err := r.Shutdown(ctx.Context); err != nil {
			log.Warn("failed to stop assistant", zap.Error(err))
		}
	}()

	reply, err := r.Chat(ctx.Context, message)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	_, err = fmt.Fprintln(ctx.App.Writer, reply)

	return err
}

func init() {
	rootApp.Commands = append(rootApp.Commands, chatCmd)
}
