package main

import (
	"log"
	"os"
	"time"

	"github.com/AnushSomasundaram/Calendarllm/cmd"
	"github.com/AnushSomasundaram/Calendarllm/util"
	"github.com/getsentry/sentry-go"
)

var Version string
var Buildtime string
var Commit string

func main() {
	err := setupSentry()
	if err != nil {
		log.Fatalf("sentry init failed: %s", err)
	}

	appVersion := "local"
	if Version != "" {
		appVersion = Version
	}

	appBuildtime, _ := time.Parse(time.RFC3339, Buildtime)

	os.Exit(cmd.Execute(cmd.ExecuteParams{
		Version:  appVersion,
		Compiled: appBuildtime,
		Finalize: flushSentry,
	}))
}

func setupSentry() error {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return nil
	}

	environment := os.Getenv("SENTRY_ENVIRONMENT")
	if environment == "" {
		environment = "local"
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Debug:       util.Truthy(os.Getenv("SENTRY_DEBUG")),
		Environment: environment,
		Release:     Commit,
	})
}

// flushSentry delivers buffered events before the process exits.
func flushSentry() {
	sentry.Flush(2 * time.Second)
}
