package supervisor

import (
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/worker"
)

// DefaultDataStoreEnvVar is the variable the worker reads the
// location of the shared data store from.
const DefaultDataStoreEnvVar = "CALENDAR_DB_PATH"

type DataStoreConfig struct {
	// Path is the absolute path of the shared data store file
	Path string `conf:"path"`

	// EnvVar is the environment variable used to pass Path
	// to the worker. Defaults to CALENDAR_DB_PATH.
	EnvVar string `conf:"env_var"`
}

type Config struct {
	// Start describes how the worker process is launched.
	Start worker.StartConfig `conf:"start"`

	// Stop describes how the worker process is stopped.
	Stop worker.StopConfig `conf:"stop"`

	// DataStore is the shared data store handed to every worker.
	DataStore DataStoreConfig `conf:"data_store"`
}

// startConfig returns the launch config of a new incarnation, with the
// data store location injected into its environment.
func (c Config) startConfig() worker.StartConfig {
	start := c.Start

	env := make(map[string]string, len(c.Start.Env)+1)
	for k, v := range c.Start.Env {
		env[k] = v
	}

	env[c.DataStore.EnvVar] = c.DataStore.Path
	start.Env = env

	return start
}
