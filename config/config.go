package config

import (
	"time"

	"github.com/AnushSomasundaram/Calendarllm/internal/server"
	"github.com/AnushSomasundaram/Calendarllm/util/conf"
)

type WorkerMode string

const (
	// ModeAuto uses the packaged worker if it exists, else development
	ModeAuto WorkerMode = "auto"

	// ModePackaged runs the bundled worker executable
	ModePackaged WorkerMode = "packaged"

	// ModeDevelopment runs the worker script with a local interpreter
	ModeDevelopment WorkerMode = "development"
)

const (
	// DataStoreFile is the name of the shared data store file
	DataStoreFile = "calendar_llm.db"

	// AppDirName is the directory of the application below the
	// user config directory
	AppDirName = "calendar-llm"

	// DevDataDirName is the data directory used in development,
	// relative to the working directory
	DevDataDirName = "dev_data"
)

type AuthConfig struct {
	// Key is the shared secret requests to the local API must carry.
	// No authentication is required if empty.
	Key string `conf:"key"`
}

type PackagedConfig struct {
	// Cmd is the bundled worker executable. Relative paths are
	// resolved against the directory of the host executable.
	Cmd string `conf:"cmd"`
}

type DevelopmentConfig struct {
	// Cmd is the interpreter used to run the worker script
	Cmd string `conf:"cmd"`

	// Args are passed to Cmd, usually the path of the worker script
	Args []string `conf:"args"`
}

type WorkerConfig struct {
	// Mode selects how the worker is launched
	Mode WorkerMode `conf:"mode"`

	// Cmd overrides the worker command of the selected mode
	Cmd string `conf:"cmd"`

	// Args overrides the worker arguments of the selected mode
	Args []string `conf:"args"`

	Packaged    PackagedConfig    `conf:"packaged"`
	Development DevelopmentConfig `conf:"development"`

	// Cwd is the working directory of the worker. Defaults to the
	// working directory of the host.
	Cwd string `conf:"cwd"`

	// Env adds environment variables to the worker environment
	Env map[string]string `conf:"env"`

	// StopTimeout is how long a stopping worker may take before it is killed
	StopTimeout time.Duration `conf:"stop_timeout"`
}

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// DataDir holds the shared data store. Defaults depend on the
	// worker mode.
	DataDir string `conf:"data_dir"`

	// Worker configures the assistant worker process
	Worker WorkerConfig `conf:"worker"`

	// ChatTimeout bounds a single chat request. Zero means no timeout.
	ChatTimeout time.Duration `conf:"chat_timeout"`

	// Http is the config of the local API server
	Http server.HttpConfig `conf:"http"`

	// Auth is the authentication config of the local API
	Auth AuthConfig `conf:"auth"`
}

// Defaults returns the default configuration values, keyed by their
// configuration path.
func Defaults() conf.DefaultConfig {
	defaults := conf.MergeDefaults("worker", conf.DefaultConfig{
		"mode":             string(ModeAuto),
		"packaged.cmd":     "backend/crewai_runner",
		"development.cmd":  "python3",
		"development.args": []string{"backend/llm-feature/crew-ai-agent-iteration/calendar_interaction/src/calendar_interaction/crewai_runner.py"},
		"stop_timeout":     "5s",
	})

	for key, value := range conf.MergeDefaults("http", conf.DefaultConfig{
		"host": server.DefaultHost,
		"port": server.DefaultPort,
		"h2c":  false,
	}) {
		defaults[key] = value
	}

	defaults["log_level"] = "info"
	defaults["log_format"] = "production"
	defaults["chat_timeout"] = "0s"

	return defaults
}
