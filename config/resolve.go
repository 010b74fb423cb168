package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/supervisor"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/worker"
	"github.com/AnushSomasundaram/Calendarllm/runtime"
	"github.com/AnushSomasundaram/Calendarllm/settings"
)

var ErrUnknownMode = errors.New("unknown worker mode")

// Environment describes the host the application runs on.
type Environment struct {
	// Executable is the path of the running host executable
	Executable string

	// UserConfigDir is the per-user configuration directory
	UserConfigDir string

	// WorkingDir is the working directory of the host
	WorkingDir string

	// Exists reports whether a file exists at path
	Exists func(path string) bool
}

// DetectEnvironment inspects the current process.
func DetectEnvironment() (Environment, error) {
	exe, err := os.Executable()
	if err != nil {
		return Environment{}, fmt.Errorf("failed to locate executable: %w", err)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Environment{}, fmt.Errorf("failed to locate config directory: %w", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		return Environment{}, fmt.Errorf("failed to get working directory: %w", err)
	}

	return Environment{
		Executable:    exe,
		UserConfigDir: configDir,
		WorkingDir:    wd,
		Exists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
	}, nil
}

// Resolved is the configuration of the application components.
type Resolved struct {
	Mode     WorkerMode
	Runtime  runtime.Config
	Settings settings.Config
}

// Resolve picks the worker launch and the data store location for the
// configured worker mode.
func (c Config) Resolve(env Environment) (Resolved, error) {
	packagedCmd := c.Worker.Packaged.Cmd
	if packagedCmd != "" && !filepath.IsAbs(packagedCmd) {
		packagedCmd = filepath.Join(filepath.Dir(env.Executable), packagedCmd)
	}

	mode := c.Worker.Mode
	if mode == "" {
		mode = ModeAuto
	}

	if mode == ModeAuto {
		mode = ModeDevelopment
		if packagedCmd != "" && env.Exists != nil && env.Exists(packagedCmd) {
			mode = ModePackaged
		}
	}

	var start worker.StartConfig
	var dataDir string

	switch mode {
	case ModePackaged:
		start = worker.StartConfig{Cmd: packagedCmd}
		dataDir = filepath.Join(env.UserConfigDir, AppDirName)
	case ModeDevelopment:
		start = worker.StartConfig{
			Cmd:  c.Worker.Development.Cmd,
			Args: c.Worker.Development.Args,
		}
		dataDir = filepath.Join(env.WorkingDir, DevDataDirName)
	default:
		return Resolved{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if c.Worker.Cmd != "" {
		start.Cmd = c.Worker.Cmd
		start.Args = c.Worker.Args
	}

	if start.Cmd == "" {
		return Resolved{}, fmt.Errorf("no worker command configured for %s mode", mode)
	}

	if c.DataDir != "" {
		dataDir = c.DataDir
	}

	start.Cwd = c.Worker.Cwd
	if start.Cwd == "" {
		start.Cwd = env.WorkingDir
	}
	start.Env = c.Worker.Env

	dbPath := filepath.Join(dataDir, DataStoreFile)

	return Resolved{
		Mode: mode,
		Runtime: runtime.Config{
			Supervisor: supervisor.Config{
				Start: start,
				Stop:  worker.StopConfig{Timeout: c.Worker.StopTimeout},
				DataStore: supervisor.DataStoreConfig{
					Path:   dbPath,
					EnvVar: supervisor.DefaultDataStoreEnvVar,
				},
			},
			ChatTimeout: c.ChatTimeout,
		},
		Settings: settings.Config{Path: dbPath},
	}, nil
}
