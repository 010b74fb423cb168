package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long Wait blocks on the output pipes after the
// process itself has exited, e.g. when a grandchild keeps them open.
const waitDelay = 2 * time.Second

type proc struct {
	pid   int
	cmd   *exec.Cmd
	stdin io.WriteCloser

	stdinOnce sync.Once
	stdinErr  error

	termination chan struct{}
	waitErr     error

	log *zap.Logger
}

func startProc(
	ctx context.Context,
	config StartConfig,
	streams Streams,
	log *zap.Logger,
) (*proc, error) {
	if config.Cmd == "" {
		return nil, errors.New("no command provided")
	}

	cmd := exec.CommandContext(ctx, config.Cmd, config.Args...)
	cmd.Env = mergeEnv(os.Environ(), config.Env)
	cmd.Dir = config.Cwd
	cmd.Stdout = streams.Stdout
	cmd.Stderr = streams.Stderr
	cmd.WaitDelay = waitDelay

	initCmd(cmd)

	// kill the whole process group if the lifetime context ends
	cmd.Cancel = func() error {
		return signalProcess(cmd.Process.Pid, true)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	process := &proc{
		pid:         cmd.Process.Pid,
		cmd:         cmd,
		stdin:       stdin,
		termination: make(chan struct{}),
		log:         log.Named("proc").With(zap.Int("pid", cmd.Process.Pid)),
	}

	go func() {
		// block until the process exits and its output is drained
		process.waitErr = cmd.Wait()

		// signal termination to all waiters
		close(process.termination)
	}()

	return process, nil
}

// Terminate closes stdin and asks the process to stop. It returns
// immediately, without waiting for the process to exit.
func (p *proc) Terminate() error {
	return p.signal(false)
}

// Kill forcefully stops the process. It returns immediately, without
// waiting for the process to exit.
func (p *proc) Kill() error {
	return p.signal(true)
}

func (p *proc) signal(force bool) error {
	// report success if the process already terminated
	select {
	case <-p.termination:
		p.log.Debug("process already terminated")
		return nil
	default:
	}

	log := p.log.With(zap.Bool("force", force))

	// close stdin before signalling the process,
	// to avoid the process hanging on input
	if err := p.CloseStdin(); err != nil {
		log.Debug("close stdin failed", zap.Error(err))
	}

	log.Debug("sending signal")

	if err := signalProcess(p.pid, force); err != nil {
		// the process may have exited in the meantime
		select {
		case <-p.termination:
			return nil
		default:
		}

		log.Error("signal failed", zap.Error(err))
		return err
	}

	return nil
}

// Wait blocks until the process exited and returns the error of
// exec.Cmd.Wait.
func (p *proc) Wait() error {
	<-p.termination
	return p.waitErr
}

// CloseStdin closes the stdin pipe of the process. It is safe
// to call CloseStdin multiple times.
func (p *proc) CloseStdin() error {
	p.stdinOnce.Do(func() {
		p.stdinErr = p.stdin.Close()
	})

	return p.stdinErr
}

// Stdin returns the pipe connected to the standard input of the process.
func (p *proc) Stdin() io.WriteCloser {
	return &stdinPipe{proc: p}
}

// Pid returns the process identifier.
func (p *proc) Pid() int {
	return p.pid
}

// ProcessState returns the state of the exited process, or nil while
// the process is still running.
func (p *proc) ProcessState() *os.ProcessState {
	select {
	case <-p.termination:
		return p.cmd.ProcessState
	default:
		return nil
	}
}

// stdinPipe routes Close through CloseStdin, so the pipe
// is closed exactly once no matter who closes it.
type stdinPipe struct {
	proc *proc
}

func (s *stdinPipe) Write(b []byte) (int, error) {
	return s.proc.stdin.Write(b)
}

func (s *stdinPipe) Close() error {
	return s.proc.CloseStdin()
}

// mergeEnv applies the overrides on top of the base environment.
// Every key appears once; overrides win and are appended in
// sorted order to keep the result deterministic.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}

	return env
}

func getExitEvent(state *os.ProcessState) ExitEvent {
	var cell int

	if state == nil {
		// could not determine the exit status, set exit status to 1
		cell = 1
		return ExitEvent{Code: &cell}
	}

	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		// the process was terminated by a signal
		cell = int(status.Signal())
		return ExitEvent{Signal: &cell}
	}

	cell = state.ExitCode()
	if cell < 0 {
		cell = 1
	}

	return ExitEvent{Code: &cell}
}
