//go:build !windows

package worker

import (
	"os/exec"
	"syscall"
)

func initCmd(cmd *exec.Cmd) {
	// run the worker in its own process group, so signals
	// reach everything it spawned
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func signalProcess(pid int, force bool) error {
	signal := syscall.SIGTERM
	if force {
		signal = syscall.SIGKILL
	}

	if pgid, err := syscall.Getpgid(pid); err == nil {
		// Negative pid sends signal to all in process group
		return syscall.Kill(-pgid, signal)
	}

	return syscall.Kill(pid, signal)
}
