//go:build !windows

package util

import (
	"errors"
	"syscall"
)

// IsProcessAlive reports whether a process with the given pid exists.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := syscall.Kill(pid, syscall.Signal(0))

	// EPERM means the process exists but belongs to someone else
	return err == nil || errors.Is(err, syscall.EPERM)
}
