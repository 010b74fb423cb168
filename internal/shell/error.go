package shell

import (
	"errors"
	"fmt"
)

type ExitError struct {
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("shell exited with %d", e.ExitCode)
}

func NewExitError(exitCode int) *ExitError {
	return &ExitError{ExitCode: exitCode}
}

func IsExitError(err error) bool {
	var exitErr *ExitError
	return AsExitError(err, &exitErr)
}

// AsExitError finds the first ExitError in err's chain.
func AsExitError(err error, target **ExitError) bool {
	if err == nil {
		return false
	}

	return errors.As(err, target)
}
