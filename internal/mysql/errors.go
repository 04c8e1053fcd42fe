// Package mysql implements the core database lifecycle workflows:
// credential file management, dump production, restore, and administrative
// password rotation.
package mysql

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDumpExists signals that a dump file already exists at the computed
// destination path. The pre-existing file is never touched.
var ErrDumpExists = errors.New("dump file already exists at destination")

// ProcessError is returned when an external tool could not be spawned at all.
type ProcessError struct {
	Command string
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("cannot start %s: %v", e.Command, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ExecutionError is returned when an external tool exited non-zero. It
// carries the captured combined output for diagnostics.
type ExecutionError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *ExecutionError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, out)
}

// StaleCredentialsError reports the non-transactional gap in password
// rotation: the live server password was changed, but persisting the new
// password to the durable scheduled-dump credentials file failed. Scheduled
// dumps will keep using the old password until the file is rewritten.
type StaleCredentialsError struct {
	Path string
	Err  error
}

func (e *StaleCredentialsError) Error() string {
	return fmt.Sprintf("live password was changed but updating credentials file %s failed: %v (scheduled dumps will authenticate with the old password)", e.Path, e.Err)
}

func (e *StaleCredentialsError) Unwrap() error { return e.Err }
