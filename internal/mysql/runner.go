package mysql

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Command describes one external process invocation. Arguments are always
// passed as a discrete vector; no shell is involved, so caller-influenced
// values (paths, passwords) cannot be interpreted as shell metacharacters.
type Command struct {
	Path string
	Args []string

	// StdinPath redirects a file into the process via the process-spawning
	// primitive, never via shell interpolation.
	StdinPath string

	// Stdin takes precedence over StdinPath when set. Used for in-memory
	// input (SQL batches) that must not touch the disk.
	Stdin io.Reader
}

type execRunner struct{}

// NewRunner returns a CommandRunner backed by os/exec.
func NewRunner() CommandRunner {
	return execRunner{}
}

// Run executes the command and returns its combined output. A spawn failure
// yields a *ProcessError; a non-zero exit yields an *ExecutionError carrying
// the exit code and captured output.
func (execRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)

	switch {
	case cmd.Stdin != nil:
		c.Stdin = cmd.Stdin
	case cmd.StdinPath != "":
		f, err := os.Open(cmd.StdinPath)
		if err != nil {
			return nil, &ProcessError{Command: cmd.Path, Err: err}
		}
		defer f.Close()
		c.Stdin = f
	}

	output, err := c.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return output, &ExecutionError{
				Command:  cmd.Path,
				ExitCode: exitErr.ExitCode(),
				Output:   string(output),
			}
		}
		return output, &ProcessError{Command: cmd.Path, Err: err}
	}
	return output, nil
}
