package mysql

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunnerProcessError(t *testing.T) {
	runner := NewRunner()
	_, err := runner.Run(context.Background(), Command{Path: "/nonexistent/mysqlkeeper-test-binary"})

	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("err = %v, want *ProcessError", err)
	}
}

func TestRunnerExecutionError(t *testing.T) {
	runner := NewRunner()
	_, err := runner.Run(context.Background(), Command{Path: "false"})

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}
	if execErr.ExitCode == 0 {
		t.Fatal("ExecutionError with zero exit code")
	}
}

func TestRunnerStdinPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.sql")
	if err := os.WriteFile(path, []byte("SELECT 1;\n"), 0o600); err != nil {
		t.Fatalf("write input file: %v", err)
	}

	runner := NewRunner()
	output, err := runner.Run(context.Background(), Command{Path: "cat", StdinPath: path})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(output) != "SELECT 1;\n" {
		t.Fatalf("output = %q", output)
	}
}

func TestRunnerStdinReaderTakesPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.sql")
	if err := os.WriteFile(path, []byte("from file\n"), 0o600); err != nil {
		t.Fatalf("write input file: %v", err)
	}

	runner := NewRunner()
	output, err := runner.Run(context.Background(), Command{
		Path:      "cat",
		StdinPath: path,
		Stdin:     strings.NewReader("from memory\n"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(output) != "from memory\n" {
		t.Fatalf("output = %q, want in-memory stdin to win", output)
	}
}

func TestRunnerMissingStdinFile(t *testing.T) {
	runner := NewRunner()
	_, err := runner.Run(context.Background(), Command{
		Path:      "cat",
		StdinPath: filepath.Join(t.TempDir(), "absent.sql"),
	})

	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("err = %v, want *ProcessError", err)
	}
}
