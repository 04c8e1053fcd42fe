package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/omvtools/mysqlkeeper/internal/types"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelWarning, false)
	logger.SetOutput(&buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warning("warning message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Fatalf("messages below level leaked into output:\n%s", out)
	}
	if !strings.Contains(out, "warning message") || !strings.Contains(out, "error message") {
		t.Fatalf("expected warning and error messages in output:\n%s", out)
	}
}

func TestLogger_Counters(t *testing.T) {
	logger := New(types.LogLevelDebug, false)
	logger.SetOutput(&bytes.Buffer{})

	if logger.HasWarnings() || logger.HasErrors() {
		t.Fatal("fresh logger should have no warnings or errors")
	}

	logger.Warning("w")
	if !logger.HasWarnings() {
		t.Fatal("HasWarnings = false after Warning")
	}

	logger.Error("e")
	if !logger.HasErrors() {
		t.Fatal("HasErrors = false after Error")
	}
}

func TestLogger_LogFileWithoutColors(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "keeper.log")

	logger := New(types.LogLevelInfo, true)
	logger.SetOutput(&bytes.Buffer{})
	if err := logger.OpenLogFile(logPath); err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}

	logger.Info("written to file")
	if err := logger.CloseLogFile(); err != nil {
		t.Fatalf("CloseLogFile: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("log file missing message:\n%s", data)
	}
	if strings.Contains(string(data), "\033[") {
		t.Fatalf("log file contains ANSI escapes:\n%q", data)
	}
}

func TestLogger_FatalUsesExitFunc(t *testing.T) {
	logger := New(types.LogLevelInfo, false)
	logger.SetOutput(&bytes.Buffer{})

	exitCode := -1
	logger.SetExitFunc(func(code int) { exitCode = code })

	logger.Fatal(types.ExitConfigError, "boom")
	if exitCode != types.ExitConfigError.Int() {
		t.Fatalf("exit code = %d; want %d", exitCode, types.ExitConfigError.Int())
	}
}

func TestLogger_StepLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelInfo, false)
	logger.SetOutput(&buf)

	logger.Step("dumping databases")
	if !strings.Contains(buf.String(), "STEP") {
		t.Fatalf("expected STEP label in output:\n%s", buf.String())
	}
}
