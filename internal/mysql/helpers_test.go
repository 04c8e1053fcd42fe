package mysql

import (
	"context"
	"path/filepath"
	"time"

	"github.com/omvtools/mysqlkeeper/internal/config"
	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/types"
)

// fakeClock returns a fixed instant.
type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

// scriptRunner delegates to a function so each test can script the behavior
// of the external tool, including inspecting the state of the world at the
// moment the command runs.
type scriptRunner struct {
	calls []Command
	run   func(ctx context.Context, cmd Command) ([]byte, error)
}

func (r *scriptRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	r.calls = append(r.calls, cmd)
	if r.run == nil {
		return nil, nil
	}
	return r.run(ctx, cmd)
}

// resultFilePath extracts the --result-file argument from a mysqldump
// invocation.
func resultFilePath(cmd Command) string {
	for _, arg := range cmd.Args {
		if len(arg) > len("--result-file=") && arg[:len("--result-file=")] == "--result-file=" {
			return arg[len("--result-file="):]
		}
	}
	return ""
}

func testLogger() *logging.Logger {
	return logging.New(types.LogLevelError, false)
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		AdminUser:                "omvadmin",
		LoginUser:                "root",
		AdHocCredentialsPath:     filepath.Join(dir, ".cnf"),
		ScheduledCredentialsPath: filepath.Join(dir, ".mysqldump.cnf"),
		MysqlBin:                 "mysql",
		MysqldumpBin:             "mysqldump",
	}
}
