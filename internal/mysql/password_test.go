package mysql

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestPasswordRotatorReset(t *testing.T) {
	cfg := testConfig(t.TempDir())

	var batch string
	runner := &scriptRunner{run: func(_ context.Context, cmd Command) ([]byte, error) {
		if cmd.Stdin == nil {
			t.Fatal("rotation batch not fed via stdin")
		}
		data, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return nil, err
		}
		batch = string(data)
		return nil, nil
	}}

	rotator := NewPasswordRotator(testLogger(), cfg, Deps{Runner: runner})
	if err := rotator.Reset(context.Background(), "Sn3w!pass"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	for _, want := range []string{
		"CREATE USER IF NOT EXISTS 'omvadmin'@'localhost' IDENTIFIED BY 'Sn3w!pass';",
		"ALTER USER 'omvadmin'@'localhost' IDENTIFIED BY 'Sn3w!pass';",
		"GRANT ALL PRIVILEGES ON *.* TO 'omvadmin'@'localhost' WITH GRANT OPTION;",
		"FLUSH PRIVILEGES;",
	} {
		if !strings.Contains(batch, want) {
			t.Fatalf("rotation batch missing %q:\n%s", want, batch)
		}
	}

	// The password must not leak into the argument vector.
	for _, arg := range runner.calls[0].Args {
		if strings.Contains(arg, "Sn3w!pass") {
			t.Fatalf("password in argument vector: %q", arg)
		}
	}

	data, err := os.ReadFile(cfg.ScheduledCredentialsPath)
	if err != nil {
		t.Fatalf("read scheduled credentials: %v", err)
	}
	want := "[mysqldump]\nuser=omvadmin\npassword=Sn3w!pass\n"
	if string(data) != want {
		t.Fatalf("scheduled credentials = %q, want %q", data, want)
	}

	info, err := os.Stat(cfg.ScheduledCredentialsPath)
	if err != nil {
		t.Fatalf("stat scheduled credentials: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("scheduled credentials mode = %o, want 600", info.Mode().Perm())
	}
}

func TestPasswordRotatorResetSQLFailure(t *testing.T) {
	cfg := testConfig(t.TempDir())
	runner := &scriptRunner{run: func(_ context.Context, cmd Command) ([]byte, error) {
		return nil, &ExecutionError{Command: cmd.Path, ExitCode: 1, Output: "access denied"}
	}}

	rotator := NewPasswordRotator(testLogger(), cfg, Deps{Runner: runner})
	err := rotator.Reset(context.Background(), "new-password")

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}
	var staleErr *StaleCredentialsError
	if errors.As(err, &staleErr) {
		t.Fatal("SQL failure misreported as stale credentials")
	}
	if _, statErr := os.Stat(cfg.ScheduledCredentialsPath); !os.IsNotExist(statErr) {
		t.Fatal("credentials file written although the live password never changed")
	}
}

func TestPasswordRotatorResetStaleCredentials(t *testing.T) {
	cfg := testConfig(t.TempDir())
	// A directory at the credentials path makes the post-rotation write
	// fail after the server already accepted the new password.
	if err := os.Mkdir(cfg.ScheduledCredentialsPath, 0o755); err != nil {
		t.Fatalf("mkdir at credentials path: %v", err)
	}

	rotator := NewPasswordRotator(testLogger(), cfg, Deps{Runner: &scriptRunner{}})
	err := rotator.Reset(context.Background(), "new-password")

	var staleErr *StaleCredentialsError
	if !errors.As(err, &staleErr) {
		t.Fatalf("err = %v, want *StaleCredentialsError", err)
	}
	if staleErr.Path != cfg.ScheduledCredentialsPath {
		t.Fatalf("stale path = %q, want %q", staleErr.Path, cfg.ScheduledCredentialsPath)
	}
}

func TestPasswordRotatorResetRejectsBadPassword(t *testing.T) {
	cfg := testConfig(t.TempDir())
	runner := &scriptRunner{}
	rotator := NewPasswordRotator(testLogger(), cfg, Deps{Runner: runner})

	for _, password := range []string{"", "with\nnewline"} {
		if err := rotator.Reset(context.Background(), password); err == nil {
			t.Fatalf("Reset(%q) accepted an invalid password", password)
		}
	}
	if len(runner.calls) != 0 {
		t.Fatal("mysql was invoked for an invalid password")
	}
}

func TestQuoteSQLString(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "'plain'"},
		{"it's", `'it\'s'`},
		{`back\slash`, `'back\\slash'`},
	}
	for _, tc := range cases {
		if got := quoteSQLString(tc.in); got != tc.want {
			t.Fatalf("quoteSQLString(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
