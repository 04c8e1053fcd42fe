package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/omvtools/mysqlkeeper/internal/cli"
	"github.com/omvtools/mysqlkeeper/internal/encryption"
	"github.com/omvtools/mysqlkeeper/internal/input"
	"github.com/omvtools/mysqlkeeper/internal/mysql"
	"github.com/omvtools/mysqlkeeper/internal/rpc"
	"github.com/omvtools/mysqlkeeper/internal/storage"
	"github.com/omvtools/mysqlkeeper/internal/types"
)

func TestValidateOperationFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    *cli.Args
		wantErr bool
	}{
		{"no operation", &cli.Args{}, false},
		{"single operation", &cli.Args{Backup: true}, false},
		{"enable alone", &cli.Args{Enable: true}, false},
		{"enable and disable", &cli.Args{Enable: true, Disable: true}, true},
		{"backup and dump", &cli.Args{Backup: true, DumpRef: "dumps/nightly"}, true},
		{"restore and reset", &cli.Args{RestorePath: "/tmp/x.sql", ResetPassword: true}, true},
		{"status and security check", &cli.Args{Status: true, SecurityCheck: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOperationFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateOperationFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback types.ExitCode
		want     types.ExitCode
	}{
		{"dump conflict", mysql.ErrDumpExists, types.ExitDumpError, types.ExitConflictError},
		{"invalid reference", storage.ErrInvalidReference, types.ExitDumpError, types.ExitValidationError},
		{"authorization", &rpc.AuthorizationError{Method: "GetStatus", Username: "guest"}, types.ExitServiceError, types.ExitAuthorizationError},
		{"validation", &rpc.ValidationError{Field: "port", Reason: "out of range"}, types.ExitServiceError, types.ExitValidationError},
		{"stale credentials", &mysql.StaleCredentialsError{Path: "/etc/creds", Err: errors.New("boom")}, types.ExitCredentialError, types.ExitCredentialError},
		{"generic falls back", errors.New("boom"), types.ExitRestoreError, types.ExitRestoreError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err, tt.fallback); got != tt.want {
				t.Fatalf("exitCodeFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLocalCallerIsAdmin(t *testing.T) {
	caller := localCaller()
	if !caller.Admin {
		t.Fatal("local CLI caller should carry the administrator role")
	}
	if caller.Username == "" {
		t.Fatal("caller username should never be empty")
	}
}

func TestFindEncryptedDumps(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "dumps", "nightly")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	files := []string{
		filepath.Join(root, "mysql-2024-05-15T10:30:00Z.sql.age"),
		filepath.Join(sub, "mysql-2024-05-17T10:30:00Z.sql.age"),
		filepath.Join(sub, "mysql-2024-05-16T10:30:00Z.sql"),
		filepath.Join(sub, "notes.txt"),
	}
	for _, f := range files {
		if err := os.WriteFile(f, []byte("data"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	dumps, err := findEncryptedDumps(root)
	if err != nil {
		t.Fatalf("findEncryptedDumps: %v", err)
	}
	if len(dumps) != 2 {
		t.Fatalf("found %d dumps, want 2", len(dumps))
	}
	if dumps[0].Filename != "mysql-2024-05-17T10:30:00Z.sql.age" {
		t.Fatalf("expected newest dump first, got %s", dumps[0].Filename)
	}
	for _, d := range dumps {
		if !d.Encrypted {
			t.Fatalf("plain dump leaked into encrypted listing: %s", d.Filename)
		}
	}
}

func TestDecryptDumpToTemp(t *testing.T) {
	const passphrase = "correct-horse-battery"

	recipient, err := encryption.DeriveRecipientFromPassphrase(passphrase)
	if err != nil {
		t.Fatalf("derive recipient: %v", err)
	}
	recipients, err := encryption.ParseRecipients([]string{recipient})
	if err != nil {
		t.Fatalf("parse recipients: %v", err)
	}

	dir := t.TempDir()
	plain := filepath.Join(dir, "mysql-2024-05-17T10:30:00Z.sql")
	if err := os.WriteFile(plain, []byte("-- restore me\n"), 0o600); err != nil {
		t.Fatalf("write plaintext dump: %v", err)
	}
	encrypted := plain + ".age"
	if err := encryption.EncryptFile(plain, encrypted, recipients); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	got, cleanup, err := decryptDumpToTemp(encrypted, passphrase)
	if err != nil {
		t.Fatalf("decryptDumpToTemp: %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("read decrypted dump: %v", err)
	}
	if string(data) != "-- restore me\n" {
		t.Fatalf("decrypted content = %q", data)
	}

	cleanup()
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Fatalf("cleanup left decrypted dump behind at %s", got)
	}
}

func TestDecryptDumpToTempWrongPassphrase(t *testing.T) {
	recipient, err := encryption.DeriveRecipientFromPassphrase("the-real-passphrase")
	if err != nil {
		t.Fatalf("derive recipient: %v", err)
	}
	recipients, err := encryption.ParseRecipients([]string{recipient})
	if err != nil {
		t.Fatalf("parse recipients: %v", err)
	}

	dir := t.TempDir()
	plain := filepath.Join(dir, "mysql-2024-05-17T10:30:00Z.sql")
	if err := os.WriteFile(plain, []byte("-- secret\n"), 0o600); err != nil {
		t.Fatalf("write plaintext dump: %v", err)
	}
	encrypted := plain + ".age"
	if err := encryption.EncryptFile(plain, encrypted, recipients); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	if _, _, err := decryptDumpToTemp(encrypted, "not-the-passphrase"); err == nil {
		t.Fatal("decryptDumpToTemp succeeded with the wrong passphrase")
	}
}

func TestPickDumpCLISelectsByNumber(t *testing.T) {
	dumps := []types.DumpArtifact{
		{Filename: "mysql-2024-05-17T10:30:00Z.sql", Path: "/srv/a.sql"},
		{Filename: "mysql-2024-05-16T10:30:00Z.sql", Path: "/srv/b.sql"},
	}

	withStdin(t, "nonsense\n2\n")
	got, err := pickDumpCLI(context.Background(), dumps)
	if err != nil {
		t.Fatalf("pickDumpCLI: %v", err)
	}
	if got.Path != "/srv/b.sql" {
		t.Fatalf("selected %q, want /srv/b.sql", got.Path)
	}
}

func TestPickDumpCLIEmptyAborts(t *testing.T) {
	withStdin(t, "\n")
	_, err := pickDumpCLI(context.Background(), []types.DumpArtifact{{Filename: "x"}})
	if !errors.Is(err, input.ErrInputAborted) {
		t.Fatalf("err = %v, want ErrInputAborted", err)
	}
}

func withStdin(t *testing.T, content string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	if _, err := w.WriteString(content); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	_ = w.Close()

	orig := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = orig
		_ = r.Close()
	})
}
