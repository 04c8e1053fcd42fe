package environment

import (
	"fmt"
	"testing"

	"github.com/omvtools/mysqlkeeper/internal/types"
)

func TestParseVersionOutput(t *testing.T) {
	cases := []struct {
		name        string
		output      string
		wantFlavor  types.ServerFlavor
		wantVersion string
	}{
		{
			name:        "mariadb debian",
			output:      "mysqld  Ver 10.11.6-MariaDB-0+deb12u1 for debian-linux-gnu on x86_64 (Debian 12)",
			wantFlavor:  types.FlavorMariaDB,
			wantVersion: "10.11.6-MariaDB-0+deb12u1",
		},
		{
			name:        "mariadbd",
			output:      "mariadbd  Ver 11.4.2-MariaDB for Linux on x86_64 (MariaDB Server)",
			wantFlavor:  types.FlavorMariaDB,
			wantVersion: "11.4.2-MariaDB",
		},
		{
			name:        "oracle mysql",
			output:      "/usr/sbin/mysqld  Ver 8.0.36 for Linux on x86_64 (MySQL Community Server - GPL)",
			wantFlavor:  types.FlavorMySQL,
			wantVersion: "8.0.36",
		},
		{
			name:        "unrecognized",
			output:      "postgres (PostgreSQL) 16.2",
			wantFlavor:  types.FlavorUnknown,
			wantVersion: "unknown",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := parseVersionOutput(tc.output)
			if info.Flavor != tc.wantFlavor {
				t.Fatalf("Flavor = %s, want %s", info.Flavor, tc.wantFlavor)
			}
			if info.Version != tc.wantVersion {
				t.Fatalf("Version = %q, want %q", info.Version, tc.wantVersion)
			}
		})
	}
}

func TestDetectUsesFirstAvailableBinary(t *testing.T) {
	origLookPath, origRunCommand := lookPath, runCommand
	defer func() {
		lookPath, runCommand = origLookPath, origRunCommand
	}()

	lookPath = func(binary string) (string, error) {
		if binary == "mysqld" {
			return "/usr/sbin/mysqld", nil
		}
		return "", fmt.Errorf("%s not found", binary)
	}
	runCommand = func(command string, args ...string) (string, error) {
		if command != "/usr/sbin/mysqld" {
			t.Fatalf("unexpected command %s", command)
		}
		return "/usr/sbin/mysqld  Ver 8.0.36 for Linux on x86_64 (MySQL Community Server - GPL)", nil
	}

	info, err := Detect()
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.Flavor != types.FlavorMySQL || info.Version != "8.0.36" {
		t.Fatalf("Detect() = %+v", info)
	}
}

func TestDetectNothingInstalled(t *testing.T) {
	origLookPath, origRunCommand := lookPath, runCommand
	defer func() {
		lookPath, runCommand = origLookPath, origRunCommand
	}()

	lookPath = func(binary string) (string, error) {
		return "", fmt.Errorf("%s not found", binary)
	}

	info, err := Detect()
	if err == nil {
		t.Fatal("Detect() succeeded with no server installed")
	}
	if info.Flavor != types.FlavorUnknown {
		t.Fatalf("Flavor = %s, want unknown", info.Flavor)
	}
}
