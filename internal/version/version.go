// Package version reports the build version of the mysqlkeeper binary.
package version

import (
	"runtime/debug"
	"strings"
)

// These variables are intended to be populated at build time via -ldflags,
// for example:
//
//	-X github.com/omvtools/mysqlkeeper/internal/version.Version=v0.9.0
//	-X github.com/omvtools/mysqlkeeper/internal/version.Commit=abcdef123
//	-X github.com/omvtools/mysqlkeeper/internal/version.Date=2026-01-01T12:34:56Z
var (
	// Version holds the semantic version of the binary.
	Version = "0.0.0-dev"

	// Commit holds the VCS commit hash used to build the binary (optional).
	Commit = ""

	// Date holds the build timestamp (optional).
	Date = ""
)

var readBuildInfo = debug.ReadBuildInfo

// String returns the effective version string used across the application.
// An ldflags-injected Version wins; otherwise the main module version from
// build info is used when available, with a development placeholder as the
// final fallback. Any leading "v" tag prefix is stripped.
func String() string {
	v := strings.TrimSpace(Version)

	if v == "" {
		if info, ok := readBuildInfo(); ok {
			if mv := strings.TrimSpace(info.Main.Version); mv != "" && mv != "(devel)" {
				v = mv
			}
		}
	}

	if v == "" {
		v = "0.0.0-dev"
	}

	return strings.TrimPrefix(v, "v")
}
