// Package environment detects which database server variant is installed
// and what version it runs.
package environment

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/omvtools/mysqlkeeper/internal/types"
)

var (
	additionalPaths = []string{"/usr/bin", "/usr/sbin", "/bin", "/sbin"}

	// Candidate server daemons, probed in order. MariaDB ships mariadbd
	// (and a mysqld compatibility link); Oracle MySQL ships only mysqld.
	serverBinaries = []string{"mariadbd", "mysqld", "mariadbd-safe"}

	versionRe = regexp.MustCompile(`Ver\s+([0-9]+\.[0-9]+\.[0-9]+(?:-[0-9A-Za-z.]+)*)`)

	runCommand = runVersionCommand
	lookPath   = exec.LookPath
)

// Detect probes the installed server and returns flavor and version. An
// unknown flavor is returned with an error rather than a guess.
func Detect() (*types.ServerInfo, error) {
	extendPath()

	for _, binary := range serverBinaries {
		path, err := lookPath(binary)
		if err != nil {
			continue
		}
		output, err := runCommand(path, "--version")
		if err != nil {
			continue
		}
		info := parseVersionOutput(output)
		if info.Flavor != types.FlavorUnknown {
			return &info, nil
		}
	}

	return &types.ServerInfo{
		Flavor:  types.FlavorUnknown,
		Version: "unknown",
	}, fmt.Errorf("unable to detect an installed MySQL or MariaDB server")
}

// parseVersionOutput classifies a `--version` line, e.g.
//
//	mysqld  Ver 10.11.6-MariaDB-0+deb12u1 for debian-linux-gnu ...
//	/usr/sbin/mysqld  Ver 8.0.36 for Linux on x86_64 (MySQL Community Server - GPL)
func parseVersionOutput(output string) types.ServerInfo {
	version := "unknown"
	if match := versionRe.FindStringSubmatch(output); len(match) >= 2 {
		version = match[1]
	}

	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "mariadb"):
		return types.ServerInfo{Flavor: types.FlavorMariaDB, Version: version}
	case strings.Contains(lower, "mysql"):
		return types.ServerInfo{Flavor: types.FlavorMySQL, Version: version}
	default:
		return types.ServerInfo{Flavor: types.FlavorUnknown, Version: version}
	}
}

func extendPath() {
	currentPath := os.Getenv("PATH")
	pathSet := make(map[string]struct{})
	for _, part := range strings.Split(currentPath, string(os.PathListSeparator)) {
		pathSet[part] = struct{}{}
	}

	updated := currentPath
	for _, add := range additionalPaths {
		if _, ok := pathSet[add]; !ok {
			if updated == "" {
				updated = add
			} else {
				updated = updated + string(os.PathListSeparator) + add
			}
		}
	}

	if updated != currentPath {
		_ = os.Setenv("PATH", updated)
	}
}

func runVersionCommand(command string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	output, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command %s timed out", command)
	}
	if err != nil {
		return "", err
	}
	return string(output), nil
}
