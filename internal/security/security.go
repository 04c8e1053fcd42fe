// Package security runs preflight checks over the files and tools the
// dump workflows depend on: credential file modes and ownership, shared
// folder sanity, required client binaries, and stray key material.
package security

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/omvtools/mysqlkeeper/internal/config"
	"github.com/omvtools/mysqlkeeper/internal/logging"
)

type issueSeverity string

const (
	severityWarning issueSeverity = "warning"
	severityError   issueSeverity = "error"
)

type Issue struct {
	Severity issueSeverity
	Message  string
}

type Result struct {
	Issues []Issue
}

func (r *Result) add(sev issueSeverity, msg string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Message: msg})
}

func (r *Result) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == severityError {
			return true
		}
	}
	return false
}

func (r *Result) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == severityError {
			count++
		}
	}
	return count
}

func (r *Result) WarningCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == severityWarning {
			count++
		}
	}
	return count
}

type Checker struct {
	logger   *logging.Logger
	cfg      *config.Config
	result   *Result
	lookPath func(string) (string, error)
}

type dependencyEntry struct {
	Name     string
	Required bool
	Reason   string
}

// Run executes the security checks and returns the aggregated result.
// Credential files with a loose mode are a hard error; everything else is
// reported as a warning.
func Run(logger *logging.Logger, cfg *config.Config) *Result {
	checker := &Checker{
		logger:   logger,
		cfg:      cfg,
		result:   &Result{},
		lookPath: exec.LookPath,
	}
	return checker.run()
}

func (c *Checker) run() *Result {
	c.logger.Step("Security preflight checks")

	c.checkDependencies()
	c.verifyCredentialFiles()
	c.verifySharedFolderRoot()
	c.detectKeyMaterialInRecipientFile()

	c.logger.Info("Security checks completed: %d warning(s), %d error(s)",
		c.result.WarningCount(), c.result.ErrorCount())
	return c.result
}

func (c *Checker) checkDependencies() {
	deps := []dependencyEntry{
		{Name: c.cfg.MysqlBin, Required: true, Reason: "required for restore and password rotation"},
		{Name: c.cfg.MysqldumpBin, Required: true, Reason: "required for dump operations"},
		{Name: c.cfg.SystemctlBin, Required: false, Reason: "required for service control"},
	}

	for _, dep := range deps {
		if dep.Name == "" {
			continue
		}
		if path, err := c.lookPath(dep.Name); err == nil {
			c.logger.Debug("Dependency %s: present at %s - %s", dep.Name, path, dep.Reason)
			continue
		}
		if dep.Required {
			c.addError("Required dependency %s missing: %s", dep.Name, dep.Reason)
		} else {
			c.addWarning("Optional dependency %s missing: %s", dep.Name, dep.Reason)
		}
	}
}

// verifyCredentialFiles checks the durable credential files. A mode other
// than 0600 exposes the database password to other local users, so it is
// treated as an error rather than a warning.
func (c *Checker) verifyCredentialFiles() {
	files := []struct {
		path        string
		description string
	}{
		{c.cfg.ScheduledCredentialsPath, "scheduled-dump credentials file"},
		{c.cfg.AdHocCredentialsPath, "ad-hoc credentials file"},
	}

	for _, entry := range files {
		if entry.path == "" {
			continue
		}
		info, err := os.Lstat(entry.path)
		if errors.Is(err, os.ErrNotExist) {
			// Ad-hoc credentials only exist while a restore runs;
			// scheduled credentials appear after the first rotation.
			c.logger.Debug("Security check: %s %s not present", entry.description, entry.path)
			continue
		}
		if err != nil {
			c.addWarning("Cannot stat %s (%s): %v", entry.path, entry.description, err)
			continue
		}
		c.ensureCredentialMode(entry.path, info, entry.description)
	}
}

func (c *Checker) ensureCredentialMode(path string, info os.FileInfo, description string) {
	const expectedPerm = os.FileMode(0o600)

	isSymlink := info.Mode()&os.ModeSymlink != 0
	if isSymlink {
		c.addError("%s is a symlink: %s", description, path)
		return
	}

	if perm := info.Mode().Perm(); perm != expectedPerm {
		if c.cfg.AutoFixPermissions {
			if err := syscall.Chmod(path, uint32(expectedPerm)); err != nil {
				c.addError("Failed to adjust permissions on %s: %v", path, err)
			} else {
				c.logger.Info("Adjusted permissions on %s to %o", path, expectedPerm)
			}
		} else {
			c.addError("%s has permissions %o, expected %o: %s", description, perm, expectedPerm, path)
		}
	}

	if !isOwnedByRoot(info) {
		if c.cfg.AutoFixPermissions {
			if err := syscall.Lchown(path, 0, 0); err != nil {
				c.addWarning("Failed to set ownership root:root on %s: %v", path, err)
			} else {
				c.logger.Info("Adjusted ownership on %s to root:root", path)
			}
		} else {
			c.addWarning("%s should be owned by root:root: %s", description, path)
		}
	}
}

func (c *Checker) verifySharedFolderRoot() {
	root := c.cfg.SharedFolderRoot
	if root == "" {
		return
	}
	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		c.addWarning("Shared folder root %s does not exist; managed dumps will fail", root)
		return
	}
	if err != nil {
		c.addWarning("Cannot stat shared folder root %s: %v", root, err)
		return
	}
	if !info.IsDir() {
		c.addError("Shared folder root %s is not a directory", root)
	}
}

// detectKeyMaterialInRecipientFile warns when the recipient file holds a
// private key instead of public recipients. Dump encryption only needs the
// public half; a private key next to the dumps defeats the point.
func (c *Checker) detectKeyMaterialInRecipientFile() {
	path := c.cfg.AgeRecipientFile
	if path == "" {
		return
	}
	found, err := fileContainsMarker(path, []string{"AGE-SECRET-KEY-", "PRIVATE KEY"})
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("Security: skipped key scan for %s: %v", path, err)
		}
		return
	}
	if found {
		c.addWarning("Private key material detected in recipient file %s (only public recipients belong there)", filepath.Clean(path))
	}
}

func fileContainsMarker(path string, markers []string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToUpper(scanner.Text())
		for _, marker := range markers {
			if strings.Contains(line, marker) {
				return true, nil
			}
		}
	}
	return false, scanner.Err()
}

func (c *Checker) addWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Warning("%s", msg)
	c.result.add(severityWarning, msg)
}

func (c *Checker) addError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Error("%s", msg)
	c.result.add(severityError, msg)
}

func isOwnedByRoot(info os.FileInfo) bool {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}
	return stat.Uid == 0 && stat.Gid == 0
}
