package mysql

import (
	"context"
	"io/fs"
	"os"
	"time"
)

// FS abstracts filesystem operations to simplify testing.
type FS interface {
	Stat(path string) (os.FileInfo, error)
	OpenFile(path string, flag int, perm fs.FileMode) (*os.File, error)
	Open(path string) (*os.File, error)
	CreateTemp(dir, pattern string) (*os.File, error)
	Remove(path string) error
	Rename(oldPath, newPath string) error
	Chmod(path string, mode fs.FileMode) error
}

// Clock abstracts time acquisition for determinism in tests.
type Clock interface {
	Now() time.Time
}

// CommandRunner executes external tools with captured output.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// Deps groups injectable core dependencies.
type Deps struct {
	FS     FS
	Clock  Clock
	Runner CommandRunner
}

type osFS struct{}

func (osFS) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }
func (osFS) OpenFile(path string, flag int, perm fs.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
func (osFS) Open(path string) (*os.File, error) { return os.Open(path) }
func (osFS) CreateTemp(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}
func (osFS) Remove(path string) error                  { return os.Remove(path) }
func (osFS) Rename(oldPath, newPath string) error      { return os.Rename(oldPath, newPath) }
func (osFS) Chmod(path string, mode fs.FileMode) error { return os.Chmod(path, mode) }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// DefaultDeps returns deps backed by the real filesystem, clock, and
// process execution.
func DefaultDeps() Deps {
	return Deps{
		FS:     osFS{},
		Clock:  systemClock{},
		Runner: NewRunner(),
	}
}

// merge fills unset fields with os-backed defaults.
func (d Deps) merge() Deps {
	base := DefaultDeps()
	if d.FS != nil {
		base.FS = d.FS
	}
	if d.Clock != nil {
		base.Clock = d.Clock
	}
	if d.Runner != nil {
		base.Runner = d.Runner
	}
	return base
}
