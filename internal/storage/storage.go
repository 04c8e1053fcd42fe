// Package storage resolves managed dump destinations and maintains the
// dump files stored there (listing, retention).
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/omvtools/mysqlkeeper/internal/types"
)

// ErrInvalidReference signals a shared-folder reference that does not
// resolve to a directory inside the configured root.
var ErrInvalidReference = errors.New("invalid shared folder reference")

// Resolver turns an opaque shared-folder reference into an absolute
// directory path. The core treats the result opaquely.
type Resolver interface {
	Resolve(ref string) (string, error)
}

const (
	dumpPrefix      = "mysql-"
	dumpSuffix      = ".sql"
	encryptedSuffix = ".sql.age"
	dumpTimeLayout  = time.RFC3339
)

// DumpFilename returns the canonical dump filename for a creation time.
func DumpFilename(createdAt time.Time, encrypted bool) string {
	name := dumpPrefix + createdAt.UTC().Format(dumpTimeLayout) + dumpSuffix
	if encrypted {
		name += ".age"
	}
	return name
}

// ParseDumpFilename extracts the creation time from a canonical dump
// filename. It returns ok=false for files that do not follow the
// mysql-<timestamp>.sql[.age] convention.
func ParseDumpFilename(name string) (createdAt time.Time, encrypted bool, ok bool) {
	if !strings.HasPrefix(name, dumpPrefix) {
		return time.Time{}, false, false
	}
	rest := strings.TrimPrefix(name, dumpPrefix)

	switch {
	case strings.HasSuffix(rest, encryptedSuffix):
		encrypted = true
		rest = strings.TrimSuffix(rest, encryptedSuffix)
	case strings.HasSuffix(rest, dumpSuffix):
		rest = strings.TrimSuffix(rest, dumpSuffix)
	default:
		return time.Time{}, false, false
	}

	ts, err := time.Parse(dumpTimeLayout, rest)
	if err != nil {
		return time.Time{}, false, false
	}
	return ts, encrypted, true
}

// ArtifactFor builds a DumpArtifact for a file in dir, returning ok=false
// for non-dump files.
func ArtifactFor(dir, name string, size int64) (types.DumpArtifact, bool) {
	createdAt, encrypted, ok := ParseDumpFilename(name)
	if !ok {
		return types.DumpArtifact{}, false
	}
	return types.DumpArtifact{
		Path:      dir + "/" + name,
		Filename:  name,
		CreatedAt: createdAt,
		SizeBytes: size,
		Encrypted: encrypted,
	}, true
}

// RetentionPolicy bounds how many managed dumps are kept.
type RetentionPolicy struct {
	// MaxCount keeps at most this many dumps (0 = unlimited).
	MaxCount int

	// MaxAgeDays removes dumps older than this many days (0 = disabled).
	MaxAgeDays int
}

func (p RetentionPolicy) enabled() bool {
	return p.MaxCount > 0 || p.MaxAgeDays > 0
}

func (p RetentionPolicy) String() string {
	if !p.enabled() {
		return "disabled"
	}
	return fmt.Sprintf("max_count=%d max_age_days=%d", p.MaxCount, p.MaxAgeDays)
}
