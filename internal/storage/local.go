package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/types"
)

// LocalResolver maps shared-folder references to directories under a fixed
// root, refusing references that escape it.
type LocalResolver struct {
	root string
}

// NewLocalResolver creates a resolver rooted at root.
func NewLocalResolver(root string) *LocalResolver {
	return &LocalResolver{root: filepath.Clean(root)}
}

// Resolve returns the absolute directory for ref. The directory must
// already exist; this resolver never creates shared folders.
func (r *LocalResolver) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrInvalidReference)
	}

	resolved := filepath.Clean(filepath.Join(r.root, ref))
	if resolved != r.root && !strings.HasPrefix(resolved, r.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes shared folder root", ErrInvalidReference, ref)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidReference, resolved, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidReference, resolved)
	}
	return resolved, nil
}

// ListDumps returns the managed dumps in dir, newest first. Files that do
// not follow the dump naming convention are ignored.
func ListDumps(dir string) ([]types.DumpArtifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot list dump directory %s: %w", dir, err)
	}

	var dumps []types.DumpArtifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		if artifact, ok := ArtifactFor(dir, entry.Name(), size); ok {
			dumps = append(dumps, artifact)
		}
	}

	sort.Slice(dumps, func(i, j int) bool {
		return dumps[i].CreatedAt.After(dumps[j].CreatedAt)
	})
	return dumps, nil
}

// ApplyRetention deletes managed dumps that fall outside the policy and
// returns how many were removed. Deletion failures are logged and skipped;
// retention is maintenance, not a critical path.
func ApplyRetention(logger *logging.Logger, dir string, policy RetentionPolicy, now time.Time) (int, error) {
	if !policy.enabled() {
		return 0, nil
	}

	dumps, err := ListDumps(dir)
	if err != nil {
		return 0, err
	}

	var doomed []types.DumpArtifact
	if policy.MaxAgeDays > 0 {
		cutoff := now.AddDate(0, 0, -policy.MaxAgeDays)
		kept := dumps[:0]
		for _, dump := range dumps {
			if dump.CreatedAt.Before(cutoff) {
				doomed = append(doomed, dump)
			} else {
				kept = append(kept, dump)
			}
		}
		dumps = kept
	}
	if policy.MaxCount > 0 && len(dumps) > policy.MaxCount {
		// dumps are newest first; everything past MaxCount is excess.
		doomed = append(doomed, dumps[policy.MaxCount:]...)
	}

	removed := 0
	for _, dump := range doomed {
		if err := os.Remove(dump.Path); err != nil {
			if logger != nil {
				logger.Warning("Retention: cannot remove %s: %v", dump.Path, err)
			}
			continue
		}
		if logger != nil {
			logger.Debug("Retention: removed %s", dump.Path)
		}
		removed++
	}
	return removed, nil
}
