package mysql

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"filippo.io/age"

	"github.com/omvtools/mysqlkeeper/internal/config"
	"github.com/omvtools/mysqlkeeper/internal/encryption"
	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/storage"
	"github.com/omvtools/mysqlkeeper/internal/types"
)

// Dumper produces full-instance dumps, either as a temporary file handed to
// the caller for download or as a named artifact in a managed shared folder.
type Dumper struct {
	logger   *logging.Logger
	cfg      *config.Config
	resolver storage.Resolver

	fs     FS
	clock  Clock
	runner CommandRunner
}

// NewDumper creates a Dumper. Zero-value deps fields fall back to os-backed
// defaults.
func NewDumper(logger *logging.Logger, cfg *config.Config, resolver storage.Resolver, deps Deps) *Dumper {
	deps = deps.merge()
	return &Dumper{
		logger:   logger,
		cfg:      cfg,
		resolver: resolver,
		fs:       deps.FS,
		clock:    deps.Clock,
		runner:   deps.Runner,
	}
}

// dumpArgs builds the mysqldump argument vector writing to resultPath.
// Credentials come from the durable ad-hoc option file; they never appear
// on the command line where other users could read them from /proc.
func (d *Dumper) dumpArgs(resultPath string) []string {
	return []string{
		"--defaults-file=" + d.cfg.AdHocCredentialsPath,
		"--all-databases",
		"--single-transaction",
		"--events",
		"--routines",
		"--triggers",
		"--result-file=" + resultPath,
	}
}

func (d *Dumper) runDump(ctx context.Context, resultPath string) error {
	output, err := d.runner.Run(ctx, Command{
		Path: d.cfg.MysqldumpBin,
		Args: d.dumpArgs(resultPath),
	})
	if err != nil {
		return err
	}
	if len(output) > 0 {
		d.logger.Debug("mysqldump output: %s", string(output))
	}
	return nil
}

// PrepareDownload dumps the full instance into a temporary file and returns
// the download descriptor for it. The caller owns the temporary file and
// must remove it once the download completes. A failed dump never leaves a
// partial temporary file behind.
func (d *Dumper) PrepareDownload(ctx context.Context) (*types.DownloadResult, error) {
	createdAt := d.clock.Now().UTC()

	tmp, err := d.fs.CreateTemp("", "mysqlkeeper-dump-*.sql")
	if err != nil {
		return nil, fmt.Errorf("cannot create temporary dump file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = d.fs.Remove(tmpPath)
		return nil, fmt.Errorf("cannot close temporary dump file: %w", err)
	}

	d.logger.Step("Dumping all databases for download")
	if err := d.runDump(ctx, tmpPath); err != nil {
		_ = d.fs.Remove(tmpPath)
		return nil, err
	}

	return &types.DownloadResult{
		ContentType: types.SQLContentType,
		Filename:    storage.DumpFilename(createdAt, false),
		Path:        tmpPath,
	}, nil
}

// DumpToManagedLocation dumps the full instance into the shared folder
// identified by sharedRef and returns the resulting artifact together with
// the destination's dump count and retention removals. An existing
// file at the destination is never overwritten; the operation fails with
// ErrDumpExists and leaves the file untouched. When dump encryption is
// configured the artifact is age-encrypted and the plaintext intermediate
// is removed regardless of outcome.
func (d *Dumper) DumpToManagedLocation(ctx context.Context, sharedRef string) (*types.ManagedDumpReport, error) {
	dir, err := d.resolver.Resolve(sharedRef)
	if err != nil {
		return nil, err
	}

	createdAt := d.clock.Now().UTC()
	encrypt := d.cfg.EncryptDumps
	filename := storage.DumpFilename(createdAt, encrypt)
	dest := filepath.Join(dir, filename)

	if _, err := d.fs.Stat(dest); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDumpExists, dest)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot check destination %s: %w", dest, err)
	}

	var recipients []age.Recipient
	if encrypt {
		recipients, err = d.loadRecipients()
		if err != nil {
			return nil, err
		}
	}

	// Dump into a hidden temp file in the destination directory so the
	// final artifact appears atomically and a failed dump never leaves a
	// partial file under the managed name.
	tmp, err := d.fs.CreateTemp(dir, ".mysqlkeeper-*.sql")
	if err != nil {
		return nil, fmt.Errorf("cannot create temporary dump file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = d.fs.Remove(tmpPath)
		return nil, fmt.Errorf("cannot close temporary dump file: %w", err)
	}
	defer func() {
		_ = d.fs.Remove(tmpPath)
	}()

	d.logger.Step("Dumping all databases to %s", dest)
	if err := d.runDump(ctx, tmpPath); err != nil {
		return nil, err
	}

	if encrypt {
		if err := encryption.EncryptFile(tmpPath, dest, recipients); err != nil {
			return nil, err
		}
	} else if err := d.fs.Rename(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("cannot move dump into place at %s: %w", dest, err)
	}

	var size int64
	if info, err := d.fs.Stat(dest); err == nil {
		size = info.Size()
	}
	artifact, _ := storage.ArtifactFor(dir, filename, size)
	d.logger.Info("Dump written: %s (%d bytes)", dest, size)

	policy := storage.RetentionPolicy{
		MaxCount:   d.cfg.MaxManagedDumps,
		MaxAgeDays: d.cfg.ManagedRetentionDays,
	}
	removed := 0
	if n, err := storage.ApplyRetention(d.logger, dir, policy, createdAt); err != nil {
		d.logger.Warning("Retention pass failed for %s: %v", dir, err)
	} else {
		removed = n
		if n > 0 {
			d.logger.Info("Retention removed %d old dump(s) from %s", n, dir)
		}
	}

	managed := 0
	if remaining, err := storage.ListDumps(dir); err != nil {
		d.logger.Warning("Cannot count managed dumps in %s: %v", dir, err)
	} else {
		managed = len(remaining)
	}

	return &types.ManagedDumpReport{
		Artifact:           artifact,
		ManagedDumps:       managed,
		RemovedByRetention: removed,
	}, nil
}

// loadRecipients collects age recipients from the inline configuration and
// the optional recipient file.
func (d *Dumper) loadRecipients() ([]age.Recipient, error) {
	values := append([]string(nil), d.cfg.AgeRecipients...)
	if d.cfg.AgeRecipientFile != "" {
		fromFile, err := encryption.ReadRecipientFile(d.cfg.AgeRecipientFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read age recipient file: %w", err)
		}
		values = append(values, fromFile...)
	}
	return encryption.ParseRecipients(values)
}
