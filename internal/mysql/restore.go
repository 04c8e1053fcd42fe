package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/omvtools/mysqlkeeper/internal/config"
	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/types"
)

// Restorer replays a plain SQL dump into the running server.
type Restorer struct {
	logger *logging.Logger
	cfg    *config.Config
	creds  *CredentialsWriter

	fs     FS
	runner CommandRunner
}

// NewRestorer creates a Restorer. Zero-value deps fields fall back to
// os-backed defaults.
func NewRestorer(logger *logging.Logger, cfg *config.Config, deps Deps) *Restorer {
	deps = deps.merge()
	return &Restorer{
		logger: logger,
		cfg:    cfg,
		creds:  NewCredentialsWriter(deps.FS),
		fs:     deps.FS,
		runner: deps.Runner,
	}
}

// Restore feeds the dump at dumpPath into the mysql client, authenticating
// with a temporary ad-hoc credentials file for the login user. The
// credentials file is removed after the run whether or not the restore
// succeeded. Encrypted dumps must be decrypted before calling Restore.
func (r *Restorer) Restore(ctx context.Context, dumpPath, loginPassword string) (err error) {
	if strings.HasSuffix(dumpPath, ".age") {
		return fmt.Errorf("%s is encrypted; decrypt it before restoring", dumpPath)
	}
	if _, statErr := r.fs.Stat(dumpPath); statErr != nil {
		return fmt.Errorf("cannot read dump file %s: %w", dumpPath, statErr)
	}

	credsPath := r.cfg.AdHocCredentialsPath
	if writeErr := r.creds.Write(credsPath, r.cfg.LoginUser, loginPassword, types.ConsumerAdHoc); writeErr != nil {
		return writeErr
	}
	// The temporary credentials must not outlive the restore, success or
	// failure.
	defer func() {
		if rmErr := r.creds.Remove(credsPath); rmErr != nil {
			r.logger.Error("Cannot remove temporary credentials file %s: %v", credsPath, rmErr)
			if err == nil {
				err = rmErr
			}
		}
	}()

	r.logger.Step("Restoring dump %s", dumpPath)
	output, runErr := r.runner.Run(ctx, Command{
		Path:      r.cfg.MysqlBin,
		Args:      []string{"--defaults-file=" + credsPath},
		StdinPath: dumpPath,
	})
	if runErr != nil {
		return runErr
	}
	if len(output) > 0 {
		r.logger.Debug("mysql output: %s", string(output))
	}

	r.logger.Info("Restore of %s completed", dumpPath)
	return nil
}
