package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/omvtools/mysqlkeeper/internal/config"
	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/types"
)

// PasswordRotator changes the administrative user's password on the live
// server and persists the new password for the scheduled-dump consumer.
//
// The two steps are not transactional: once the server has accepted the new
// password, a failure to rewrite the credentials file leaves scheduled
// dumps authenticating with the old password. That state is reported as a
// *StaleCredentialsError rather than hidden behind a generic failure.
type PasswordRotator struct {
	logger *logging.Logger
	cfg    *config.Config
	creds  *CredentialsWriter

	runner CommandRunner
}

// NewPasswordRotator creates a PasswordRotator. Zero-value deps fields fall
// back to os-backed defaults.
func NewPasswordRotator(logger *logging.Logger, cfg *config.Config, deps Deps) *PasswordRotator {
	deps = deps.merge()
	return &PasswordRotator{
		logger: logger,
		cfg:    cfg,
		creds:  NewCredentialsWriter(deps.FS),
		runner: deps.Runner,
	}
}

// Reset ensures the administrative user exists with full privileges and the
// given password, then rewrites the scheduled-dump credentials file. The SQL
// batch is fed to the mysql client on stdin; the password never appears in
// the argument vector or on disk outside the credentials file.
//
// The client authenticates over the local socket as the invoking root user,
// so no current password is needed.
func (p *PasswordRotator) Reset(ctx context.Context, newPassword string) error {
	if err := validateCredentialValue("password", newPassword); err != nil {
		return err
	}

	batch := rotationBatch(p.cfg.AdminUser, newPassword)

	p.logger.Step("Rotating password for %s", p.cfg.AdminUser)
	output, err := p.runner.Run(ctx, Command{
		Path:  p.cfg.MysqlBin,
		Args:  []string{"--batch"},
		Stdin: strings.NewReader(batch),
	})
	if err != nil {
		return err
	}
	if len(output) > 0 {
		p.logger.Debug("mysql output: %s", string(output))
	}

	path := p.cfg.ScheduledCredentialsPath
	if err := p.creds.Write(path, p.cfg.AdminUser, newPassword, types.ConsumerScheduledDump); err != nil {
		return &StaleCredentialsError{Path: path, Err: err}
	}

	p.logger.Info("Password rotated and credentials file %s updated", path)
	return nil
}

// rotationBatch builds the SQL statements for a rotation. ALTER USER runs
// in addition to CREATE USER because CREATE USER IF NOT EXISTS does not
// touch the password of an existing account.
func rotationBatch(user, password string) string {
	quotedUser := quoteSQLString(user)
	quotedPassword := quoteSQLString(password)
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE USER IF NOT EXISTS %s@'localhost' IDENTIFIED BY %s;\n", quotedUser, quotedPassword)
	fmt.Fprintf(&b, "ALTER USER %s@'localhost' IDENTIFIED BY %s;\n", quotedUser, quotedPassword)
	fmt.Fprintf(&b, "GRANT ALL PRIVILEGES ON *.* TO %s@'localhost' WITH GRANT OPTION;\n", quotedUser)
	b.WriteString("FLUSH PRIVILEGES;\n")
	return b.String()
}

// quoteSQLString returns value as a single-quoted SQL string literal with
// backslashes and quotes escaped.
func quoteSQLString(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}
