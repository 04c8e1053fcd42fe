// Package service applies the configured database server state: it renders
// the server option file and drives the systemd unit accordingly.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/omvtools/mysqlkeeper/internal/config"
	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/mysql"
)

var titleCaser = cases.Title(language.English)

// Controller renders the option file and controls the database systemd
// unit.
type Controller struct {
	logger *logging.Logger
	cfg    *config.Config
	runner mysql.CommandRunner

	writeFile func(path string, data []byte, perm os.FileMode) error
}

// NewController creates a Controller. A nil runner falls back to real
// process execution.
func NewController(logger *logging.Logger, cfg *config.Config, runner mysql.CommandRunner) *Controller {
	if runner == nil {
		runner = mysql.NewRunner()
	}
	return &Controller{
		logger:    logger,
		cfg:       cfg,
		runner:    runner,
		writeFile: os.WriteFile,
	}
}

// OptionFileContent renders the [mysqld] option file from the configured
// settings. Extra options are appended verbatim at the end of the section.
func (c *Controller) OptionFileContent() string {
	var b strings.Builder
	b.WriteString("# Generated by mysqlkeeper. Do not edit; changes are overwritten.\n")
	b.WriteString("[mysqld]\n")
	fmt.Fprintf(&b, "bind-address = %s\n", c.cfg.BindAddress)
	fmt.Fprintf(&b, "port = %d\n", c.cfg.Port)
	fmt.Fprintf(&b, "datadir = %s\n", c.cfg.DataDir)
	for _, line := range c.cfg.ExtraOptions {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteOptionFile writes the rendered option file to the configured path.
func (c *Controller) WriteOptionFile() error {
	path := c.cfg.OptionFilePath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create option file directory: %w", err)
	}
	if err := c.writeFile(path, []byte(c.OptionFileContent()), 0o644); err != nil {
		return fmt.Errorf("cannot write option file %s: %w", path, err)
	}
	c.logger.Debug("Option file written to %s", path)
	return nil
}

// Apply brings the unit in line with the configuration: option file first,
// then enable and restart when the service is on, disable and stop when it
// is off.
func (c *Controller) Apply(ctx context.Context) error {
	if err := c.WriteOptionFile(); err != nil {
		return err
	}

	if c.cfg.Enabled {
		c.logger.Step("Enabling and restarting %s", c.cfg.ServiceName)
		if err := c.systemctl(ctx, "enable", c.cfg.ServiceName); err != nil {
			return err
		}
		return c.systemctl(ctx, "restart", c.cfg.ServiceName)
	}

	c.logger.Step("Disabling and stopping %s", c.cfg.ServiceName)
	if err := c.systemctl(ctx, "disable", c.cfg.ServiceName); err != nil {
		return err
	}
	return c.systemctl(ctx, "stop", c.cfg.ServiceName)
}

// Start starts the unit.
func (c *Controller) Start(ctx context.Context) error {
	return c.systemctl(ctx, "start", c.cfg.ServiceName)
}

// Stop stops the unit.
func (c *Controller) Stop(ctx context.Context) error {
	return c.systemctl(ctx, "stop", c.cfg.ServiceName)
}

// Restart restarts the unit.
func (c *Controller) Restart(ctx context.Context) error {
	return c.systemctl(ctx, "restart", c.cfg.ServiceName)
}

// IsActive reports whether the unit is currently active. A non-zero exit
// from systemctl is-active means inactive, not an error.
func (c *Controller) IsActive(ctx context.Context) (bool, error) {
	output, err := c.runner.Run(ctx, mysql.Command{
		Path: c.cfg.SystemctlBin,
		Args: []string{"is-active", c.cfg.ServiceName},
	})
	state := strings.TrimSpace(string(output))
	if err != nil {
		if _, exited := err.(*mysql.ExecutionError); exited {
			return false, nil
		}
		return false, err
	}
	return state == "active", nil
}

// Status returns a human-readable unit state, such as "Active" or
// "Inactive (dead)".
func (c *Controller) Status(ctx context.Context) (string, error) {
	output, err := c.runner.Run(ctx, mysql.Command{
		Path: c.cfg.SystemctlBin,
		Args: []string{"is-active", c.cfg.ServiceName},
	})
	state := strings.TrimSpace(string(output))
	if err != nil {
		if _, exited := err.(*mysql.ExecutionError); !exited {
			return "", err
		}
		if state == "" {
			state = "unknown"
		}
	}
	return titleCaser.String(state), nil
}

func (c *Controller) systemctl(ctx context.Context, verb, unit string) error {
	output, err := c.runner.Run(ctx, mysql.Command{
		Path: c.cfg.SystemctlBin,
		Args: []string{verb, unit},
	})
	if err != nil {
		return err
	}
	if len(output) > 0 {
		c.logger.Debug("systemctl %s %s: %s", verb, unit, strings.TrimSpace(string(output)))
	}
	return nil
}
