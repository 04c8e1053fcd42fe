// Package rpc exposes the management operations to the host control panel.
// The wire transport stays outside this module; the Service here is the
// dispatcher the transport calls into, including authorization and request
// validation.
package rpc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/omvtools/mysqlkeeper/internal/config"
	"github.com/omvtools/mysqlkeeper/internal/environment"
	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/metrics"
	"github.com/omvtools/mysqlkeeper/internal/types"
	"github.com/omvtools/mysqlkeeper/internal/version"
)

// Caller identifies the authenticated control-panel user on whose behalf a
// method runs.
type Caller struct {
	Username string
	Admin    bool
}

// AuthorizationError is returned when the caller may not invoke a method.
type AuthorizationError struct {
	Method   string
	Username string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q is not authorized to call %s", e.Username, e.Method)
}

// ValidationError is returned for malformed request parameters.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Authorizer decides whether a caller may invoke a method.
type Authorizer interface {
	Authorize(caller Caller, method string) error
}

// AdminOnly authorizes administrators and nobody else. Every management
// method touches credentials or the server state, so this is the default.
type AdminOnly struct{}

func (AdminOnly) Authorize(caller Caller, method string) error {
	if !caller.Admin {
		return &AuthorizationError{Method: method, Username: caller.Username}
	}
	return nil
}

// DumpService produces dumps for download or managed storage.
type DumpService interface {
	PrepareDownload(ctx context.Context) (*types.DownloadResult, error)
	DumpToManagedLocation(ctx context.Context, sharedRef string) (*types.ManagedDumpReport, error)
}

// RestoreService replays an uploaded dump.
type RestoreService interface {
	Restore(ctx context.Context, dumpPath, loginPassword string) error
}

// PasswordService rotates the administrative password.
type PasswordService interface {
	Reset(ctx context.Context, newPassword string) error
}

// ServiceController applies the configured service state.
type ServiceController interface {
	Apply(ctx context.Context) error
	IsActive(ctx context.Context) (bool, error)
}

// Settings is the RPC representation of the user-editable configuration.
type Settings struct {
	Enabled      bool     `json:"enable"`
	BindAddress  string   `json:"bindaddress"`
	Port         int      `json:"port"`
	DataDir      string   `json:"datadir"`
	ExtraOptions []string `json:"extraoptions"`
}

// Status is the RPC representation of the current server state.
type Status struct {
	Running bool   `json:"running"`
	Flavor  string `json:"flavor"`
	Version string `json:"version"`
}

// Service dispatches management operations.
type Service struct {
	logger     *logging.Logger
	cfg        *config.Config
	auth       Authorizer
	controller ServiceController
	dumps      DumpService
	restores   RestoreService
	passwords  PasswordService
	exporter   *metrics.PrometheusExporter

	detect func() (*types.ServerInfo, error)
	now    func() time.Time
}

// NewService creates the dispatcher. A nil authorizer defaults to
// AdminOnly; a nil exporter disables metrics export.
func NewService(
	logger *logging.Logger,
	cfg *config.Config,
	auth Authorizer,
	controller ServiceController,
	dumps DumpService,
	restores RestoreService,
	passwords PasswordService,
	exporter *metrics.PrometheusExporter,
) *Service {
	if auth == nil {
		auth = AdminOnly{}
	}
	return &Service{
		logger:     logger,
		cfg:        cfg,
		auth:       auth,
		controller: controller,
		dumps:      dumps,
		restores:   restores,
		passwords:  passwords,
		exporter:   exporter,
		detect:     environment.Detect,
		now:        time.Now,
	}
}

// GetSettings returns the user-editable configuration.
func (s *Service) GetSettings(caller Caller) (*Settings, error) {
	if err := s.auth.Authorize(caller, "GetSettings"); err != nil {
		return nil, err
	}
	return &Settings{
		Enabled:      s.cfg.Enabled,
		BindAddress:  s.cfg.BindAddress,
		Port:         s.cfg.Port,
		DataDir:      s.cfg.DataDir,
		ExtraOptions: append([]string(nil), s.cfg.ExtraOptions...),
	}, nil
}

// SetSettings validates and stores new settings, then applies them to the
// running service.
func (s *Service) SetSettings(ctx context.Context, caller Caller, settings Settings) error {
	if err := s.auth.Authorize(caller, "SetSettings"); err != nil {
		return err
	}
	if settings.Port <= 0 || settings.Port > 65535 {
		return &ValidationError{Field: "port", Reason: "must be between 1 and 65535"}
	}
	if settings.BindAddress == "" {
		return &ValidationError{Field: "bindaddress", Reason: "cannot be empty"}
	}
	if settings.DataDir == "" {
		return &ValidationError{Field: "datadir", Reason: "cannot be empty"}
	}

	s.cfg.Enabled = settings.Enabled
	s.cfg.BindAddress = settings.BindAddress
	s.cfg.Port = settings.Port
	s.cfg.DataDir = settings.DataDir
	s.cfg.ExtraOptions = append([]string(nil), settings.ExtraOptions...)

	return s.controller.Apply(ctx)
}

// GetStatus reports whether the unit runs and which server is installed.
func (s *Service) GetStatus(ctx context.Context, caller Caller) (*Status, error) {
	if err := s.auth.Authorize(caller, "GetStatus"); err != nil {
		return nil, err
	}
	running, err := s.controller.IsActive(ctx)
	if err != nil {
		return nil, err
	}
	status := &Status{Running: running, Flavor: string(types.FlavorUnknown), Version: "unknown"}
	if info, err := s.detect(); err == nil {
		status.Flavor = info.Flavor.String()
		status.Version = info.Version
	}
	return status, nil
}

// DownloadBackup dumps the instance to a temporary file for download. The
// transport streams and then removes the file at the returned path.
func (s *Service) DownloadBackup(ctx context.Context, caller Caller) (*types.DownloadResult, error) {
	if err := s.auth.Authorize(caller, "DownloadBackup"); err != nil {
		return nil, err
	}
	return s.dumps.PrepareDownload(ctx)
}

// DumpToSharedFolder writes a managed dump into the referenced shared
// folder and exports run metrics when enabled.
func (s *Service) DumpToSharedFolder(ctx context.Context, caller Caller, sharedRef string) (*types.DumpArtifact, error) {
	if err := s.auth.Authorize(caller, "DumpToSharedFolder"); err != nil {
		return nil, err
	}
	if sharedRef == "" {
		return nil, &ValidationError{Field: "sharedfolderref", Reason: "cannot be empty"}
	}

	start := s.now()
	report, err := s.dumps.DumpToManagedLocation(ctx, sharedRef)
	s.exportDumpMetrics(start, report, err)
	if err != nil {
		return nil, err
	}
	return &report.Artifact, nil
}

// UploadBackup restores a previously uploaded dump file.
func (s *Service) UploadBackup(ctx context.Context, caller Caller, dumpPath, loginPassword string) error {
	if err := s.auth.Authorize(caller, "UploadBackup"); err != nil {
		return err
	}
	if dumpPath == "" {
		return &ValidationError{Field: "dumpfile", Reason: "cannot be empty"}
	}
	if loginPassword == "" {
		return &ValidationError{Field: "password", Reason: "cannot be empty"}
	}
	return s.restores.Restore(ctx, dumpPath, loginPassword)
}

// ResetPassword rotates the administrative password.
func (s *Service) ResetPassword(ctx context.Context, caller Caller, newPassword string) error {
	if err := s.auth.Authorize(caller, "ResetPassword"); err != nil {
		return err
	}
	if newPassword == "" {
		return &ValidationError{Field: "password", Reason: "cannot be empty"}
	}
	return s.passwords.Reset(ctx, newPassword)
}

func (s *Service) exportDumpMetrics(start time.Time, report *types.ManagedDumpReport, runErr error) {
	if s.exporter == nil || !s.cfg.MetricsEnabled {
		return
	}

	end := s.now()
	m := &metrics.DumpMetrics{
		ToolVersion: version.Version,
		StartTime:   start,
		EndTime:     end,
		Duration:    end.Sub(start),
	}
	if hostname, err := os.Hostname(); err == nil {
		m.Hostname = hostname
	}
	if info, err := s.detect(); err == nil {
		m.ServerFlavor = info.Flavor.String()
		m.ServerVersion = info.Version
	}
	if runErr != nil {
		m.ExitCode = types.ExitDumpError.Int()
		m.ErrorCount = 1
	}
	if report != nil {
		m.DumpSize = report.Artifact.SizeBytes
		m.Encrypted = report.Artifact.Encrypted
		m.ManagedDumps = report.ManagedDumps
		m.RemovedByRetention = report.RemovedByRetention
	}

	if err := s.exporter.Export(m); err != nil {
		s.logger.Warning("Cannot export dump metrics: %v", err)
	}
}
