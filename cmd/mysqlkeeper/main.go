package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/omvtools/mysqlkeeper/internal/cli"
	"github.com/omvtools/mysqlkeeper/internal/config"
	"github.com/omvtools/mysqlkeeper/internal/input"
	"github.com/omvtools/mysqlkeeper/internal/logging"
	"github.com/omvtools/mysqlkeeper/internal/metrics"
	"github.com/omvtools/mysqlkeeper/internal/mysql"
	"github.com/omvtools/mysqlkeeper/internal/rpc"
	"github.com/omvtools/mysqlkeeper/internal/security"
	"github.com/omvtools/mysqlkeeper/internal/service"
	"github.com/omvtools/mysqlkeeper/internal/storage"
	"github.com/omvtools/mysqlkeeper/internal/tui"
	"github.com/omvtools/mysqlkeeper/internal/types"
	"github.com/omvtools/mysqlkeeper/pkg/utils"
)

func main() {
	os.Exit(run())
}

var closeStdinOnce sync.Once

func run() int {
	bootstrap := logging.New(types.LogLevelInfo, false)

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			bootstrap.Error("PANIC: %v", r)
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, stack)
			os.Exit(types.ExitPanicError.Int())
		}
	}()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tui.SetAbortContext(ctx)

	// Handle SIGINT (Ctrl+C) and SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		bootstrap.Warning("\nReceived signal %v, shutting down...", sig)
		cancel()
		closeStdinOnce.Do(func() {
			if file := os.Stdin; file != nil {
				_ = file.Close()
			}
		})
	}()

	args := cli.Parse()

	if args.ShowVersion {
		cli.ShowVersion()
		return types.ExitSuccess.Int()
	}
	if args.ShowHelp {
		cli.ShowHelp()
		return types.ExitSuccess.Int()
	}

	if err := validateOperationFlags(args); err != nil {
		bootstrap.Error("ERROR: %v", err)
		return types.ExitConfigError.Int()
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		bootstrap.Error("ERROR: %v (%s)", err, args.ConfigPathSource)
		return types.ExitConfigError.Int()
	}

	logLevel := cfg.DebugLevel
	if args.LogLevelSet {
		logLevel = args.LogLevel
	}
	logger := logging.New(logLevel, cfg.UseColor)
	if cfg.LogPath != "" {
		if err := logger.OpenLogFile(cfg.LogPath); err != nil {
			logger.Warning("Unable to open log file %s: %v", cfg.LogPath, err)
		} else {
			defer logger.CloseLogFile()
		}
	}
	logging.SetDefaultLogger(logger)

	result := security.Run(logger, cfg)
	if args.SecurityCheck {
		return reportSecurityResult(logger, result)
	}
	if result.HasErrors() {
		logger.Error("Security preflight failed with %d error(s), aborting. Run --security-check for details.",
			result.ErrorCount())
		return types.ExitCredentialError.Int()
	}

	deps := mysql.DefaultDeps()
	resolver := storage.NewLocalResolver(cfg.SharedFolderRoot)
	controller := service.NewController(logger, cfg, deps.Runner)
	dumper := mysql.NewDumper(logger, cfg, resolver, deps)
	restorer := mysql.NewRestorer(logger, cfg, deps)
	rotator := mysql.NewPasswordRotator(logger, cfg, deps)

	var exporter *metrics.PrometheusExporter
	if cfg.MetricsEnabled {
		exporter = metrics.NewPrometheusExporter(cfg.MetricsPath, logger)
	}

	svc := rpc.NewService(logger, cfg, nil, controller, dumper, restorer, rotator, exporter)
	caller := localCaller()

	switch {
	case args.Apply || args.Enable || args.Disable:
		return finish(logger, runApply(ctx, logger, svc, caller, args), types.ExitServiceError)
	case args.Backup:
		return finish(logger, runDownloadDump(ctx, logger, svc, caller), types.ExitDumpError)
	case args.DumpRef != "":
		return finish(logger, runManagedDump(ctx, logger, svc, caller, args.DumpRef), types.ExitDumpError)
	case args.RestorePath != "":
		return finish(logger, runRestore(ctx, logger, cfg, svc, caller, args), types.ExitRestoreError)
	case args.Decrypt:
		return finish(logger, runDecrypt(ctx, logger, cfg, args), types.ExitEncryptionError)
	case args.ResetPassword:
		return finish(logger, runResetPassword(ctx, logger, cfg, svc, caller), types.ExitCredentialError)
	default:
		return finish(logger, runStatus(ctx, logger, cfg, svc, caller), types.ExitServiceError)
	}
}

// validateOperationFlags rejects flag combinations that select more than
// one operation for a single invocation.
func validateOperationFlags(args *cli.Args) error {
	if args.Enable && args.Disable {
		return errors.New("cannot use --enable and --disable together")
	}

	selected := make([]string, 0, 4)
	if args.Status {
		selected = append(selected, "--status")
	}
	if args.Apply || args.Enable || args.Disable {
		selected = append(selected, "--apply/--enable/--disable")
	}
	if args.Backup {
		selected = append(selected, "--backup")
	}
	if args.DumpRef != "" {
		selected = append(selected, "--dump")
	}
	if args.RestorePath != "" {
		selected = append(selected, "--restore")
	}
	if args.Decrypt {
		selected = append(selected, "--decrypt")
	}
	if args.ResetPassword {
		selected = append(selected, "--reset-password")
	}
	if args.SecurityCheck {
		selected = append(selected, "--security-check")
	}

	if len(selected) > 1 {
		return fmt.Errorf("choose a single operation, got: %v", selected)
	}
	return nil
}

// localCaller builds the caller identity for direct CLI invocations. The
// CLI runs with the administrator role; the username is recorded for
// logging only.
func localCaller() rpc.Caller {
	username := os.Getenv("USER")
	if username == "" {
		username = "root"
	}
	return rpc.Caller{Username: username, Admin: true}
}

func finish(logger *logging.Logger, err error, fallback types.ExitCode) int {
	if err == nil {
		return types.ExitSuccess.Int()
	}
	if input.IsAborted(err) {
		logger.Info("Aborted by user")
		return types.ExitSuccess.Int()
	}
	logger.Error("ERROR: %v", err)
	return exitCodeFor(err, fallback).Int()
}

// exitCodeFor maps known error types onto the exit code taxonomy, falling
// back to the operation's own failure code.
func exitCodeFor(err error, fallback types.ExitCode) types.ExitCode {
	var authErr *rpc.AuthorizationError
	var valErr *rpc.ValidationError
	var staleErr *mysql.StaleCredentialsError

	switch {
	case errors.Is(err, mysql.ErrDumpExists):
		return types.ExitConflictError
	case errors.Is(err, storage.ErrInvalidReference):
		return types.ExitValidationError
	case errors.As(err, &authErr):
		return types.ExitAuthorizationError
	case errors.As(err, &valErr):
		return types.ExitValidationError
	case errors.As(err, &staleErr):
		return types.ExitCredentialError
	default:
		return fallback
	}
}

func reportSecurityResult(logger *logging.Logger, result *security.Result) int {
	for _, issue := range result.Issues {
		if issue.Severity == "error" {
			logger.Error("%s", issue.Message)
		} else {
			logger.Warning("%s", issue.Message)
		}
	}
	if result.HasErrors() {
		logger.Error("Security check failed: %d error(s), %d warning(s)",
			result.ErrorCount(), result.WarningCount())
		return types.ExitCredentialError.Int()
	}
	logger.Info("Security check passed with %d warning(s)", result.WarningCount())
	return types.ExitSuccess.Int()
}

func runStatus(ctx context.Context, logger *logging.Logger, cfg *config.Config, svc *rpc.Service, caller rpc.Caller) error {
	status, err := svc.GetStatus(ctx, caller)
	if err != nil {
		return err
	}
	state := "stopped"
	if status.Running {
		state = "running"
	}
	logger.Info("Service %s is %s", cfg.ServiceName, state)
	logger.Info("Server: %s %s", status.Flavor, status.Version)
	return nil
}

func runApply(ctx context.Context, logger *logging.Logger, svc *rpc.Service, caller rpc.Caller, args *cli.Args) error {
	settings, err := svc.GetSettings(caller)
	if err != nil {
		return err
	}
	if args.Enable {
		settings.Enabled = true
	}
	if args.Disable {
		settings.Enabled = false
	}
	if err := svc.SetSettings(ctx, caller, *settings); err != nil {
		return err
	}
	if settings.Enabled {
		logger.Info("Configuration applied, service enabled and restarted")
	} else {
		logger.Info("Configuration applied, service disabled and stopped")
	}
	return nil
}

func runDownloadDump(ctx context.Context, logger *logging.Logger, svc *rpc.Service, caller rpc.Caller) error {
	result, err := svc.DownloadBackup(ctx, caller)
	if err != nil {
		return err
	}
	logger.Info("Dump %s written to %s", result.Filename, result.Path)
	logger.Info("Remove the file after downloading it")
	return nil
}

func runManagedDump(ctx context.Context, logger *logging.Logger, svc *rpc.Service, caller rpc.Caller, sharedRef string) error {
	artifact, err := svc.DumpToSharedFolder(ctx, caller, sharedRef)
	if err != nil {
		return err
	}
	logger.Info("Managed dump created: %s (%s)", artifact.Path, utils.FormatBytes(artifact.SizeBytes))
	return nil
}

func runResetPassword(ctx context.Context, logger *logging.Logger, cfg *config.Config, svc *rpc.Service, caller rpc.Caller) error {
	if err := ensureInteractiveStdin(); err != nil {
		return err
	}
	password, err := promptNewPassword(ctx)
	if err != nil {
		return err
	}
	if err := svc.ResetPassword(ctx, caller, password); err != nil {
		return err
	}
	logger.Info("Administrative password rotated for user %s", cfg.AdminUser)
	return nil
}
