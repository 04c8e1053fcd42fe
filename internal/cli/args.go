// Package cli parses the mysqlkeeper command line.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/omvtools/mysqlkeeper/internal/types"
	"github.com/omvtools/mysqlkeeper/internal/version"
)

const (
	defaultConfigPath   = "/etc/mysqlkeeper/mysqlkeeper.env"
	configSourceDefault = "default path"
	configSourceFlag    = "specified via --config/-c flag"
)

var osExit = os.Exit

// Args holds the parsed command-line arguments
type Args struct {
	ConfigPath       string
	ConfigPathSource string
	LogLevel         types.LogLevel
	LogLevelSet      bool
	ForceCLI         bool
	ShowVersion      bool
	ShowHelp         bool

	Status        bool
	Apply         bool
	Enable        bool
	Disable       bool
	Backup        bool
	DumpRef       string
	RestorePath   string
	Decrypt       bool
	ResetPassword bool
	SecurityCheck bool
}

// Parse parses command-line arguments and returns Args struct
func Parse() *Args {
	args := &Args{}

	configFlag := newStringFlag(defaultConfigPath)

	flag.Var(configFlag, "config", "Path to configuration file")
	flag.Var(configFlag, "c", "Path to configuration file (shorthand)")

	logLevelFlag := newStringFlag("")
	flag.Var(logLevelFlag, "log-level", "Log level (debug|info|warning|error|critical|none)")
	flag.Var(logLevelFlag, "l", "Log level (shorthand)")

	flag.BoolVar(&args.Status, "status", false,
		"Show service state and detected server version")
	flag.BoolVar(&args.Apply, "apply", false,
		"Write the server option file and bring the unit in line with the configuration")
	flag.BoolVar(&args.Enable, "enable", false,
		"Enable the database service in the configuration and apply it")
	flag.BoolVar(&args.Disable, "disable", false,
		"Disable the database service in the configuration and apply it")

	flag.BoolVar(&args.Backup, "backup", false,
		"Dump all databases to a temporary file and print its location")
	flag.StringVar(&args.DumpRef, "dump", "",
		"Dump all databases into the given shared folder reference")
	flag.StringVar(&args.RestorePath, "restore", "",
		"Restore the given dump file (interactive picker when a directory is given)")
	flag.BoolVar(&args.Decrypt, "decrypt", false,
		"Run the decrypt workflow (converts encrypted dumps into plaintext dumps)")
	flag.BoolVar(&args.ResetPassword, "reset-password", false,
		"Rotate the administrative database password")
	flag.BoolVar(&args.SecurityCheck, "security-check", false,
		"Run the security preflight checks and exit")

	flag.BoolVar(&args.ForceCLI, "cli", false,
		"Use CLI prompts instead of TUI for interactive workflows")

	flag.BoolVar(&args.ShowVersion, "version", false,
		"Show version information")
	flag.BoolVar(&args.ShowVersion, "v", false,
		"Show version information (shorthand)")

	flag.BoolVar(&args.ShowHelp, "help", false,
		"Show help message")
	flag.BoolVar(&args.ShowHelp, "h", false,
		"Show help message (shorthand)")

	flag.Usage = func() {
		printHelp(os.Stderr, os.Args[0])
	}

	flag.Parse()

	args.ConfigPath = configFlag.value
	if configFlag.set {
		args.ConfigPathSource = configSourceFlag
	} else {
		args.ConfigPathSource = configSourceDefault
	}

	args.LogLevelSet = logLevelFlag.set
	if logLevelFlag.set {
		args.LogLevel = parseLogLevel(logLevelFlag.value)
	}

	return args
}

// parseLogLevel converts string to LogLevel
func parseLogLevel(s string) types.LogLevel {
	switch s {
	case "debug", "5":
		return types.LogLevelDebug
	case "info", "4":
		return types.LogLevelInfo
	case "warning", "3":
		return types.LogLevelWarning
	case "error", "2":
		return types.LogLevelError
	case "critical", "1":
		return types.LogLevelCritical
	case "none", "0":
		return types.LogLevelNone
	default:
		return types.LogLevelInfo
	}
}

// ShowHelp displays help message and exits
func ShowHelp() {
	printHelp(os.Stderr, os.Args[0])
	osExit(0)
}

// ShowVersion displays version information and exits
func ShowVersion() {
	printVersion(os.Stdout)
	osExit(0)
}

func printHelp(w io.Writer, argv0 string) {
	fmt.Fprintf(w, "Usage: %s [options]\n\n", argv0)
	fmt.Fprintln(w, "mysqlkeeper - MySQL/MariaDB service and dump manager")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Options:")
	flag.PrintDefaults()
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintf(w, "  %s -c /etc/mysqlkeeper/mysqlkeeper.env --status\n", argv0)
	fmt.Fprintf(w, "  %s --dump dumps/nightly\n", argv0)
	fmt.Fprintf(w, "  %s --restore /srv/dumps/mysql-2026-01-01T00:00:00Z.sql\n", argv0)
	fmt.Fprintf(w, "  %s --version\n", argv0)
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, "mysqlkeeper")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	if version.Commit != "" {
		fmt.Fprintf(w, "Commit: %s\n", version.Commit)
	}
	if version.Date != "" {
		fmt.Fprintf(w, "Built: %s\n", version.Date)
	}
}

type stringFlag struct {
	value string
	set   bool
}

func newStringFlag(defaultValue string) *stringFlag {
	return &stringFlag{value: defaultValue}
}

func (s *stringFlag) String() string {
	return s.value
}

func (s *stringFlag) Set(val string) error {
	s.value = val
	s.set = true
	return nil
}
