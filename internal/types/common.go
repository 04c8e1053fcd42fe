package types

import "time"

// ServerFlavor represents the installed database server variant.
type ServerFlavor string

const (
	// FlavorMariaDB - MariaDB server
	FlavorMariaDB ServerFlavor = "mariadb"

	// FlavorMySQL - Oracle MySQL server
	FlavorMySQL ServerFlavor = "mysql"

	// FlavorUnknown - Unknown or undetected variant
	FlavorUnknown ServerFlavor = "unknown"
)

// String returns the string representation of the server flavor.
func (f ServerFlavor) String() string {
	return string(f)
}

// ServerInfo describes the detected database server.
type ServerInfo struct {
	Flavor  ServerFlavor
	Version string
}

// ConsumerKind selects which credential file section a credential block is
// written under. Each kind owns exactly one durable file on disk.
type ConsumerKind string

const (
	// ConsumerAdHoc - credentials for manual operations (download, restore),
	// consumed by the mysql client.
	ConsumerAdHoc ConsumerKind = "mysql"

	// ConsumerScheduledDump - credentials for periodic dump jobs, consumed
	// by mysqldump.
	ConsumerScheduledDump ConsumerKind = "mysqldump"
)

// SectionName returns the ini section header for this consumer kind.
func (k ConsumerKind) SectionName() string {
	return string(k)
}

// DumpArtifact describes a produced database dump file.
type DumpArtifact struct {
	// Full path to the dump file
	Path string

	// Display filename (mysql-<timestamp>.sql)
	Filename string

	// Creation timestamp encoded in the filename
	CreatedAt time.Time

	// File size in bytes (0 when unknown)
	SizeBytes int64

	// Whether the dump is age-encrypted
	Encrypted bool
}

// ManagedDumpReport combines the artifact created by a managed dump run
// with destination-level counters observed during the same run.
type ManagedDumpReport struct {
	Artifact DumpArtifact

	// ManagedDumps is the number of dumps present in the destination
	// directory after the run, retention included.
	ManagedDumps int

	// RemovedByRetention is how many old dumps the retention pass deleted.
	RemovedByRetention int
}

// DownloadResult is handed to the RPC layer, which streams the file to the
// caller and is responsible for eventually deleting it.
type DownloadResult struct {
	ContentType string
	Filename    string
	Path        string
}

// SQLContentType is the content type reported for dump downloads.
const SQLContentType = "application/sql"

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug - Debug logs (maximum detail)
	LogLevelDebug LogLevel = 5

	// LogLevelInfo - General information
	LogLevelInfo LogLevel = 4

	// LogLevelWarning - Warnings
	LogLevelWarning LogLevel = 3

	// LogLevelError - Errors
	LogLevelError LogLevel = 2

	// LogLevelCritical - Critical errors
	LogLevelCritical LogLevel = 1

	// LogLevelNone - No logs
	LogLevelNone LogLevel = 0
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARNING"
	case LogLevelError:
		return "ERROR"
	case LogLevelCritical:
		return "CRITICAL"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}
