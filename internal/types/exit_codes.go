// Package types defines shared application data types.
package types

// ExitCode represents the application's exit codes.
type ExitCode int

const (
	// ExitSuccess - Execution completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGenericError - Unspecified generic error.
	ExitGenericError ExitCode = 1

	// ExitConfigError - Configuration error.
	ExitConfigError ExitCode = 2

	// ExitAuthorizationError - Caller lacks the required role.
	ExitAuthorizationError ExitCode = 3

	// ExitValidationError - Malformed request parameters.
	ExitValidationError ExitCode = 4

	// ExitDumpError - Error while producing a database dump.
	ExitDumpError ExitCode = 5

	// ExitRestoreError - Error while restoring a database dump.
	ExitRestoreError ExitCode = 6

	// ExitCredentialError - Error while writing or auditing credential files.
	ExitCredentialError ExitCode = 7

	// ExitConflictError - Destination artifact already exists.
	ExitConflictError ExitCode = 8

	// ExitServiceError - Error while controlling the database service.
	ExitServiceError ExitCode = 9

	// ExitEncryptionError - Error during dump encryption or decryption.
	ExitEncryptionError ExitCode = 10

	// ExitPanicError - Unhandled panic caught.
	ExitPanicError ExitCode = 11
)

// String returns a human-readable description of the exit code.
func (e ExitCode) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitGenericError:
		return "generic error"
	case ExitConfigError:
		return "configuration error"
	case ExitAuthorizationError:
		return "authorization error"
	case ExitValidationError:
		return "validation error"
	case ExitDumpError:
		return "dump error"
	case ExitRestoreError:
		return "restore error"
	case ExitCredentialError:
		return "credential error"
	case ExitConflictError:
		return "conflict error"
	case ExitServiceError:
		return "service error"
	case ExitEncryptionError:
		return "encryption error"
	case ExitPanicError:
		return "panic error"
	default:
		return "unknown error"
	}
}

// Int returns the exit code as an integer.
func (e ExitCode) Int() int {
	return int(e)
}
