// Package exitcode provides standardized exit codes for stigmergylite
package exitcode

// Exit codes for the stigmergylite CLI
const (
	Success             = 0
	GeneralError        = 1
	ConfigError         = 2
	Unhealthy           = 3
	FileSystemError     = 4
	NetworkError        = 5
	PermissionError     = 6
	TimeoutError        = 7
	UnsupportedTarget   = 8
	RequiredToolMissing = 9
)

// ExitError carries a specific process exit code through cobra's error path.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return String(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// WithCode wraps err so the root command exits with code.
func WithCode(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case Unhealthy:
		return "Environment unhealthy"
	case FileSystemError:
		return "File system error"
	case NetworkError:
		return "Network error"
	case PermissionError:
		return "Permission error"
	case TimeoutError:
		return "Timeout error"
	case UnsupportedTarget:
		return "Unsupported platform"
	case RequiredToolMissing:
		return "Required tool missing"
	default:
		return "Unknown error"
	}
}
