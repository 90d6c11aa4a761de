package core

import (
	"context"
	"errors"

	"go_irimager/irimager"
)

// Exit codes for the application.
// These follow sysexits.h where one fits and Unix signal conventions
// (128 + signal number) otherwise.
const (
	// ExitCodeSuccess indicates clean shutdown (exit code 0)
	ExitCodeSuccess = 0

	// ExitCodeError indicates an unclassified error (exit code 1)
	ExitCodeError = 1

	// ExitCodeCameraUnavailable indicates the SDK could not be loaded or the
	// camera could not be reached (EX_UNAVAILABLE)
	ExitCodeCameraUnavailable = 69

	// ExitCodeConfig indicates invalid configuration (EX_CONFIG)
	ExitCodeConfig = 78

	// ExitCodeSIGINT indicates termination due to SIGINT (Ctrl+C)
	ExitCodeSIGINT = 130

	// ExitCodeSIGTERM indicates termination due to SIGTERM
	ExitCodeSIGTERM = 143
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeCameraUnavailable:
		return "camera unavailable"
	case ExitCodeConfig:
		return "configuration error"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// ExitCodeFor maps an error returned by a command to a process exit code.
// A canceled context means the command was interrupted.
func ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, context.Canceled):
		return ExitCodeSIGINT
	case errors.As(err, new(*ConfigError)):
		return ExitCodeConfig
	case errors.Is(err, irimager.ErrLoad),
		errors.Is(err, irimager.ErrNotBuilt),
		errors.Is(err, irimager.ErrConnection):
		return ExitCodeCameraUnavailable
	default:
		return ExitCodeError
	}
}

// IsSignalExit returns true if the exit code indicates a signal-based termination.
func IsSignalExit(code int) bool {
	return code == ExitCodeSIGINT || code == ExitCodeSIGTERM
}
