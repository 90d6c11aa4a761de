package irimager

import (
	"errors"
	"fmt"
)

// Sentinel errors for binding operations.
// An *Error unwraps to exactly one operation-class sentinel and, when the
// native code carries one, a severity sentinel.
var (
	// Operation classes
	ErrLoad          = errors.New("irimager: failed to load native library")
	ErrConnection    = errors.New("irimager: connection failed")
	ErrQuery         = errors.New("irimager: size query failed")
	ErrAcquisition   = errors.New("irimager: frame acquisition failed")
	ErrConfiguration = errors.New("irimager: configuration call failed")
	ErrTeardown      = errors.New("irimager: terminate failed")
	ErrDaemon        = errors.New("irimager: daemon control failed")

	// Severity, derived from the native code
	ErrRecoverable  = errors.New("irimager: recoverable error")
	ErrFatal        = errors.New("irimager: fatal error")
	ErrHostNotFound = errors.New("irimager: host not found")

	// Argument and lifecycle errors raised before any native call
	ErrInvalidSize        = errors.New("irimager: invalid image size")
	ErrInvalidPalette     = errors.New("irimager: invalid palette id")
	ErrInvalidShutterMode = errors.New("irimager: invalid shutter mode")
	ErrClosed             = errors.New("irimager: library is closed")
	ErrNotBuilt           = errors.New("irimager: native loading not supported on this platform")
)

// Code is a raw status returned by an evo_irimager_* entry point.
type Code int32

// Status codes documented by the SDK header.
const (
	CodeOK    Code = 0
	CodeError Code = -1
	CodeFatal Code = -2
)

// String returns a short name for known codes.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeError:
		return "error"
	case CodeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("code(%d)", int32(c))
	}
}

// Error is returned when a native call reports a non-zero status.
type Error struct {
	// Op is the native entry point without the evo_irimager_ prefix.
	Op string
	// Code is the raw status returned by the SDK.
	Code Code
	// Kind is the operation-class sentinel (ErrConnection, ErrAcquisition, ...).
	Kind error
	// Message is a human-readable explanation of the code for this operation.
	Message string

	extra []error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("irimager %s: %s (code: %d)", e.Op, e.Message, int32(e.Code))
	}
	return fmt.Sprintf("irimager %s: failed (code: %d)", e.Op, int32(e.Code))
}

// Unwrap exposes the kind sentinel, the severity sentinel and any
// operation-specific sentinels to errors.Is.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2+len(e.extra))
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	switch e.Code {
	case CodeError:
		errs = append(errs, ErrRecoverable)
	case CodeFatal:
		errs = append(errs, ErrFatal)
	}
	return append(errs, e.extra...)
}

// Fatal reports whether the SDK flagged the failure as fatal (-2).
func (e *Error) Fatal() bool {
	return e.Code == CodeFatal
}

// newError builds an *Error for a failed native call. extra sentinels are
// added to the Unwrap chain.
func newError(op string, kind error, code int32, message string, extra ...error) *Error {
	return &Error{
		Op:      op,
		Code:    Code(code),
		Kind:    kind,
		Message: message,
		extra:   extra,
	}
}

// check converts a native status into an error, or nil on success.
func check(op string, kind error, code int32) error {
	if code == int32(CodeOK) {
		return nil
	}
	return newError(op, kind, code, describe(op, Code(code)))
}

// describe returns the header documentation for a code where there is one.
func describe(op string, code Code) string {
	switch {
	case op == opTCPInit && code == CodeError:
		return "host not found (wrong IP or daemon not running)"
	case code == CodeFatal:
		return "fatal error"
	case code == CodeError && (op == opThermalSize || op == opPaletteSize):
		return "camera not initialized"
	case code == CodeError:
		return "error"
	default:
		return "unexpected status"
	}
}

// IsFatal reports whether err is a native error flagged fatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// IsRecoverable reports whether err is a native error the caller may retry.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// CodeOf extracts the raw native code from err. ok is false when err does
// not come from a native call.
func CodeOf(err error) (Code, bool) {
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.Code, true
	}
	return 0, false
}
