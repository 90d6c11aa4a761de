package irimager

import (
	"errors"
	"strings"
	"testing"
)

func TestSentinelsAreDistinct(t *testing.T) {
	all := []error{
		ErrLoad, ErrConnection, ErrQuery, ErrAcquisition, ErrConfiguration,
		ErrTeardown, ErrDaemon, ErrRecoverable, ErrFatal, ErrHostNotFound,
		ErrInvalidSize, ErrInvalidPalette, ErrInvalidShutterMode, ErrClosed, ErrNotBuilt,
	}
	for i, a := range all {
		if !strings.HasPrefix(a.Error(), "irimager: ") {
			t.Errorf("sentinel %q lacks package prefix", a)
		}
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "with message",
			err:      newError(opTCPInit, ErrConnection, -1, "host not found"),
			contains: []string{"irimager", "tcp_init", "host not found", "code: -1"},
		},
		{
			name:     "without message",
			err:      &Error{Op: opTerminate, Code: 3, Kind: ErrTeardown},
			contains: []string{"terminate", "failed", "code: 3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Error() = %q, should contain %q", got, want)
				}
			}
		})
	}
}

func TestError_UnwrapSeverity(t *testing.T) {
	tests := []struct {
		code        int32
		recoverable bool
		fatal       bool
	}{
		{-1, true, false},
		{-2, false, true},
		{-7, false, false},
	}

	for _, tt := range tests {
		err := check(opThermalImage, ErrAcquisition, tt.code)
		if !errors.Is(err, ErrAcquisition) {
			t.Errorf("code %d: expected ErrAcquisition", tt.code)
		}
		if got := IsRecoverable(err); got != tt.recoverable {
			t.Errorf("code %d: IsRecoverable = %v, want %v", tt.code, got, tt.recoverable)
		}
		if got := IsFatal(err); got != tt.fatal {
			t.Errorf("code %d: IsFatal = %v, want %v", tt.code, got, tt.fatal)
		}
		code, ok := CodeOf(err)
		if !ok || code != Code(tt.code) {
			t.Errorf("CodeOf = %v, %v; want %d", code, ok, tt.code)
		}
	}
}

func TestCheck_SuccessIsNil(t *testing.T) {
	if err := check(opSetPalette, ErrConfiguration, 0); err != nil {
		t.Errorf("check(0) = %v, want nil", err)
	}
}

func TestCodeOf_ForeignError(t *testing.T) {
	if _, ok := CodeOf(errors.New("other")); ok {
		t.Error("CodeOf should not find a code in a plain error")
	}
}

func TestCode_String(t *testing.T) {
	if CodeFatal.String() != "fatal" || CodeError.String() != "error" || CodeOK.String() != "ok" {
		t.Error("unexpected names for documented codes")
	}
	if got := Code(5).String(); got != "code(5)" {
		t.Errorf("Code(5).String() = %q", got)
	}
}
