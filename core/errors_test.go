package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConfigError
		contains []string
	}{
		{
			name:     "error with action",
			err:      &ConfigError{Code: "TEST", Message: "Test message", Action: "Take this action"},
			contains: []string{"Test message", "Take this action"},
		},
		{
			name:     "error without action",
			err:      &ConfigError{Code: "TEST", Message: "Test message only"},
			contains: []string{"Test message only"},
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

func TestConfigErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConfigError
		code     string
		contains string
	}{
		{"missing", ErrMissingConfig("IRIMAGER_SDK_PATH"), ErrCodeMissingConfig, "IRIMAGER_SDK_PATH"},
		{"invalid value", ErrInvalidValue("IRIMAGER_TCP_PORT", "0", "a port"), ErrCodeInvalidValue, "'0'"},
		{"config file", ErrConfigFile("cfg.yaml", errors.New("boom")), ErrCodeConfigFile, "cfg.yaml"},
		{"sdk not found", ErrSDKNotFound("/opt/libirimager.so"), ErrCodeSDKNotFound, "/opt/libirimager.so"},
		{"palette", ErrInvalidPalette("sepia"), ErrCodeInvalidPalette, "sepia"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("Error() = %q, should contain %q", tt.err.Error(), tt.contains)
			}
			if tt.err.Action == "" {
				t.Error("Action should not be empty")
			}
		})
	}
}

func TestIsConfigError(t *testing.T) {
	wrapped := fmt.Errorf("startup: %w", ErrMissingConfig("X"))

	if ce, ok := IsConfigError(wrapped); !ok || ce.Code != ErrCodeMissingConfig {
		t.Errorf("IsConfigError(wrapped) = %v, %v", ce, ok)
	}
	if _, ok := IsConfigError(errors.New("plain")); ok {
		t.Error("IsConfigError(plain) should be false")
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(ErrInvalidPalette("x")); got != ErrCodeInvalidPalette {
		t.Errorf("GetErrorCode() = %q", got)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode(plain) = %q, want empty", got)
	}
}
