package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingConfig  = "MISSING_CONFIG"
	ErrCodeInvalidValue   = "INVALID_VALUE"
	ErrCodeConfigFile     = "CONFIG_FILE"
	ErrCodeSDKNotFound    = "SDK_NOT_FOUND"
	ErrCodeInvalidPalette = "INVALID_PALETTE"
)

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file or config file", varName),
	}
}

// ErrInvalidValue returns an error for a value outside its accepted range
func ErrInvalidValue(varName, value, expected string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s '%s'", varName, value),
		Action:  fmt.Sprintf("Set %s to %s", varName, expected),
	}
}

// ErrConfigFile returns an error for an unreadable or malformed YAML file
func ErrConfigFile(path string, reason error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFile,
		Message: fmt.Sprintf("Cannot load config file %s: %v", path, reason),
		Action:  "Check the file path and YAML syntax",
	}
}

// ErrSDKNotFound returns an error when the native library path does not exist
func ErrSDKNotFound(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeSDKNotFound,
		Message: fmt.Sprintf("IR imager SDK library not found: %s", path),
		Action:  "Set IRIMAGER_SDK_PATH to libirimager.so (Linux) or libirimager.dll (Windows)",
	}
}

// ErrInvalidPalette returns an error for an unknown palette name or id
func ErrInvalidPalette(value string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidPalette,
		Message: fmt.Sprintf("Unknown palette '%s'", value),
		Action:  "Run 'irimager palettes' to list valid names, or use an id from 1 to 11",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
