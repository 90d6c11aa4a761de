package core

import (
	"os"
	"strconv"
	"strings"
)

// GetEnvOrDefault returns the value of an environment variable or a default value.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ParseIntEnv parses an environment variable as an integer.
// Returns the default value if the variable is not set or cannot be parsed.
func ParseIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ParseBoolEnv parses an environment variable as a boolean.
// Accepts case-insensitive "true", "1", "yes", "on" and "false", "0", "no", "off".
// Returns the default value if the variable is not set or cannot be parsed.
func ParseBoolEnv(key string, defaultValue bool) bool {
	if b, ok := parseBool(os.Getenv(key)); ok {
		return b
	}
	return defaultValue
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// The override helpers below replace *dst only when key is set to a
// parseable value, so values loaded from a config file survive unless the
// environment says otherwise.

func overrideString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(value)
	}
}

func overrideInt(dst *int, key string) {
	*dst = ParseIntEnv(key, *dst)
}

func overrideBool(dst *bool, key string) {
	*dst = ParseBoolEnv(key, *dst)
}
