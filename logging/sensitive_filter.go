package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns detect credentials that can reach a log line: the live
// view password hash, HTTP basic auth headers and generic assignments.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$2[abxy]?\$\d{2}\$[./A-Za-z0-9]{53}`), // bcrypt hashes
	regexp.MustCompile(`(?i)(basic\s+[A-Za-z0-9+/=]{8,})`),     // Authorization: Basic ...
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),   // Bearer tokens
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{4,})`),  // password= or password:
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;]{8,})`),    // secret= or secret:
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),     // token= or token:
}

// sensitiveFieldNames are substrings of field or variable names whose values
// are never logged.
var sensitiveFieldNames = []string{
	"IRIMAGER_LIVEVIEW_PASSWORD",
	"PASSWORD",
	"AUTHORIZATION",
	"SECRET",
	"TOKEN",
}

// RedactSensitiveData scans a string value and redacts any detected sensitive data.
//
// Example:
//
//	RedactSensitiveData("hash=$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
//	// "hash=[REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// RedactField redacts a field value if the field name indicates sensitive
// data, otherwise it scans the value itself.
func RedactField(fieldName, fieldValue string) string {
	if IsSensitiveField(fieldName) {
		return RedactedPlaceholder
	}
	return RedactSensitiveData(fieldValue)
}

// IsSensitiveField returns true if the field name indicates sensitive data.
//
//	IsSensitiveField("IRIMAGER_LIVEVIEW_PASSWORD_HASH")  // true
//	IsSensitiveField("palette")                          // false
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, name := range sensitiveFieldNames {
		if strings.Contains(upperName, name) {
			return true
		}
	}
	return false
}

// ContainsSensitiveData returns true if the value contains any sensitive data patterns.
func ContainsSensitiveData(value string) bool {
	if value == "" {
		return false
	}
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
