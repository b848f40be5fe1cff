package warden

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed date/window or a schema violation
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Msg
}

// ConfigurationError reports invalid startup configuration, such as an
// assistant name mapping to an illegal collection name
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// ExternalAPIError reports a failure of the external log source. It carries
// the HTTP status code and any rate-limit headers present on the response.
type ExternalAPIError struct {
	Err        error
	RateLimit  RateLimit
	StatusCode int
}

func (e *ExternalAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("external API error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("external API error: %v", e.Err)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

// DatabaseError reports a store operation failure after retries are exhausted
type DatabaseError struct {
	Err        error
	Op         string
	Collection string
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error in %s on %s: %v", e.Op, e.Collection, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// TransformationError reports a single-record mapping failure
type TransformationError struct {
	Err       error
	Assistant string
	LogID     string
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("failed to transform log %s of assistant %s: %v",
		e.LogID, e.Assistant, e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }

// IsPermanentStoreError determines if a store error is permanent or transient
//
// Permanent errors are configuration or permission issues that won't be fixed
// by retrying. The ClickHouse driver does not expose typed errors for all of
// these, so classification falls back to message patterns.
func IsPermanentStoreError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	permanentPatterns := []string{
		"authentication failed", // Wrong or invalid credentials
		"access_denied",         // Valid credentials but insufficient permissions
		"not enough privileges", // Missing grants on the target table
		"syntax error",          // Malformed statement, retrying cannot help
	}

	for _, pattern := range permanentPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
