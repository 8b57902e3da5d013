// File: codes.go
// Title: Error Code Definitions
// Description: Defines the error codes used across mBOT. Codes classify
//              registration failures, dispatch misses and outbound API
//              failures so that callers can decide how to react without
//              parsing error messages.
// Author: msto63
// Version: v0.2.0
// Created: 2026-09-14
// Modified: 2026-10-02
//
// Change History:
// - 2026-09-14 v0.1.0: Initial code set
// - 2026-10-02 v0.2.0: Added remote call codes and categories

package error

// Code represents a structured error code for categorizing errors
type Code string

const (
	// Generic codes
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidInput Code = "INVALID_INPUT"

	// Registration (configuration errors, fatal at startup)
	CodeInvalidName      Code = "INVALID_NAME"
	CodeDuplicateCommand Code = "DUPLICATE_COMMAND"
	CodeDuplicateSwitch  Code = "DUPLICATE_SWITCH"
	CodeDuplicatePattern Code = "DUPLICATE_PATTERN"
	CodeRegistryFrozen   Code = "REGISTRY_FROZEN"

	// Dispatch
	CodeDispatchMiss Code = "DISPATCH_MISS"
	CodeNoEvent      Code = "NO_EVENT"

	// Outbound API calls
	CodeRemoteUnreachable Code = "REMOTE_UNREACHABLE"
	CodeRemoteTimeout     Code = "REMOTE_TIMEOUT"
	CodeMalformedResponse Code = "MALFORMED_RESPONSE"

	// Configuration files and environment
	CodeMissingConfig Code = "MISSING_CONFIG"
	CodeInvalidConfig Code = "INVALID_CONFIG"
	CodeStorage       Code = "STORAGE"
)

// String returns the string representation of the error code
func (c Code) String() string {
	return string(c)
}

// IsValid checks if the error code is a known valid code
func (c Code) IsValid() bool {
	switch c {
	case CodeUnknown, CodeInternal, CodeNotFound, CodeInvalidInput,
		CodeInvalidName, CodeDuplicateCommand, CodeDuplicateSwitch, CodeDuplicatePattern, CodeRegistryFrozen,
		CodeDispatchMiss, CodeNoEvent,
		CodeRemoteUnreachable, CodeRemoteTimeout, CodeMalformedResponse,
		CodeMissingConfig, CodeInvalidConfig, CodeStorage:
		return true
	default:
		return false
	}
}

// Category returns the high-level category of the error code
func (c Code) Category() string {
	switch c {
	case CodeInvalidName, CodeDuplicateCommand, CodeDuplicateSwitch, CodeDuplicatePattern, CodeRegistryFrozen,
		CodeMissingConfig, CodeInvalidConfig:
		return "configuration"
	case CodeDispatchMiss, CodeNoEvent:
		return "dispatch"
	case CodeRemoteUnreachable, CodeRemoteTimeout:
		return "remote"
	case CodeMalformedResponse:
		return "response"
	case CodeStorage:
		return "storage"
	default:
		return "generic"
	}
}

// IsConfigurationError reports whether err carries a code of the
// configuration category. These errors abort startup.
func IsConfigurationError(err error) bool {
	return GetCode(err).Category() == "configuration"
}
