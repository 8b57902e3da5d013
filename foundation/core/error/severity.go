// File: severity.go
// Title: Error Severity Levels
// Description: Severity levels used to pick log levels for errors.
// Author: msto63
// Version: v0.2.0
// Created: 2026-09-14
// Modified: 2026-10-02

package error

// Severity represents the severity level of an error
type Severity int

const (
	// SeverityLow is a recoverable runtime condition answered to the user
	SeverityLow Severity = iota

	// SeverityMedium affects one invocation but not the process
	SeverityMedium

	// SeverityHigh is a defect that has to be surfaced to the operator
	SeverityHigh

	// SeverityCritical prevents the bot from starting
	SeverityCritical
)

// String returns the string representation of the severity level
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ShouldAlert returns true if this severity level should trigger alerts
func (s Severity) ShouldAlert() bool {
	return s >= SeverityHigh
}

// GetSeverityFromCode determines appropriate severity level based on error code
func GetSeverityFromCode(code Code) Severity {
	switch code {
	case CodeInvalidName, CodeDuplicateCommand, CodeDuplicateSwitch, CodeDuplicatePattern,
		CodeRegistryFrozen, CodeMissingConfig, CodeInvalidConfig:
		return SeverityCritical
	case CodeMalformedResponse, CodeInternal, CodeStorage:
		return SeverityHigh
	case CodeDispatchMiss, CodeRemoteUnreachable, CodeRemoteTimeout, CodeInvalidInput, CodeNotFound:
		return SeverityLow
	default:
		return SeverityMedium
	}
}
