// File: stringx.go
// Title: String Utility Functions
// Description: String helpers shared by the command layer: blank checks,
//              whitespace detection for command names and token cutting for
//              argument extraction. Token functions split on Unicode
//              whitespace, including the full-width space U+3000.
// Author: msto63
// Version: v0.2.0
// Created: 2026-09-14
// Modified: 2026-10-01
//
// Change History:
// - 2026-09-14 v0.1.0: Initial implementation with core utilities
// - 2026-10-01 v0.2.0: Added token helpers for command parsing

package stringx

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsBlank returns true if the string is empty or contains only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsNotBlank returns true if the string contains a non-whitespace rune.
func IsNotBlank(s string) bool {
	return !IsBlank(s)
}

// HasWhitespace reports whether s contains any whitespace rune.
func HasWhitespace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}

// FirstNonBlank returns the first argument that is not blank.
func FirstNonBlank(values ...string) string {
	for _, v := range values {
		if !IsBlank(v) {
			return v
		}
	}
	return ""
}

// FromBlankDefault returns defaultValue if s is blank.
func FromBlankDefault(s, defaultValue string) string {
	if IsBlank(s) {
		return defaultValue
	}
	return s
}

// Truncate shortens s to at most maxLen runes, ending with ellipsis when cut.
func Truncate(s string, maxLen int, ellipsis string) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	ellipsisLen := utf8.RuneCountInString(ellipsis)
	if ellipsisLen >= maxLen {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-ellipsisLen]) + ellipsis
}

// Tokens splits s on whitespace runs.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, unicode.IsSpace)
}

// CutFields drops the first n whitespace separated tokens from s and returns
// the remainder with its inner spacing intact and outer whitespace trimmed.
// ok is false if s holds fewer than n tokens.
func CutFields(s string, n int) (rest string, ok bool) {
	rest = strings.TrimLeftFunc(s, unicode.IsSpace)
	for i := 0; i < n; i++ {
		if rest == "" {
			return "", false
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			rest = ""
		} else {
			rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
		}
	}
	return strings.TrimRightFunc(rest, unicode.IsSpace), true
}
