// File: error_test.go
// Title: Core Error Tests
// Description: Tests for coded errors, wrapping and classification.
// Author: msto63
// Version: v0.2.0
// Created: 2026-09-14
// Modified: 2026-10-02

package error

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New("boom")

	if err.Error() != "boom" {
		t.Errorf("Error() = %q, want boom", err.Error())
	}
	if err.Code() != CodeUnknown {
		t.Errorf("Code() = %v, want %v", err.Code(), CodeUnknown)
	}
	if err.Severity() != SeverityMedium {
		t.Errorf("Severity() = %v, want medium", err.Severity())
	}
	if err.Timestamp().IsZero() {
		t.Error("Timestamp() should be set")
	}
}

func TestWithCode_DerivesSeverity(t *testing.T) {
	tests := []struct {
		code Code
		want Severity
	}{
		{CodeDuplicateCommand, SeverityCritical},
		{CodeInvalidName, SeverityCritical},
		{CodeMalformedResponse, SeverityHigh},
		{CodeRemoteTimeout, SeverityLow},
		{CodeDispatchMiss, SeverityLow},
		{CodeUnknown, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New("x").WithCode(tt.code)
			if err.Severity() != tt.want {
				t.Errorf("Severity() = %v, want %v", err.Severity(), tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if Wrap(nil, "ctx") != nil {
			t.Error("Wrap(nil) should return nil")
		}
	})

	t.Run("standard error", func(t *testing.T) {
		base := errors.New("disk full")
		err := Wrap(base, "write failed")
		if err.Error() != "write failed: disk full" {
			t.Errorf("Error() = %q", err.Error())
		}
		if !errors.Is(err, base) {
			t.Error("errors.Is should find the cause")
		}
	})

	t.Run("inherits code", func(t *testing.T) {
		inner := New("dup").WithCode(CodeDuplicateSwitch)
		err := Wrap(inner, "register")
		if err.Code() != CodeDuplicateSwitch {
			t.Errorf("Code() = %v, want %v", err.Code(), CodeDuplicateSwitch)
		}
	})
}

func TestIs_MatchesByCode(t *testing.T) {
	sentinel := New("duplicate command").WithCode(CodeDuplicateCommand)
	err := New("command already registered: ping").WithCode(CodeDuplicateCommand)

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should match errors with the same code")
	}
	if errors.Is(New("other").WithCode(CodeInvalidName), sentinel) {
		t.Error("errors.Is should not match a different code")
	}
	if errors.Is(New("a"), New("b")) {
		t.Error("errors without code should not match each other")
	}

	wrapped := fmt.Errorf("startup: %w", err)
	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestHasCodeAndGetCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New("t").WithCode(CodeRemoteTimeout))

	if !HasCode(err, CodeRemoteTimeout) {
		t.Error("HasCode should unwrap")
	}
	if HasCode(err, CodeRemoteUnreachable) {
		t.Error("HasCode matched a wrong code")
	}
	if GetCode(err) != CodeRemoteTimeout {
		t.Errorf("GetCode() = %v", GetCode(err))
	}
	if GetCode(errors.New("plain")) != CodeUnknown {
		t.Error("GetCode of a plain error should be UNKNOWN")
	}
	if GetSeverity(errors.New("plain")) != SeverityMedium {
		t.Error("GetSeverity of a plain error should be medium")
	}
}

func TestIsConfigurationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate command", New("x").WithCode(CodeDuplicateCommand), true},
		{"duplicate switch", New("x").WithCode(CodeDuplicateSwitch), true},
		{"invalid name", New("x").WithCode(CodeInvalidName), true},
		{"duplicate pattern", New("x").WithCode(CodeDuplicatePattern), true},
		{"remote timeout", New("x").WithCode(CodeRemoteTimeout), false},
		{"plain", errors.New("x"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigurationError(tt.err); got != tt.want {
				t.Errorf("IsConfigurationError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCode_Category(t *testing.T) {
	tests := map[Code]string{
		CodeDuplicateCommand:  "configuration",
		CodeDispatchMiss:      "dispatch",
		CodeRemoteUnreachable: "remote",
		CodeMalformedResponse: "response",
		CodeStorage:           "storage",
		CodeInternal:          "generic",
	}
	for code, want := range tests {
		if got := code.Category(); got != want {
			t.Errorf("%s.Category() = %q, want %q", code, got, want)
		}
	}
	if Code("NOPE").IsValid() {
		t.Error("unknown code reported as valid")
	}
}

func TestString_And_MarshalJSON(t *testing.T) {
	err := Wrap(errors.New("eof"), "decode").
		WithCode(CodeMalformedResponse).
		WithOperation("apimgr.Get").
		WithDetail("url", "http://example.test")

	s := err.String()
	for _, want := range []string{"Code: MALFORMED_RESPONSE", "Operation: apimgr.Get", "url=http://example.test", "Cause: eof"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q:\n%s", want, s)
		}
	}

	data, mErr := json.Marshal(err)
	if mErr != nil {
		t.Fatalf("MarshalJSON() error = %v", mErr)
	}
	var decoded map[string]interface{}
	if uErr := json.Unmarshal(data, &decoded); uErr != nil {
		t.Fatalf("invalid JSON: %v", uErr)
	}
	if decoded["code"] != "MALFORMED_RESPONSE" {
		t.Errorf("code = %v", decoded["code"])
	}
	if decoded["severity"] != "high" {
		t.Errorf("severity = %v", decoded["severity"])
	}
}
