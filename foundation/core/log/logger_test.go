// File: logger_test.go
// Title: Logger Tests
// Description: Tests for levels, formatters and derived loggers.
// Author: msto63
// Version: v0.2.0
// Created: 2026-09-14
// Modified: 2026-09-30

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
)

func newBufferLogger(format Format, level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewWithConfig(Config{Level: level, Format: format, Output: buf}), buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"WARNING", LevelWarn, false},
		{" error ", LevelError, false},
		{"", LevelInfo, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(FormatText, LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info entry written below warn level")
	}
	if !strings.Contains(out, "WRN shown") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestLogger_TextFields(t *testing.T) {
	logger, buf := newBufferLogger(FormatText, LevelDebug)

	logger.WithName("dispatch").WithField("component", "router").
		Info("matched", Fields{"key": "weather today", "args": "beijing"})

	out := buf.String()
	for _, want := range []string{"[dispatch]", "component=router", `key="weather today"`, "args=beijing"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Index(out, "args=") > strings.Index(out, "key=") {
		t.Error("fields should be written in sorted order")
	}
}

func TestLogger_JSON(t *testing.T) {
	logger, buf := newBufferLogger(FormatJSON, LevelInfo)

	logger.WithRequestID("ev-1").ErrorWithErr("reply failed", errors.New("closed"), Fields{"platform": "console"})

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	checks := map[string]string{
		"level":      "error",
		"message":    "reply failed",
		"request_id": "ev-1",
		"error":      "closed",
		"platform":   "console",
	}
	for k, want := range checks {
		if decoded[k] != want {
			t.Errorf("%s = %v, want %q", k, decoded[k], want)
		}
	}
}

func TestLogger_WithDoesNotMutateParent(t *testing.T) {
	parent, buf := newBufferLogger(FormatText, LevelInfo)
	_ = parent.WithField("child", true)

	parent.Info("plain")
	if strings.Contains(buf.String(), "child=") {
		t.Error("WithField leaked into the parent logger")
	}
}

func TestLogger_LogError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"critical", mboterror.New("dup").WithCode(mboterror.CodeDuplicateCommand), "ERR"},
		{"medium", mboterror.New("odd"), "WRN"},
		{"low", mboterror.New("slow").WithCode(mboterror.CodeRemoteTimeout), "INF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(FormatText, LevelDebug)
			logger.LogError(tt.err)
			if !strings.Contains(buf.String(), " "+tt.level+" ") {
				t.Errorf("expected level %s in %q", tt.level, buf.String())
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	original := GetDefault()
	defer SetDefault(original)

	logger, buf := newBufferLogger(FormatText, LevelInfo)
	SetDefault(logger)
	SetDefault(nil)

	Info("via default")
	if !strings.Contains(buf.String(), "via default") {
		t.Error("package-level Info did not use the default logger")
	}
}
