// File: format.go
// Title: Log Output Formatters
// Description: Formatters that turn an Entry into bytes: JSON for log
//              shipping, key=value text for files, and a colored console
//              variant for interactive sessions.
// Author: msto63
// Version: v0.2.0
// Created: 2026-09-14
// Modified: 2026-09-30
//
// Change History:
// - 2026-09-14 v0.1.0: Initial implementation with JSON and text formats
// - 2026-09-30 v0.2.0: Folded logfmt into text, deterministic field order

package log

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format represents the output format for log entries
type Format int

const (
	// FormatText is a human-readable key=value format
	FormatText Format = iota

	// FormatJSON emits one JSON object per line
	FormatJSON

	// FormatConsole is text with ANSI colors
	FormatConsole
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	case FormatConsole:
		return "console"
	default:
		return "unknown"
	}
}

// ParseFormat parses a string into a log format
func ParseFormat(format string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "console", "color":
		return FormatConsole, nil
	default:
		return FormatText, &ParseError{Input: format, Type: "format"}
	}
}

// Formatter defines the interface for log entry formatters
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// JSONFormatter formats log entries as JSON
type JSONFormatter struct {
	TimestampFormat string
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{TimestampFormat: time.RFC3339Nano}
}

// Format formats a log entry as JSON
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+6)
	for k, v := range entry.Fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}

	data["timestamp"] = entry.Timestamp.Format(f.TimestampFormat)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message
	if entry.Logger != "" {
		data["logger"] = entry.Logger
	}
	if entry.RequestID != "" {
		data["request_id"] = entry.RequestID
	}
	if entry.UserID != "" {
		data["user_id"] = entry.UserID
	}
	if entry.Error != nil {
		data["error"] = entry.Error.Error()
	}

	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log entry: %w", err)
	}
	return append(out, '\n'), nil
}

// TextFormatter formats log entries as key=value text
type TextFormatter struct {
	TimestampFormat string
	Colors          bool
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: "2006-01-02 15:04:05.000"}
}

// Format formats a log entry as text
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var b strings.Builder

	b.WriteString(entry.Timestamp.Format(f.TimestampFormat))
	b.WriteByte(' ')
	if f.Colors {
		b.WriteString(entry.Level.Color())
		b.WriteString(entry.Level.ShortString())
		b.WriteString("\033[0m")
	} else {
		b.WriteString(entry.Level.ShortString())
	}
	if entry.Logger != "" {
		b.WriteString(" [")
		b.WriteString(entry.Logger)
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	if entry.RequestID != "" {
		writePair(&b, "request_id", entry.RequestID)
	}
	if entry.UserID != "" {
		writePair(&b, "user_id", entry.UserID)
	}
	for _, k := range entry.Fields.Keys() {
		writePair(&b, k, entry.Fields[k])
	}
	if entry.Error != nil {
		writePair(&b, "error", entry.Error.Error())
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func writePair(b *strings.Builder, key string, value interface{}) {
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	s := fmt.Sprint(value)
	if strings.ContainsAny(s, " \t\"=") {
		s = fmt.Sprintf("%q", s)
	}
	b.WriteString(s)
}

// NewConsoleFormatter creates a colored text formatter
func NewConsoleFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: "15:04:05.000", Colors: true}
}

// GetFormatter returns the formatter for the given format
func GetFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter()
	case FormatConsole:
		return NewConsoleFormatter()
	default:
		return NewTextFormatter()
	}
}
