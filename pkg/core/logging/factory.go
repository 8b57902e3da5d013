// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     logging
// Description: Factory functions for creating foundation loggers from config
// Author:      Mike Stoffels
// Created:     2026-09-20
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"os"

	mbotlog "github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/pkg/core/config"
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Service name
	ServiceName string

	// Log level (trace, debug, info, warn, error)
	Level string

	// Output format: "text", "json" or "console" (default: text)
	Format string

	// Output writer (default: stderr)
	Output io.Writer

	// Additional outputs besides Output
	AdditionalOutputs []io.Writer
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName: serviceName,
		Level:       "info",
		Format:      "text",
	}
}

// NewLogger creates a foundation logger. Unknown levels and formats fall
// back to info and text.
func NewLogger(cfg LoggerConfig) *mbotlog.Logger {
	level, _ := mbotlog.ParseLevel(cfg.Level)
	format, _ := mbotlog.ParseFormat(cfg.Format)

	var output io.Writer = os.Stderr
	if cfg.Output != nil {
		output = cfg.Output
	}
	if len(cfg.AdditionalOutputs) > 0 {
		writers := append([]io.Writer{output}, cfg.AdditionalOutputs...)
		output = io.MultiWriter(writers...)
	}

	return mbotlog.NewWithConfig(mbotlog.Config{
		Level:  level,
		Format: format,
		Output: output,
		Name:   cfg.ServiceName,
	})
}

// FromConfig builds the process logger from the general section. verbose
// forces debug level.
func FromConfig(general config.GeneralConfig, verbose bool, output io.Writer) *mbotlog.Logger {
	cfg := LoggerConfig{
		ServiceName: general.Name,
		Level:       general.LogLevel,
		Format:      general.LogFormat,
		Output:      output,
	}
	if verbose {
		cfg.Level = "debug"
	}
	return NewLogger(cfg)
}

// NewSimpleLogger creates a logger with the default configuration
func NewSimpleLogger(serviceName string) *mbotlog.Logger {
	return NewLogger(DefaultLoggerConfig(serviceName))
}
