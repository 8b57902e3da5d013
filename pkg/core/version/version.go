// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     version
// Description: Central version management for the bot and its components
// Author:      Mike Stoffels
// Created:     2026-09-21
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// Version constants for mBOT components
const (
	// Platform version
	Platform = "0.2.0"

	// Component versions
	Dispatch = "0.2.0"
	Command  = "0.2.0"
	Service  = "0.2.0"
	APIMgr   = "0.1.0"
	Gateway  = "0.1.0"
	Store    = "0.1.0"
)

// Set at build time with -ldflags "-X github.com/msto63/mBOT/pkg/core/version.Commit=..."
var (
	Commit    = "dev"
	BuildDate = "unknown"
)

// ComponentVersion returns the version for a given component name
func ComponentVersion(name string) string {
	switch name {
	case "dispatch":
		return Dispatch
	case "command":
		return Command
	case "service":
		return Service
	case "apimgr":
		return APIMgr
	case "gateway":
		return Gateway
	case "store":
		return Store
	default:
		return Platform
	}
}

// String returns the one-line version banner
func String() string {
	return fmt.Sprintf("mBOT %s (commit %s, built %s, %s %s/%s)",
		Platform, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
