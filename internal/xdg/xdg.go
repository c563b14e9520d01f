// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

// Package xdg provides XDG Base Directory paths for Libretto.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "libretto"

// ConfigDir returns the XDG config directory for libretto.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DataDir returns the XDG data directory for libretto.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the path of the default config file. The
// second return reports whether the file exists.
func DefaultConfigFile() (string, bool) {
	path := filepath.Join(ConfigDir(), "config.yaml")
	info, err := os.Stat(path)
	return path, err == nil && !info.IsDir()
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
