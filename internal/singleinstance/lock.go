// Package singleinstance keeps two daemons from reading the same keyboard,
// which would run every bound command twice.
package singleinstance

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrAlreadyRunning is returned by TryLock when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

var invalidNameRune = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// runtimeDirFn is a test seam for the lock directory.
var runtimeDirFn = func() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "bindkeys")
	}
	return filepath.Join(os.TempDir(), "bindkeys-"+sanitize(os.Getenv("USER")))
}

// sanitize maps a value onto characters safe in a file name.
func sanitize(value string) string {
	value = strings.Trim(strings.TrimSpace(value), "/")
	if value == "" {
		return "unknown"
	}
	return invalidNameRune.ReplaceAllString(value, "_")
}

// PathFor returns the lock file guarding device.
func PathFor(device string) string {
	return filepath.Join(runtimeDirFn(), sanitize(device)+".lock")
}
