//go:build !unix

package procutil

import (
	"errors"
	"os"
)

// DefaultShell is unused on this platform.
const DefaultShell = ""

// Detacher is unsupported on non-unix targets.
type Detacher struct {
	Shell  string
	Stdout *os.File
	Stderr *os.File
}

// Execute always fails on non-unix targets.
func (d Detacher) Execute(_ string) error {
	return errors.ErrUnsupported
}
