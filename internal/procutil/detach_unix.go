//go:build unix

package procutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// DefaultShell runs commands when Detacher.Shell is empty.
const DefaultShell = "/bin/sh"

// detachScript is run by the intermediate shell. "$0" is the shell and "$1"
// the user command; passing them as arguments avoids any quoting of the
// command text. The trailing & backgrounds the grandchild so the
// intermediate exits immediately.
const detachScript = `"$0" -c "$1" &`

// Detacher runs commands through a shell, detached from the caller.
// The zero value uses DefaultShell and discards command output.
type Detacher struct {
	Shell string
	// Stdout and Stderr are inherited by the command. They must be files:
	// any other writer would make Go copy through a pipe and wait for the
	// grandchild to close it.
	Stdout *os.File
	Stderr *os.File
}

// Execute starts command detached and returns once the intermediate shell
// has exited. It does not report the command's own exit status.
func (d Detacher) Execute(command string) error {
	if command == "" {
		return errors.New("procutil: empty command")
	}
	shell := d.Shell
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.Command(shell, "-c", detachScript, shell, command)
	// Own session: the command must not receive signals sent to the
	// daemon's process group (Ctrl+C on the terminal running it).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if d.Stdout != nil {
		cmd.Stdout = d.Stdout
	}
	if d.Stderr != nil {
		cmd.Stderr = d.Stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("procutil: detach %q: %w", command, err)
	}
	slog.Debug("[DEBUG-EXEC] command detached", "command", command, "intermediatePid", cmd.ProcessState.Pid())
	return nil
}
