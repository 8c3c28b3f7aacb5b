//go:build !windows

package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// setupProcessAttributes puts the daemon in its own process group so a
// termination signal sent to -pid reaches the whole process tree.
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// SendTerminationSignal delivers SIGTERM to the daemon's process group.
func SendTerminationSignal(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// Kill force-terminates the daemon's process group with SIGKILL.
func Kill(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// IsRunning reports whether a process with the given PID exists. On Unix
// FindProcess always succeeds, so the real test is signal 0.
func IsRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid PID: %d", pid)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, err
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if err.Error() == "os: process already finished" {
		return false, nil
	}
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false, err
	}
	switch errno {
	case syscall.ESRCH:
		return false, nil
	case syscall.EPERM:
		// Exists, owned by someone else.
		return true, nil
	}
	return false, err
}
