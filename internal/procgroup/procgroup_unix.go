//go:build !windows

package procgroup

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Prepare makes cmd the leader of a new process group.
func Prepare(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Terminate asks every process in the group led by pid to exit.
func Terminate(pid int) error {
	return signalGroup(pid, unix.SIGTERM)
}

// Kill force-kills every process in the group led by pid.
func Kill(pid int) error {
	return signalGroup(pid, unix.SIGKILL)
}

func signalGroup(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("procgroup: invalid pid %d", pid)
	}
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		// The leader is gone; its group id is still its pid.
		pgid = pid
	}
	if err := unix.Kill(-pgid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("procgroup: signal %s to group %d: %w", unix.SignalName(sig), pgid, err)
	}
	return nil
}
