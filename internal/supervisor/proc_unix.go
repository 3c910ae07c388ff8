//go:build unix

package supervisor

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// childProcAttr starts the child in its own process group so a
// supervisor-issued kill reaches both the memory-checker wrapper and
// the EE process it wraps.
func childProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends sig to every process in pid's process group
// (pid was started with Setpgid, so its pgid equals its pid).
func killProcessGroup(pid int, sig syscall.Signal) error {
	return unix.Kill(-pid, sig)
}
