//go:build !unix

package supervisor

import "syscall"

func childProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

func killProcessGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
