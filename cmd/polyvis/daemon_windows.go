//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// setDaemonSysProcAttr puts the child in its own process group so it
// is not killed with the console.
func setDaemonSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
