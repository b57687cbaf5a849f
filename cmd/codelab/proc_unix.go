//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProcess starts the daemon in its own session so that it
// survives the terminal that launched it
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
