//go:build windows

package tools

import (
	"os/exec"
	"syscall"
)

// setRawCmdLine bypasses Go's argv quoting, which escapes inner quotes as \"
// and cmd.exe does not undo that.
func setRawCmdLine(cmd *exec.Cmd, line string) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: line}
}
