//go:build !windows

package tools

import "os/exec"

// setRawCmdLine is a no-op off Windows; sh -c receives the line as one argument.
func setRawCmdLine(*exec.Cmd, string) {}
