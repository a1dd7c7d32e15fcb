package doctor

import (
	"fmt"
	"path"
	"strings"
)

// DetectShell names the user's interactive shell.
func DetectShell(goos string, getenv func(string) string) string {
	if goos == "windows" {
		if getenv("PSModulePath") != "" {
			return "powershell"
		}
		return "cmd"
	}
	shell := getenv("SHELL")
	if shell == "" {
		return "sh"
	}
	return path.Base(strings.ReplaceAll(shell, `\`, "/"))
}

// ActivationLine is the shell-specific command that puts dir on PATH for the
// current terminal.
func ActivationLine(shell, dir string) string {
	switch shell {
	case "fish":
		return fmt.Sprintf("set -gx PATH %s $PATH", dir)
	case "powershell", "pwsh":
		return fmt.Sprintf("$env:PATH = \"%s;$env:PATH\"", dir)
	case "cmd":
		return fmt.Sprintf("set PATH=%s;%%PATH%%", dir)
	default:
		return fmt.Sprintf("export PATH=\"%s:$PATH\"", dir)
	}
}
