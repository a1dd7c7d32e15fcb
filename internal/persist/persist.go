// Package persist makes PATH additions survive the current process without
// administrator rights: the user-scoped Path variable on Windows, shell
// start-up files everywhere else.
package persist

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/text/encoding/unicode"

	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/safeio"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// Comment precedes every line appended to a start-up file.
const Comment = "# Added by stigmergylite"

// Action is what happened to one store.
type Action string

const (
	ActionCreated  Action = "created"
	ActionAppended Action = "appended"
	ActionUpdated  Action = "updated"
	ActionPresent  Action = "present"
)

// Target is one store touched by a persist call.
type Target struct {
	Store  string `json:"store" yaml:"store" toml:"store"`
	Action Action `json:"action" yaml:"action" toml:"action"`
}

// Report describes one persist call.
type Report struct {
	Dir     string   `json:"dir" yaml:"dir" toml:"dir"`
	Targets []Target `json:"targets" yaml:"targets" toml:"targets"`
}

// Changed reports whether any store was written.
func (r Report) Changed() bool {
	for _, t := range r.Targets {
		if t.Action != ActionPresent {
			return true
		}
	}
	return false
}

// Manager is the only component allowed to make durable PATH writes.
type Manager struct {
	GOOS string
	// FS is rooted at the user's home directory.
	FS      billy.Filesystem
	Getenv  func(string) string
	Runner  tools.Executor
	Timeout time.Duration
}

// New returns a Manager for the real home directory.
func New(goos, home string, runner tools.Executor, timeout time.Duration) *Manager {
	return &Manager{GOOS: goos, FS: osfs.New(home), Getenv: os.Getenv, Runner: runner, Timeout: timeout}
}

// Persist satisfies provision.Persister. The bool is true when a store was
// written, false when the entry was already there.
func (m *Manager) Persist(ctx context.Context, dir string) (bool, error) {
	r, err := m.Apply(ctx, dir)
	return r.Changed(), err
}

// Apply persists dir and reports per-store actions.
func (m *Manager) Apply(ctx context.Context, dir string) (Report, error) {
	if strings.TrimSpace(dir) == "" {
		return Report{}, fmt.Errorf("empty path entry")
	}
	if m.GOOS == "windows" {
		return m.applyWindows(ctx, dir)
	}
	return m.applyShell(dir)
}

// StartupFiles lists the files receiving the export line, relative to home.
func (m *Manager) StartupFiles() []string {
	files := []string{".bashrc"}
	shell := ""
	if m.Getenv != nil {
		shell = m.Getenv("SHELL")
	}
	if m.GOOS == "darwin" || strings.Contains(shell, "zsh") {
		files = append(files, ".zshrc")
	}
	return files
}

// ExportLine is the shell statement that prepends dir to PATH. dir is
// escaped so it stays literal inside the double quotes.
func ExportLine(dir string) string {
	return fmt.Sprintf("export PATH=\"%s:$PATH\"\n", shellEscaper.Replace(dir))
}

var shellEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")

func (m *Manager) applyShell(dir string) (Report, error) {
	rep := Report{Dir: dir}
	for _, name := range m.StartupFiles() {
		action, err := m.applyFile(name, dir)
		if err != nil {
			return rep, fmt.Errorf("failed to update ~/%s: %w", name, err)
		}
		rep.Targets = append(rep.Targets, Target{Store: "~/" + name, Action: action})
		logger.Debug("Persisted PATH entry", logger.String("file", name), logger.String("action", string(action)))
	}
	return rep, nil
}

func (m *Manager) applyFile(name, dir string) (Action, error) {
	if !safeio.Exists(m.FS, name) {
		if err := safeio.WriteFileAtomic(m.FS, name, []byte(ExportLine(dir)), 0o644); err != nil {
			return "", err
		}
		return ActionCreated, nil
	}
	content, err := util.ReadFile(m.FS, name)
	if err != nil {
		return "", err
	}
	if Mentions(string(content), dir) {
		return ActionPresent, nil
	}
	if err := safeio.AppendFile(m.FS, name, []byte("\n"+Comment+"\n"+ExportLine(dir)), 0o644); err != nil {
		return "", err
	}
	return ActionAppended, nil
}

// Mentions reports whether any PATH assignment in a start-up file already
// lists dir as one of its elements.
func Mentions(content, dir string) bool {
	want := strings.TrimSpace(ExportLine(dir))
	dir = strings.TrimSuffix(dir, "/")
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == want {
			return true
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		value, ok := pathValue(line)
		if !ok {
			continue
		}
		for _, elem := range strings.Split(value, ":") {
			if strings.TrimSuffix(elem, "/") == dir {
				return true
			}
		}
	}
	return false
}

// pathValue returns the unquoted right-hand side of a PATH= assignment.
func pathValue(line string) (string, bool) {
	line = strings.TrimPrefix(line, "export ")
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "PATH=")
	if !ok {
		return "", false
	}
	var b strings.Builder
	var quote rune
	escaped := false
	for _, r := range rest {
		switch {
		case escaped:
			if quote == '"' && !strings.ContainsRune("\\\"$`", r) {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		case quote == 0 && (r == ' ' || r == '\t' || r == ';'):
			return b.String(), true
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), true
}

const userPathStore = "HKCU\\Environment\\Path"

func (m *Manager) applyWindows(ctx context.Context, dir string) (Report, error) {
	rep := Report{Dir: dir}
	current, err := m.powershell(ctx, "[Environment]::GetEnvironmentVariable('Path','User')")
	if err != nil {
		return rep, fmt.Errorf("read user Path: %w", err)
	}
	current = strings.TrimSpace(current)

	if tools.NewDetachedSearchPath(current, "windows").Contains(dir) {
		rep.Targets = append(rep.Targets, Target{Store: userPathStore, Action: ActionPresent})
		return rep, nil
	}
	updated := dir
	if current != "" {
		updated = dir + ";" + current
	}
	script := fmt.Sprintf("[Environment]::SetEnvironmentVariable('Path', %s, 'User')", QuotePowerShell(updated))
	if _, err := m.powershell(ctx, script); err != nil {
		return rep, fmt.Errorf("write user Path: %w", err)
	}
	rep.Targets = append(rep.Targets, Target{Store: userPathStore, Action: ActionUpdated})
	return rep, nil
}

func (m *Manager) powershell(ctx context.Context, script string) (string, error) {
	if m.Runner == nil {
		return "", fmt.Errorf("no command runner configured")
	}
	enc, err := EncodePowerShell(script)
	if err != nil {
		return "", err
	}
	res, err := m.Runner.Execute(ctx, tools.ExecuteOptions{
		Tool:    "powershell",
		Args:    []string{"-NoProfile", "-NonInteractive", "-EncodedCommand", enc},
		Timeout: m.Timeout,
	})
	if err != nil {
		return "", err
	}
	if !res.Succeeded() {
		return "", fmt.Errorf("powershell exited %d: %s", res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return string(res.Stdout), nil
}

// QuotePowerShell returns s as a single-quoted PowerShell literal.
func QuotePowerShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// EncodePowerShell encodes a script for -EncodedCommand (base64 of UTF-16LE).
func EncodePowerShell(script string) (string, error) {
	b, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(script)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(b)), nil
}
