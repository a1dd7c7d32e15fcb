// Package doctor re-derives provisioning health from live system state and
// applies a bounded set of idempotent repairs.
package doctor

import (
	"fmt"
	"time"

	"github.com/fulmenhq/stigmergylite/pkg/platform"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityIssue   Severity = "issue"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Check names.
const (
	CheckTool       = "tool"
	CheckBunx       = "bunx"
	CheckPath       = "path"
	CheckConfig     = "config"
	CheckConfigDir  = "config-dir"
	CheckPlugins    = "plugins"
	CheckGitIdent   = "git-identity"
	CheckGitBash    = "git-bash"
	CheckVersionMin = "version-minimum"
)

// Finding is one observation made by a check.
type Finding struct {
	Check   string `json:"check" yaml:"check" toml:"check"`
	Tool    string `json:"tool,omitempty" yaml:"tool,omitempty" toml:"tool,omitempty"`
	Message string `json:"message" yaml:"message" toml:"message"`
	Hint    string `json:"hint,omitempty" yaml:"hint,omitempty" toml:"hint,omitempty"`
	// Kind is the provisioning error class, when one applies.
	Kind error `json:"-" yaml:"-" toml:"-"`
}

func (f Finding) String() string {
	if f.Hint == "" {
		return f.Message
	}
	return fmt.Sprintf("%s (%s)", f.Message, f.Hint)
}

// ToolStatus is the presence and version of one tool.
type ToolStatus struct {
	Name         string `json:"name" yaml:"name" toml:"name"`
	Title        string `json:"title" yaml:"title" toml:"title"`
	Required     bool   `json:"required" yaml:"required" toml:"required"`
	Enabled      bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Present      bool   `json:"present" yaml:"present" toml:"present"`
	Path         string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Version      string `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	ProbeError   string `json:"probe_error,omitempty" yaml:"probe_error,omitempty" toml:"probe_error,omitempty"`
	BelowMinimum bool   `json:"below_minimum,omitempty" yaml:"below_minimum,omitempty" toml:"below_minimum,omitempty"`
}

// ConfigStatus describes one tracked configuration file.
type ConfigStatus struct {
	Tool     string   `json:"tool" yaml:"tool" toml:"tool"`
	Path     string   `json:"path" yaml:"path" toml:"path"`
	Format   string   `json:"format" yaml:"format" toml:"format"`
	Exists   bool     `json:"exists" yaml:"exists" toml:"exists"`
	Valid    bool     `json:"valid" yaml:"valid" toml:"valid"`
	Size     int      `json:"size,omitempty" yaml:"size,omitempty" toml:"size,omitempty"`
	Keys     []string `json:"keys,omitempty" yaml:"keys,omitempty" toml:"keys,omitempty"`
	Writable bool     `json:"dir_writable" yaml:"dir_writable" toml:"dir_writable"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

// Report is rebuilt from scratch on every Diagnose call. Findings are only
// ever appended; Healthy tracks whether Issues is empty.
type Report struct {
	Environment  platform.Environment  `json:"environment" yaml:"environment" toml:"environment"`
	Healthy      bool                  `json:"healthy" yaml:"healthy" toml:"healthy"`
	Issues       []Finding             `json:"issues" yaml:"issues" toml:"issues"`
	Warnings     []Finding             `json:"warnings" yaml:"warnings" toml:"warnings"`
	Info         []Finding             `json:"info,omitempty" yaml:"info,omitempty" toml:"info,omitempty"`
	Tools        map[string]ToolStatus `json:"tools" yaml:"tools" toml:"tools"`
	Configs      []ConfigStatus        `json:"configs,omitempty" yaml:"configs,omitempty" toml:"configs,omitempty"`
	ConfigValid  bool                  `json:"config_valid" yaml:"config_valid" toml:"config_valid"`
	PathComplete bool                  `json:"path_complete" yaml:"path_complete" toml:"path_complete"`
	CheckedAt    time.Time             `json:"checked_at" yaml:"checked_at" toml:"checked_at"`
}

// NewReport starts an empty, healthy report.
func NewReport(env platform.Environment, now time.Time) *Report {
	return &Report{
		Environment:  env,
		Healthy:      true,
		Issues:       []Finding{},
		Warnings:     []Finding{},
		Tools:        map[string]ToolStatus{},
		ConfigValid:  true,
		PathComplete: true,
		CheckedAt:    now,
	}
}

// Add appends f under sev.
func (r *Report) Add(sev Severity, f Finding) {
	switch sev {
	case SeverityIssue:
		r.Issues = append(r.Issues, f)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, f)
	default:
		r.Info = append(r.Info, f)
	}
	r.Healthy = len(r.Issues) == 0
}

// Findings returns the findings recorded with sev.
func (r *Report) Findings(sev Severity) []Finding {
	switch sev {
	case SeverityIssue:
		return r.Issues
	case SeverityWarning:
		return r.Warnings
	default:
		return r.Info
	}
}

// Count returns the number of findings with sev.
func (r *Report) Count(sev Severity) int {
	return len(r.Findings(sev))
}

// Find returns the findings for check across every severity.
func (r *Report) Find(check string) []Finding {
	var out []Finding
	for _, group := range [][]Finding{r.Issues, r.Warnings, r.Info} {
		for _, f := range group {
			if f.Check == check {
				out = append(out, f)
			}
		}
	}
	return out
}
