package provision

import (
	"time"

	"github.com/fulmenhq/stigmergylite/pkg/platform"
)

// Outcome of one InstallAttempt.
type Outcome string

const (
	OutcomeSucceeded           Outcome = "succeeded"
	OutcomeFailed              Outcome = "failed"
	OutcomeSkippedPrecondition Outcome = "skipped-precondition"
)

// Failure classifies why an attempt failed. Exit codes, timeouts and signals
// are kept apart.
type Failure string

const (
	FailureNone         Failure = ""
	FailureExit         Failure = "exit"
	FailureTimeout      Failure = "timeout"
	FailureSignal       Failure = "signal"
	FailureStart        Failure = "start"
	FailureDownload     Failure = "download"
	FailureVerification Failure = "verification"
)

// Status is the final state of one tool.
type Status string

const (
	StatusAlreadyPresent             Status = "alreadyPresent"
	StatusInstalled                  Status = "installed"
	StatusFailed                     Status = "failed"
	StatusSkippedUnsupportedPlatform Status = "skippedUnsupportedPlatform"
)

// stderrTailBytes bounds the stderr kept per attempt.
const stderrTailBytes = 2048

// InstallAttempt records one execution of one strategy, in execution order.
type InstallAttempt struct {
	Strategy   string        `json:"strategy" yaml:"strategy" toml:"strategy"`
	Outcome    Outcome       `json:"outcome" yaml:"outcome" toml:"outcome"`
	Failure    Failure       `json:"failure,omitempty" yaml:"failure,omitempty" toml:"failure,omitempty"`
	Reason     string        `json:"reason,omitempty" yaml:"reason,omitempty" toml:"reason,omitempty"`
	ExitCode   int           `json:"exit_code" yaml:"exit_code" toml:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty" yaml:"stderr_tail,omitempty" toml:"stderr_tail,omitempty"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed" toml:"elapsed"`
	RetryIndex int           `json:"retry_index" yaml:"retry_index" toml:"retry_index"`
}

// ToolInstallResult is the aggregate outcome for one tool.
type ToolInstallResult struct {
	Tool     string           `json:"tool" yaml:"tool" toml:"tool"`
	Required bool             `json:"required" yaml:"required" toml:"required"`
	Status   Status           `json:"status" yaml:"status" toml:"status"`
	Attempts []InstallAttempt `json:"attempts" yaml:"attempts" toml:"attempts"`
	Path     string           `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Version  string           `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	Warnings []string         `json:"warnings,omitempty" yaml:"warnings,omitempty" toml:"warnings,omitempty"`
	Manual   []string         `json:"manual,omitempty" yaml:"manual,omitempty" toml:"manual,omitempty"`
	Err      error            `json:"-" yaml:"-" toml:"-"`
}

// OK reports whether the tool is usable after the run.
func (r ToolInstallResult) OK() bool {
	return r.Status == StatusAlreadyPresent || r.Status == StatusInstalled
}

func (r *ToolInstallResult) record(a InstallAttempt) {
	r.Attempts = append(r.Attempts, a)
}

func (r *ToolInstallResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Summary folds every per-tool result of one run.
type Summary struct {
	Environment platform.Environment `json:"environment" yaml:"environment" toml:"environment"`
	DryRun      bool                 `json:"dry_run" yaml:"dry_run" toml:"dry_run"`
	Results     []ToolInstallResult  `json:"results" yaml:"results" toml:"results"`
	Elapsed     time.Duration        `json:"elapsed" yaml:"elapsed" toml:"elapsed"`
}

// Count returns how many results ended in status.
func (s *Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Result looks up the result for tool.
func (s *Summary) Result(tool string) (ToolInstallResult, bool) {
	for _, r := range s.Results {
		if r.Tool == tool {
			return r, true
		}
	}
	return ToolInstallResult{}, false
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
