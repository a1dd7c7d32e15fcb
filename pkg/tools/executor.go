/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"context"
	"io"
	"time"
)

// ExecuteOptions configures one external command invocation. Either Command
// (a shell line run through the platform shell) or Tool with Args is set.
type ExecuteOptions struct {
	// Command is a full shell line, e.g. "sudo apt-get update && sudo apt-get install -y git-all".
	Command string

	// Tool name (e.g., "git", "npm") resolved on the session PATH
	Tool string

	// Args to pass to the tool
	Args []string

	// WorkDir is the working directory (defaults to current directory)
	WorkDir string

	// Stdin to pipe to the tool (optional)
	Stdin io.Reader

	// Env contains additional environment variables
	Env map[string]string

	// Timeout is the hard wall-clock bound. Zero means no bound beyond ctx.
	Timeout time.Duration

	// Stream copies output to the console while still capturing it.
	Stream bool
}

// ExecuteResult contains the output of tool execution
type ExecuteResult struct {
	// ExitCode from the process; -1 when it did not exit normally
	ExitCode int

	// Stdout contains standard output
	Stdout []byte

	// Stderr contains standard error
	Stderr []byte

	Duration time.Duration

	// TimedOut is set when the wall-clock bound expired and the process was killed.
	TimedOut bool

	// Signal names the terminating signal when the process was killed by one.
	Signal string

	// Executor indicates which executor was used
	Executor string
}

// Succeeded reports a normal exit with status zero. Stderr content is irrelevant.
func (r *ExecuteResult) Succeeded() bool {
	return r != nil && !r.TimedOut && r.Signal == "" && r.ExitCode == 0
}

// Executor runs external commands, one at a time.
type Executor interface {
	// Execute runs a command. The error is non-nil only when the process
	// could not be started; exit status, timeout and signals live in the result.
	Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)

	// Name returns the executor name for logging
	Name() string
}
