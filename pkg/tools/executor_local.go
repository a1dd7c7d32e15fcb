/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fulmenhq/stigmergylite/pkg/logger"
)

// waitDelay bounds how long we wait for output pipes after a kill.
const waitDelay = 5 * time.Second

// LocalExecutor runs commands on the local system against a SearchPath session.
type LocalExecutor struct {
	path   *SearchPath
	stdout io.Writer
	stderr io.Writer
}

// NewLocalExecutor creates a new LocalExecutor
func NewLocalExecutor(path *SearchPath) *LocalExecutor {
	return &LocalExecutor{path: path, stdout: os.Stdout, stderr: os.Stderr}
}

// Name returns the executor name
func (e *LocalExecutor) Name() string {
	return "local"
}

// SetConsole redirects streamed output, mainly for tests.
func (e *LocalExecutor) SetConsole(stdout, stderr io.Writer) {
	e.stdout, e.stderr = stdout, stderr
}

// Execute runs the command locally
func (e *LocalExecutor) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	name, args, err := e.argv(opts)
	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// #nosec G204 - commands come from the embedded catalog or explicit user input
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	if opts.Command != "" && e.goos() == "windows" {
		setRawCmdLine(cmd, WindowsCmdLine(opts.Command))
	}

	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	// Set environment; the session PATH wins over the inherited one.
	cmd.Env = os.Environ()
	if e.path != nil {
		cmd.Env = append(cmd.Env, "PATH="+e.path.String())
	}
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr bytes.Buffer
	if opts.Stream {
		cmd.Stdout = io.MultiWriter(&stdout, e.stdout)
		cmd.Stderr = io.MultiWriter(&stderr, e.stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	logger.Debug("executing command", logger.String("command", describe(opts)), logger.Duration("timeout", opts.Timeout))
	start := time.Now()
	err = cmd.Run()

	result := &ExecuteResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
		Executor: e.Name(),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if result.ExitCode == -1 {
				result.Signal = signalName(exitErr.ProcessState)
			}
			// Exit status is data, not an error; the caller inspects the result.
			return result, nil
		}
		return nil, fmt.Errorf("failed to execute %s: %w", describe(opts), err)
	}

	return result, nil
}

func (e *LocalExecutor) argv(opts ExecuteOptions) (string, []string, error) {
	if opts.Command != "" {
		if e.goos() == "windows" {
			return "cmd", []string{"/S", "/C", opts.Command}, nil
		}
		return "sh", []string{"-c", opts.Command}, nil
	}
	if opts.Tool == "" {
		return "", nil, errors.New("no command or tool given")
	}
	if e.path == nil {
		return opts.Tool, opts.Args, nil
	}
	resolved, ok := e.path.Lookup(opts.Tool)
	if !ok {
		return "", nil, fmt.Errorf("tool %s not found in PATH", opts.Tool)
	}
	return resolved, opts.Args, nil
}

func (e *LocalExecutor) goos() string {
	if e.path != nil {
		return e.path.GOOS()
	}
	return "linux"
}

// WindowsCmdLine is the verbatim command line handed to cmd.exe for a shell
// line. With /S, cmd strips only the outer quotes and keeps the rest as typed.
func WindowsCmdLine(line string) string {
	return `cmd /S /C "` + line + `"`
}

func describe(opts ExecuteOptions) string {
	if opts.Command != "" {
		return opts.Command
	}
	return strings.TrimSpace(opts.Tool + " " + strings.Join(opts.Args, " "))
}

func signalName(state *os.ProcessState) string {
	if state == nil {
		return "unknown"
	}
	s := state.String()
	if rest, ok := strings.CutPrefix(s, "signal: "); ok {
		return rest
	}
	return s
}
