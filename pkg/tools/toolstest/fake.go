// Package toolstest provides a scripted tools.Executor for tests.
package toolstest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// Handler decides the outcome of one invocation.
type Handler func(opts tools.ExecuteOptions) (*tools.ExecuteResult, error)

// Executor records every invocation and answers from handlers keyed by the
// rendered command line. The longest matching prefix wins; unmatched calls
// fall back to Default, or exit 127 when Default is nil.
type Executor struct {
	mu       sync.Mutex
	handlers map[string]Handler
	Default  Handler
	Calls    []tools.ExecuteOptions
}

func New() *Executor {
	return &Executor{handlers: map[string]Handler{}}
}

// Line renders options the way handlers are keyed.
func Line(opts tools.ExecuteOptions) string {
	if opts.Command != "" {
		return opts.Command
	}
	return strings.TrimSpace(opts.Tool + " " + strings.Join(opts.Args, " "))
}

// On registers h for invocations whose line starts with prefix.
func (e *Executor) On(prefix string, h Handler) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[prefix] = h
	return e
}

// Succeed makes prefix exit 0 with stdout.
func (e *Executor) Succeed(prefix, stdout string) *Executor {
	return e.On(prefix, Exit(0, stdout, ""))
}

// Fail makes prefix exit with code and stderr.
func (e *Executor) Fail(prefix string, code int, stderr string) *Executor {
	return e.On(prefix, Exit(code, "", stderr))
}

// Exit builds a handler with a fixed result.
func Exit(code int, stdout, stderr string) Handler {
	return func(tools.ExecuteOptions) (*tools.ExecuteResult, error) {
		return &tools.ExecuteResult{ExitCode: code, Stdout: []byte(stdout), Stderr: []byte(stderr), Executor: "fake"}, nil
	}
}

// Unstartable makes the process fail to launch.
func Unstartable() Handler {
	return func(opts tools.ExecuteOptions) (*tools.ExecuteResult, error) {
		return nil, errors.New("exec: " + Line(opts) + ": executable file not found")
	}
}

func (e *Executor) Name() string { return "fake" }

func (e *Executor) Execute(_ context.Context, opts tools.ExecuteOptions) (*tools.ExecuteResult, error) {
	e.mu.Lock()
	e.Calls = append(e.Calls, opts)
	line := Line(opts)
	var (
		best    Handler
		bestLen = -1
	)
	for prefix, h := range e.handlers {
		if strings.HasPrefix(line, prefix) && len(prefix) > bestLen {
			best, bestLen = h, len(prefix)
		}
	}
	if best == nil {
		best = e.Default
	}
	e.mu.Unlock()

	if best == nil {
		return &tools.ExecuteResult{ExitCode: 127, Stderr: []byte(line + ": not found"), Executor: "fake"}, nil
	}
	return best(opts)
}

// Lines returns the rendered command lines in call order.
func (e *Executor) Lines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.Calls))
	for i, c := range e.Calls {
		out[i] = Line(c)
	}
	return out
}

// Count returns how many invocations started with prefix.
func (e *Executor) Count(prefix string) int {
	n := 0
	for _, l := range e.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}
