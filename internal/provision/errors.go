package provision

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/stigmergylite/pkg/platform"
)

// Error taxonomy. Only ErrStrategyExhausted on a required tool leaves
// Orchestrator.InstallAll; everything else is folded into results.
var (
	ErrEnvironmentIndeterminate = platform.ErrIndeterminate
	ErrPlatformUnsupported      = errors.New("platform unsupported")
	ErrStrategyExhausted        = errors.New("all install strategies exhausted")
	ErrVerificationFailed       = errors.New("post-install verification failed")
	ErrPersistenceFailed        = errors.New("path persistence failed")
	ErrConfigCorrupted          = errors.New("config file corrupted")
)

// ToolError ties a taxonomy sentinel to the tool it concerns.
type ToolError struct {
	Tool   string
	Kind   error
	Detail string
	// Hint is extra guidance, e.g. how to preinstall a tool in a container image.
	Hint string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Kind }

// IsFatal reports whether err must abort a provisioning run.
func IsFatal(err error, required bool) bool {
	return required && errors.Is(err, ErrStrategyExhausted)
}
