// Package di wires the provisioning components for the command layer.
package di

import (
	"slices"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

// Injector is the container handed to modules and handlers.
type Injector = do.Injector

// Module registers providers on an injector.
type Module func(Injector) error

// Runtime builds a fresh injector per invocation from a fixed module list.
type Runtime struct {
	modules []Module
}

// New returns a Runtime that applies modules in order.
func New(modules ...Module) *Runtime {
	return &Runtime{modules: modules}
}

// Invoke runs the base modules, then extra, then handler. The injector is
// shut down when handler returns.
func (r *Runtime) Invoke(handler func(Injector) error, extra ...Module) error {
	injector := do.New()
	defer injector.Shutdown()

	for _, m := range append(slices.Clone(r.modules), extra...) {
		if m == nil {
			continue
		}
		if err := m(injector); err != nil {
			return err
		}
	}
	return handler(injector)
}

// RunEWithRuntime adapts a handler into a cobra RunE.
func RunEWithRuntime(
	rt *Runtime,
	handler func(cmd *cobra.Command, injector Injector) error,
	extra ...Module,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return rt.Invoke(func(i Injector) error {
			return handler(cmd, i)
		}, extra...)
	}
}
