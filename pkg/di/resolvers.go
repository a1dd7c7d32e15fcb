package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/fulmenhq/stigmergylite/internal/catalog"
	"github.com/fulmenhq/stigmergylite/internal/doctor"
	"github.com/fulmenhq/stigmergylite/internal/persist"
	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

func resolve[T any](i Injector, what string) (T, error) {
	v, err := do.Invoke[T](i)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("resolve %s dependency: %w", what, err)
	}
	return v, nil
}

// ResolveSettings retrieves the command-line settings.
func ResolveSettings(i Injector) (Settings, error) { return resolve[Settings](i, "settings") }

// ResolveEnvironment retrieves the probed environment.
func ResolveEnvironment(i Injector) (platform.Environment, error) {
	return resolve[platform.Environment](i, "environment")
}

// ResolveCatalog retrieves the loaded tool catalog.
func ResolveCatalog(i Injector) (*catalog.Catalog, error) { return resolve[*catalog.Catalog](i, "catalog") }

// ResolveOrchestrator retrieves the provisioning orchestrator. Construction
// validates the configuration against the catalog.
func ResolveOrchestrator(i Injector) (*provision.Orchestrator, error) {
	return resolve[*provision.Orchestrator](i, "orchestrator")
}

// ResolveDoctor retrieves the diagnostics and repair engine.
func ResolveDoctor(i Injector) (*doctor.Doctor, error) { return resolve[*doctor.Doctor](i, "doctor") }

// ResolvePersist retrieves the persistence manager.
func ResolvePersist(i Injector) (*persist.Manager, error) { return resolve[*persist.Manager](i, "persist") }

// ResolveSearchPath retrieves the PATH session.
func ResolveSearchPath(i Injector) (*tools.SearchPath, error) {
	return resolve[*tools.SearchPath](i, "search path")
}
