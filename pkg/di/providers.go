package di

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/fulmenhq/stigmergylite/internal/catalog"
	"github.com/fulmenhq/stigmergylite/internal/doctor"
	"github.com/fulmenhq/stigmergylite/internal/gitsetup"
	"github.com/fulmenhq/stigmergylite/internal/persist"
	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// Settings carries what the command line decided. It must be supplied with
// WithSettings before anything else resolves.
type Settings struct {
	Config *config.Config
	// Interactive is true when a person can answer an elevation prompt.
	Interactive bool
	// Stream shows installer output on the console.
	Stream bool
	// Context bounds work done while components resolve, such as the
	// privilege probe. Nil means context.Background.
	Context context.Context
}

func (s Settings) context() context.Context {
	if s.Context != nil {
		return s.Context
	}
	return context.Background()
}

// Paths are the per-user directories the components write under.
type Paths struct {
	Home  string
	Cache string
}

// WithSettings provides s to every component.
func WithSettings(s Settings) Module {
	return func(i Injector) error {
		if s.Config == nil {
			return fmt.Errorf("settings: config is required")
		}
		do.ProvideValue(i, s)
		do.ProvideValue(i, s.Config)
		return nil
	}
}

// NewRuntime registers the live implementations of every component.
// overrides run after them and may replace any provider.
func NewRuntime(overrides ...Module) *Runtime {
	return New(append([]Module{
		provideSession,
		providePaths,
		provideEnvironment,
		provideCatalog,
		provideRenderContext,
		providePersist,
		provideGit,
		provideInstaller,
		provideOrchestrator,
		provideDoctor,
	}, overrides...)...)
}

// provideSession registers the PATH session, the runner bound to it and the
// existence checker reading it.
func provideSession(i Injector) error {
	do.Provide(i, func(Injector) (*tools.SearchPath, error) {
		return tools.NewSearchPath(), nil
	})
	do.Provide(i, func(i Injector) (tools.Executor, error) {
		path, err := do.Invoke[*tools.SearchPath](i)
		if err != nil {
			return nil, err
		}
		return tools.NewLocalExecutor(path), nil
	})
	do.Provide(i, func(i Injector) (tools.Checker, error) {
		path, err := do.Invoke[*tools.SearchPath](i)
		if err != nil {
			return nil, err
		}
		return tools.NewPathChecker(path), nil
	})
	return nil
}

func providePaths(i Injector) error {
	do.Provide(i, func(Injector) (Paths, error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("locate home directory: %w", err)
		}
		p := Paths{Home: home}
		if cache, err := config.GetCacheDir(); err == nil {
			p.Cache = cache
		} else {
			logger.Debug("no artifact cache directory", logger.Err(err))
		}
		return p, nil
	})
	return nil
}

// provideEnvironment probes the host once per injector, under the
// invocation context so an interrupt cuts the privilege probe short.
func provideEnvironment(i Injector) error {
	do.Provide(i, func(i Injector) (*platform.Probe, error) {
		s, err := do.Invoke[Settings](i)
		if err != nil {
			return nil, err
		}
		runner, err := do.Invoke[tools.Executor](i)
		if err != nil {
			return nil, err
		}
		return platform.NewProbe(runner, s.Config.Timeouts.Privilege), nil
	})
	do.Provide(i, func(i Injector) (platform.Environment, error) {
		s, err := do.Invoke[Settings](i)
		if err != nil {
			return platform.Environment{}, err
		}
		probe, err := do.Invoke[*platform.Probe](i)
		if err != nil {
			return platform.Environment{}, err
		}
		return probe.Detect(s.context()), nil
	})
	return nil
}

func provideCatalog(i Injector) error {
	do.Provide(i, func(i Injector) (*catalog.Catalog, error) {
		cfg, err := do.Invoke[*config.Config](i)
		if err != nil {
			return nil, err
		}
		return catalog.Load(cfg.Catalog)
	})
	return nil
}

func provideRenderContext(i Injector) error {
	do.Provide(i, func(i Injector) (catalog.Context, error) {
		env, err := do.Invoke[platform.Environment](i)
		if err != nil {
			return catalog.Context{}, err
		}
		paths, err := do.Invoke[Paths](i)
		if err != nil {
			return catalog.Context{}, err
		}
		checker, err := do.Invoke[tools.Checker](i)
		if err != nil {
			return catalog.Context{}, err
		}
		cat, err := do.Invoke[*catalog.Catalog](i)
		if err != nil {
			return catalog.Context{}, err
		}
		return catalog.Context{
			Env:  env,
			Home: paths.Home,
			Dirs: tools.CanonicalDirs(env.GOOS(), paths.Home, os.Getenv, checker),
			Vars: cat.Vars,
		}, nil
	})
	return nil
}

func providePersist(i Injector) error {
	do.Provide(i, func(i Injector) (*persist.Manager, error) {
		env, err := do.Invoke[platform.Environment](i)
		if err != nil {
			return nil, err
		}
		paths, err := do.Invoke[Paths](i)
		if err != nil {
			return nil, err
		}
		runner, err := do.Invoke[tools.Executor](i)
		if err != nil {
			return nil, err
		}
		cfg, err := do.Invoke[*config.Config](i)
		if err != nil {
			return nil, err
		}
		return persist.New(env.GOOS(), paths.Home, runner, cfg.Timeouts.Probe), nil
	})
	return nil
}

func provideGit(i Injector) error {
	do.Provide(i, func(i Injector) (*gitsetup.Store, error) {
		paths, err := do.Invoke[Paths](i)
		if err != nil {
			return nil, err
		}
		return gitsetup.NewStore(paths.Home), nil
	})
	do.Provide(i, func(i Injector) (*gitsetup.BashLocator, error) {
		env, err := do.Invoke[platform.Environment](i)
		if err != nil {
			return nil, err
		}
		checker, err := do.Invoke[tools.Checker](i)
		if err != nil {
			return nil, err
		}
		return gitsetup.NewBashLocator(env.GOOS(), checker), nil
	})
	return nil
}

func provideInstaller(i Injector) error {
	do.Provide(i, func(i Injector) (*provision.Installer, error) {
		s, err := do.Invoke[Settings](i)
		if err != nil {
			return nil, err
		}
		runner, err := do.Invoke[tools.Executor](i)
		if err != nil {
			return nil, err
		}
		checker, err := do.Invoke[tools.Checker](i)
		if err != nil {
			return nil, err
		}
		path, err := do.Invoke[*tools.SearchPath](i)
		if err != nil {
			return nil, err
		}
		pm, err := do.Invoke[*persist.Manager](i)
		if err != nil {
			return nil, err
		}
		store, err := do.Invoke[*gitsetup.Store](i)
		if err != nil {
			return nil, err
		}
		paths, err := do.Invoke[Paths](i)
		if err != nil {
			return nil, err
		}
		cfg := s.Config
		in := &provision.Installer{
			Runner:  runner,
			Checker: checker,
			Path:    path,
			Retry: provision.NewRetryController(provision.RetryPolicy{
				Attempts:  cfg.Retry.Attempts,
				BaseDelay: cfg.Retry.BaseDelay,
				MaxDelay:  cfg.Retry.MaxDelay,
			}),
			Git: store,
			Timeouts: provision.Timeouts{
				Install:  cfg.Timeouts.Install,
				Download: cfg.Timeouts.Download,
				Probe:    cfg.Timeouts.Probe,
			},
			CacheDir: paths.Cache,
			Stream:   s.Stream,
		}
		if cfg.Persist.Enabled {
			in.Persist = pm
		}
		return in, nil
	})
	return nil
}

func provideOrchestrator(i Injector) error {
	do.Provide(i, func(i Injector) (*provision.Orchestrator, error) {
		s, err := do.Invoke[Settings](i)
		if err != nil {
			return nil, err
		}
		cat, err := do.Invoke[*catalog.Catalog](i)
		if err != nil {
			return nil, err
		}
		env, err := do.Invoke[platform.Environment](i)
		if err != nil {
			return nil, err
		}
		render, err := do.Invoke[catalog.Context](i)
		if err != nil {
			return nil, err
		}
		path, err := do.Invoke[*tools.SearchPath](i)
		if err != nil {
			return nil, err
		}
		checker, err := do.Invoke[tools.Checker](i)
		if err != nil {
			return nil, err
		}
		in, err := do.Invoke[*provision.Installer](i)
		if err != nil {
			return nil, err
		}
		doc, err := do.Invoke[*doctor.Doctor](i)
		if err != nil {
			return nil, err
		}
		store, err := do.Invoke[*gitsetup.Store](i)
		if err != nil {
			return nil, err
		}
		bash, err := do.Invoke[*gitsetup.BashLocator](i)
		if err != nil {
			return nil, err
		}
		return provision.New(provision.Options{
			Config:    s.Config,
			Catalog:   cat,
			Env:       env,
			Render:    render,
			Path:      path,
			Resolver:  provision.NewResolver(checker, s.Interactive),
			Installer: in,
			Preparer:  doc,
			AfterTool: map[string]provision.Hook{
				"git": gitsetup.AfterInstall(gitsetup.SetupOptions{
					Config: s.Config,
					GOOS:   env.GOOS(),
					Store:  store,
					Bash:   bash,
					Host:   gitsetup.LocalHost(),
					Setenv: os.Setenv,
				}),
			},
		})
	})
	return nil
}

func provideDoctor(i Injector) error {
	do.Provide(i, func(i Injector) (*doctor.Doctor, error) {
		cfg, err := do.Invoke[*config.Config](i)
		if err != nil {
			return nil, err
		}
		cat, err := do.Invoke[*catalog.Catalog](i)
		if err != nil {
			return nil, err
		}
		env, err := do.Invoke[platform.Environment](i)
		if err != nil {
			return nil, err
		}
		render, err := do.Invoke[catalog.Context](i)
		if err != nil {
			return nil, err
		}
		checker, err := do.Invoke[tools.Checker](i)
		if err != nil {
			return nil, err
		}
		runner, err := do.Invoke[tools.Executor](i)
		if err != nil {
			return nil, err
		}
		path, err := do.Invoke[*tools.SearchPath](i)
		if err != nil {
			return nil, err
		}
		pm, err := do.Invoke[*persist.Manager](i)
		if err != nil {
			return nil, err
		}
		store, err := do.Invoke[*gitsetup.Store](i)
		if err != nil {
			return nil, err
		}
		bash, err := do.Invoke[*gitsetup.BashLocator](i)
		if err != nil {
			return nil, err
		}
		return &doctor.Doctor{
			Catalog:      cat,
			Config:       cfg,
			Env:          env,
			Render:       render,
			Checker:      checker,
			Runner:       runner,
			Path:         path,
			Persist:      pm,
			Git:          store,
			Bash:         bash,
			ProbeTimeout: cfg.Timeouts.Probe,
			Getenv:       os.Getenv,
			Setenv:       os.Setenv,
		}, nil
	})
	return nil
}
