package provision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/stigmergylite/internal/catalog"
	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
	"github.com/fulmenhq/stigmergylite/pkg/tools/toolstest"
)

// fakeTimer fires immediately and remembers every requested wait.
type fakeTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (f *fakeTimer) Start(d time.Duration) {
	f.waits = append(f.waits, d)
	f.c = make(chan time.Time, 1)
	f.c <- time.Time{}
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

type fakePersister struct {
	dirs []string
	err  error
}

func (p *fakePersister) Persist(_ context.Context, dir string) (bool, error) {
	p.dirs = append(p.dirs, dir)
	return p.err == nil, p.err
}

type fakeGit struct{ applied []map[string]string }

func (g *fakeGit) ApplyGitConfig(v map[string]string) error {
	g.applied = append(g.applied, v)
	return nil
}

type fakePreparer struct{ actions []string }

func (p *fakePreparer) Prepare(_ context.Context, action string, _ catalog.ToolSpec) error {
	p.actions = append(p.actions, action)
	return nil
}

var (
	linuxRoot   = platform.Environment{OSFamily: platform.Linux, Arch: platform.X64, HasElevatedPrivilege: true}
	notWritable = func(string) error { return errors.New("read-only") }
)

type harness struct {
	cat         *catalog.Catalog
	cfg         *config.Config
	env         platform.Environment
	home        string
	checker     tools.StaticChecker
	exec        *toolstest.Executor
	timer       *fakeTimer
	persist     *fakePersister
	git         *fakeGit
	prep        *fakePreparer
	writable    func(string) error
	interactive bool
}

func newHarness(t *testing.T, env platform.Environment, toolNames ...string) *harness {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)
	cfg := config.Default()
	if len(toolNames) > 0 {
		cfg.Tools = toolNames
	}
	return &harness{
		cat:      cat,
		cfg:      &cfg,
		env:      env,
		home:     t.TempDir(),
		checker:  tools.StaticChecker{},
		exec:     toolstest.New(),
		timer:    &fakeTimer{},
		persist:  &fakePersister{},
		git:      &fakeGit{},
		prep:     &fakePreparer{},
		writable: notWritable,
	}
}

func (h *harness) installer() *Installer {
	return &Installer{
		Runner:   h.exec,
		Checker:  h.checker,
		Retry:    &RetryController{Policy: DefaultRetryPolicy, Timer: h.timer},
		Persist:  h.persist,
		Git:      h.git,
		Timeouts: Timeouts{Install: time.Minute, Download: time.Minute, Probe: time.Second},
	}
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(Options{
		Config:    h.cfg,
		Catalog:   h.cat,
		Env:       h.env,
		Render:    catalog.Context{Env: h.env, Home: h.home, Vars: h.cat.Vars},
		Resolver:  &Resolver{Checker: h.checker, Writable: h.writable, Interactive: h.interactive},
		Installer: h.installer(),
		Preparer:  h.prep,
	})
	require.NoError(t, err)
	return o
}

func (h *harness) tool(t *testing.T, name string) catalog.ToolSpec {
	t.Helper()
	spec, ok := h.cat.Tool(name)
	require.True(t, ok, name)
	return spec
}

// installs returns a handler that makes name resolvable and exits zero.
func (h *harness) installs(name string) toolstest.Handler {
	return func(tools.ExecuteOptions) (*tools.ExecuteResult, error) {
		h.checker[name] = "/usr/local/bin/" + name
		return &tools.ExecuteResult{ExitCode: 0}, nil
	}
}
