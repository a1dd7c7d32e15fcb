package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/stigmergylite/pkg/di"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
	"github.com/fulmenhq/stigmergylite/pkg/tools/toolstest"
)

// fixture swaps the live runtime for one with a fixed environment, a static
// checker, a fake runner and a temporary home.
type fixture struct {
	home    string
	checker tools.StaticChecker
	exec    *toolstest.Executor
	env     platform.Environment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		home:    t.TempDir(),
		checker: tools.StaticChecker{},
		exec:    toolstest.New(),
		env:     platform.Environment{OSFamily: platform.Linux, Arch: platform.X64},
	}
	t.Setenv("NPM_CONFIG_PREFIX", "")
	t.Setenv("SHELL", "/bin/bash")
	t.Setenv("STIGMERGYLITE_HOME", filepath.Join(f.home, ".stigmergylite"))

	prev := newRuntime
	newRuntime = func() *di.Runtime {
		return di.NewRuntime(func(i di.Injector) error {
			do.OverrideValue(i, f.env)
			do.OverrideValue(i, di.Paths{Home: f.home})
			do.OverrideValue(i, tools.NewDetachedSearchPath("/usr/bin:/bin", "linux"))
			do.OverrideValue[tools.Checker](i, f.checker)
			do.OverrideValue[tools.Executor](i, f.exec)
			return nil
		})
	}
	t.Cleanup(func() { newRuntime = prev })
	return f
}

// configFile writes a config enabling only toolNames and returns its path.
func (f *fixture) configFile(t *testing.T, toolNames ...string) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("persist:\n  enabled: true\ntools:\n")
	for _, n := range toolNames {
		buf.WriteString("  - " + n + "\n")
	}
	path := filepath.Join(f.home, "stigmergylite.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

// execRoot runs a fresh command tree and returns everything it printed.
func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	registerSubcommands(root)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--log-level", "error", "--no-color"}, args...))
	err := root.Execute()
	return buf.String(), err
}
