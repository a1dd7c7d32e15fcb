package gitsetup

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

func TestAfterInstall_ConfiguresIdentityAndBash(t *testing.T) {
	cfg := config.Default()
	s := newStore(t, "")
	env := map[string]string{}
	hook := AfterInstall(SetupOptions{
		Config: &cfg,
		GOOS:   "linux",
		Store:  s,
		Bash: &BashLocator{
			GOOS:    "linux",
			Checker: tools.StaticChecker{"git": "/usr/bin/git"},
			DirFS:   func(string) fs.FS { return fstest.MapFS{} },
			Exists:  func(p string) bool { return p == "/bin/bash" },
		},
		Host:   host("ada", "lab"),
		Setenv: func(k, v string) error { env[k] = v; return nil },
	})

	res := &provision.ToolInstallResult{Tool: "git", Status: provision.StatusInstalled}
	hook(context.Background(), res)

	name, email := s.Identity()
	assert.Equal(t, "ada", name)
	assert.Equal(t, "ada@lab", email)
	assert.Equal(t, "main", s.Get("init.defaultBranch"))
	assert.Equal(t, "/bin/bash", env["GIT_BASH_PATH"])
	assert.Empty(t, res.Warnings)
}

func TestAfterInstall_SkipsFailedGit(t *testing.T) {
	cfg := config.Default()
	s := newStore(t, "")
	called := false
	hook := AfterInstall(SetupOptions{
		Config: &cfg,
		GOOS:   "linux",
		Store:  s,
		Host:   host("ada", "lab"),
		Setenv: func(string, string) error { called = true; return nil },
	})

	hook(context.Background(), &provision.ToolInstallResult{Tool: "git", Status: provision.StatusFailed})

	name, _ := s.Identity()
	assert.Empty(t, name)
	assert.False(t, called)
}

func TestAfterInstall_HintsAndMissingBashOnWindows(t *testing.T) {
	cfg := config.Default()
	s := newStore(t, "")
	hook := AfterInstall(SetupOptions{
		Config: &cfg,
		GOOS:   "windows",
		Store:  s,
		Bash: &BashLocator{
			GOOS:    "windows",
			Checker: tools.StaticChecker{},
			Getenv:  func(string) string { return "" },
			DirFS:   func(string) fs.FS { return fstest.MapFS{} },
			Exists:  func(string) bool { return false },
		},
		Host:   host("", "localhost"),
		Setenv: func(string, string) error { return nil },
	})

	res := &provision.ToolInstallResult{Tool: "git", Status: provision.StatusAlreadyPresent}
	hook(context.Background(), res)

	require.Len(t, res.Warnings, 3)
	assert.Contains(t, res.Warnings[0], "user.name")
	assert.Contains(t, res.Warnings[1], "user.email")
	assert.Contains(t, res.Warnings[2], "Git Bash")
	assert.Equal(t, "true", s.Get("core.autocrlf"))
}
