package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STIGMERGYLITE_HOME", filepath.Join(dir, "home"))
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.True(t, cfg.AutoInstall)
	assert.True(t, cfg.ConfigureGitBash)
	assert.False(t, cfg.Silent)
	assert.Equal(t, DefaultTools, cfg.Tools)
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.Install)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Download)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, "main", cfg.Git.DefaultBranch)
	assert.True(t, cfg.Persist.Enabled)
	require.NoError(t, cfg.Validate(DefaultTools))
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := isolate(t)
	content := `silent: true
tools: [git, bun]
retry:
  attempts: 5
timeouts:
  install: 90s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stigmergylite.yaml"), []byte(content), 0o600))
	t.Setenv("STIGMERGYLITE_AUTO_INSTALL", "false")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.True(t, cfg.Silent)
	assert.False(t, cfg.AutoInstall)
	assert.Equal(t, []string{"git", "bun"}, cfg.Tools)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Install)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Probe, "unset keys keep defaults")
}

func TestLoadMalformedFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stigmergylite.yaml"), []byte("tools: [git\n"), 0o600))

	_, err := Load(NewViper())
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STIGMERGYLITE_SILENT=true\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("STIGMERGYLITE_SILENT") })

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.True(t, cfg.Silent)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown tool", mutate: func(c *Config) { c.Tools = append(c.Tools, "emacs") }, wantErr: `unknown tool "emacs"`},
		{name: "duplicate", mutate: func(c *Config) { c.Tools = []string{"git", "git"} }, wantErr: "listed twice"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeouts.Probe = 0 }, wantErr: "timeouts.probe"},
		{name: "no attempts", mutate: func(c *Config) { c.Retry.Attempts = 0 }, wantErr: "retry.attempts"},
		{name: "delays inverted", mutate: func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, wantErr: "retry delays"},
		{name: "empty branch", mutate: func(c *Config) { c.Git.DefaultBranch = " " }, wantErr: "default_branch"},
		{name: "empty tool list", mutate: func(c *Config) { c.Tools = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate(DefaultTools)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnableDisable(t *testing.T) {
	cfg := Default()

	cfg.Disable(CLITools...)
	assert.Equal(t, []string{"git", "opencode", "bun", "oh-my-opencode"}, cfg.Tools)

	cfg.Enable("qwen", "iflow")
	assert.Equal(t, []string{"git", "opencode", "bun", "oh-my-opencode", "iflow", "qwen"}, cfg.Tools)

	cfg.Disable("opencode")
	assert.False(t, cfg.Enabled("opencode"))
	assert.True(t, cfg.Enabled("git"))

	cfg.Enable("git")
	assert.Equal(t, []string{"git", "bun", "oh-my-opencode", "iflow", "qwen"}, cfg.Tools)
}

func TestHomeDirs(t *testing.T) {
	dir := isolate(t)
	home := filepath.Join(dir, "home")

	got, err := GetHome()
	require.NoError(t, err)
	assert.Equal(t, home, got)

	logDir, err := GetLogDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), logDir)
	assert.DirExists(t, logDir)

	cfgDir, err := GetConfigDir()
	require.NoError(t, err)
	assert.DirExists(t, cfgDir)
}
