package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"git", "opencode", "bun", "oh-my-opencode", "codebuddy", "iflow", "qodercli", "qwen"}, c.Names())

	git, ok := c.Tool("git")
	require.True(t, ok)
	assert.True(t, git.Required)
	assert.Equal(t, SeverityIssue, git.Severity())
	assert.NotEmpty(t, git.ContainerHint)

	omo, ok := c.Tool("oh-my-opencode")
	require.True(t, ok)
	assert.Empty(t, omo.Executable)
	assert.NotEmpty(t, omo.Marker)
	assert.Equal(t, []string{PrepareRepairOpenCodeConfig}, omo.Prepare)

	opencode, _ := c.Tool("opencode")
	assert.NotContains(t, opencode.Platforms, "windows-arm64")

	_, ok = c.Tool("emacs")
	assert.False(t, ok)
}

func TestLoadOverride(t *testing.T) {
	doc := `version: 1
tools:
  - name: jq
    executable: jq
    version_probe: jq --version
    strategies:
      - label: apt
        os: linux
        command: sudo apt-get install -y jq
        requires: [apt-get]
        elevation: required
        timeout: 2m
`
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	jq, ok := c.Tool("jq")
	require.True(t, ok)
	require.Len(t, jq.Strategies, 1)
	assert.Equal(t, Duration(2*time.Minute), jq.Strategies[0].Timeout)
	assert.True(t, jq.Strategies[0].NeedsElevation())
	assert.Equal(t, KindCommand, jq.Strategies[0].KindOrDefault())
	assert.Equal(t, SeverityWarning, jq.Severity())
	assert.Equal(t, "jq", jq.Title())
}

func TestParseRejects(t *testing.T) {
	_, err := Parse([]byte("version: 2\ntools: []\n"))
	assert.Error(t, err)

	dup := `version: 1
tools:
  - name: git
    executable: git
    strategies: []
  - name: git
    executable: git
    strategies: []
`
	_, err = Parse([]byte(dup))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func linuxContext() Context {
	return Context{
		Env:  platform.Environment{OSFamily: platform.Linux, Arch: platform.ARM64},
		Home: "/home/dev",
		Dirs: tools.Dirs{NpmGlobalBin: "/home/dev/.npm-global/bin", BunBin: "/home/dev/.bun/bin"},
		Vars: map[string]string{"git_version": "2.47.0", "home": "ignored"},
	}
}

func TestContextValues(t *testing.T) {
	v := linuxContext().Values()
	assert.Equal(t, "/home/dev", v["home"], "built-ins win over catalog vars")
	assert.Equal(t, "aarch64", v["gnu_arch"])
	assert.Equal(t, "arm64", v["apple_arch"])
	assert.Equal(t, "linux-arm64", v["platform"])
	assert.Equal(t, "", v["exe"])
	assert.Equal(t, "2.47.0", v["git_version"])

	win := Context{Env: platform.Environment{OSFamily: platform.Windows, Arch: platform.X64}}
	assert.Equal(t, ".exe", win.Values()["exe"])
	assert.Equal(t, "x86_64", win.Values()["apple_arch"])
}

func TestExpand(t *testing.T) {
	c := linuxContext()

	out, err := c.Expand("https://example.com/git-{{{git_version}}}-{{{gnu_arch}}}.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/git-2.47.0-aarch64.tar.gz", out)

	c.Home = "/home/o'brien"
	out, err = c.Expand("{{{home}}}/x")
	require.NoError(t, err)
	assert.Equal(t, "/home/o'brien/x", out, "triple braces never escape")

	_, err = c.Expand("{{{nope}}}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRenderEmbeddedGit(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	git, _ := c.Tool("git")

	ctx := linuxContext()
	ctx.Vars = c.Vars
	rendered, err := ctx.Render(git)
	require.NoError(t, err)

	var tarball *Strategy
	for i := range rendered.Strategies {
		s := rendered.Strategies[i]
		if s.OS == "linux" && s.KindOrDefault() == KindArtifact {
			tarball = &rendered.Strategies[i]
		}
	}
	require.NotNil(t, tarball)
	assert.Equal(t, "https://github.com/git/git/releases/download/v2.47.0/git-2.47.0-aarch64.tar.gz", tarball.Artifact.URL)
	assert.Equal(t, filepath.FromSlash("/home/dev/git-user"), tarball.Artifact.Dest)
	assert.Equal(t, filepath.FromSlash("/home/dev/git-user/bin"), tarball.PathEntry)
	assert.True(t, tarball.Network)
	assert.True(t, tarball.MutatesPath)
	assert.Equal(t, "input", tarball.PostGitConfig["core.autocrlf"])

	assert.Contains(t, git.Strategies[len(git.Strategies)-1].Artifact.URL, "{{{", "source spec is not mutated")
}

func TestRenderEmbeddedAll(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	for _, env := range []platform.Environment{
		{OSFamily: platform.Windows, Arch: platform.X64},
		{OSFamily: platform.MacOS, Arch: platform.ARM64},
		{OSFamily: platform.Linux, Arch: platform.X64},
	} {
		ctx := Context{Env: env, Home: "/home/dev", Vars: c.Vars, Dirs: tools.Dirs{NpmGlobalBin: "/npm"}}
		for _, tool := range c.Tools {
			rendered, err := ctx.Render(tool)
			require.NoError(t, err, "%s on %s", tool.Name, env.Platform())
			for _, s := range rendered.Strategies {
				assert.NotContains(t, s.Command, "{{", "%s/%s", tool.Name, s.Label)
			}
			for _, line := range rendered.Manual {
				assert.False(t, strings.Contains(line, "{{"), line)
			}
		}
	}
}
