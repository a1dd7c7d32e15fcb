package gitsetup

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

func newStore(t *testing.T, content string) *Store {
	t.Helper()
	fs := memfs.New()
	if content != "" {
		require.NoError(t, util.WriteFile(fs, GlobalConfigFile, []byte(content), 0o644))
	}
	return &Store{FS: fs, Name: GlobalConfigFile, Now: func() time.Time { return time.UnixMilli(1700000000000) }}
}

func host(user, hostname string) Host {
	return Host{
		Username: func() string { return user },
		Hostname: func() (string, error) { return hostname, nil },
	}
}

func TestStore_SetAndGet(t *testing.T) {
	s := newStore(t, "[user]\n\tname = Ada\n")

	changed, err := s.Set(map[string]string{"user.name": "Ada", "core.autocrlf": "input", `url.git@github.com:.insteadOf`: "https://github.com/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"core.autocrlf", "url.git@github.com:.insteadOf"}, changed)
	assert.Equal(t, "input", s.Get("core.autocrlf"))
	assert.Equal(t, "Ada", s.Get("user.name"))
	assert.Equal(t, "https://github.com/", s.Get("url.git@github.com:.insteadOf"))

	changed, err = s.Set(map[string]string{"core.autocrlf": "input"})
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestStore_InvalidKey(t *testing.T) {
	s := newStore(t, "")
	_, err := s.Set(map[string]string{"nodot": "x"})
	assert.Error(t, err)
	assert.Equal(t, "", s.Get("trailing."))
}

func TestStore_BacksUpCommentedFile(t *testing.T) {
	s := newStore(t, "# my settings\n[user]\n\tname = Ada\n")

	require.NoError(t, s.ApplyGitConfig(map[string]string{"core.longpaths": "true"}))

	backup, err := util.ReadFile(s.FS, ".gitconfig.backup.1700000000000")
	require.NoError(t, err)
	assert.Contains(t, string(backup), "# my settings")
	assert.Equal(t, "true", s.Get("core.longpaths"))
}

func TestConfigureIdentity_FillsDefaults(t *testing.T) {
	s := newStore(t, "")
	res, err := s.ConfigureIdentity(config.GitConfig{DefaultBranch: "main"}, "linux", host("ada", "workstation"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"init.defaultBranch", "user.email", "user.name"}, res.Changed)
	assert.Empty(t, res.Hints)
	name, email := s.Identity()
	assert.Equal(t, "ada", name)
	assert.Equal(t, "ada@workstation", email)
	assert.Equal(t, "main", s.Get("init.defaultbranch"))
	assert.Equal(t, "", s.Get("core.autocrlf"))
}

func TestConfigureIdentity_KeepsExistingAndHonorsExplicit(t *testing.T) {
	s := newStore(t, "[user]\n\tname = Existing\n\temail = e@x.org\n")
	_, err := s.ConfigureIdentity(config.GitConfig{}, "linux", host("ada", "workstation"))
	require.NoError(t, err)
	name, email := s.Identity()
	assert.Equal(t, "Existing", name)
	assert.Equal(t, "e@x.org", email)
	assert.Equal(t, "main", s.Get("init.defaultBranch"))

	_, err = s.ConfigureIdentity(config.GitConfig{UserName: "Grace", UserEmail: "g@navy.mil", DefaultBranch: "trunk"}, "linux", host("ada", "workstation"))
	require.NoError(t, err)
	name, email = s.Identity()
	assert.Equal(t, "Grace", name)
	assert.Equal(t, "g@navy.mil", email)
	assert.Equal(t, "trunk", s.Get("init.defaultBranch"))
}

func TestConfigureIdentity_WindowsAndLocalhost(t *testing.T) {
	s := newStore(t, "")
	res, err := s.ConfigureIdentity(config.GitConfig{}, "windows", host("ada", "localhost"))
	require.NoError(t, err)

	require.Len(t, res.Hints, 1)
	assert.Contains(t, res.Hints[0], "user.email")
	assert.Equal(t, "true", s.Get("core.autocrlf"))
	assert.Equal(t, "true", s.Get("core.longpaths"))
	assert.Equal(t, "off", s.Get("core.quotepath"))
	_, email := s.Identity()
	assert.Empty(t, email)
}

func TestDefaultEmail(t *testing.T) {
	tests := []struct {
		user, host, want string
		ok               bool
	}{
		{"ada", "box", "ada@box", true},
		{"ada", "localhost", "", false},
		{"ada", "LocalDomain", "", false},
		{"", "box", "", false},
		{"ada", "", "", false},
	}
	for _, tt := range tests {
		got, ok := DefaultEmail(tt.user, tt.host)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ok, ok)
	}
}

func mapFS(roots map[string]fstest.MapFS) func(string) fs.FS {
	return func(root string) fs.FS {
		if m, ok := roots[root]; ok {
			return m
		}
		return fstest.MapFS{}
	}
}

func TestBashLocator_Windows(t *testing.T) {
	env := map[string]string{"LOCALAPPDATA": `C:\Users\ada\AppData\Local`}
	l := &BashLocator{
		GOOS:    "windows",
		Getenv:  func(k string) string { return env[k] },
		Checker: tools.StaticChecker{},
		DirFS: mapFS(map[string]fstest.MapFS{
			`C:\Users\ada\AppData\Local\Programs\Git`: {
				"bin/bash.exe":     {Data: []byte("MZ")},
				"usr/bin/bash.exe": {Data: []byte("MZ")},
			},
		}),
	}

	got, ok := l.Find()
	require.True(t, ok)
	assert.Equal(t, `C:\Users\ada\AppData\Local\Programs\Git\bin\bash.exe`, got)

	set := map[string]string{}
	env2, ok := l.ConfigureEnv(func(k, v string) error { set[k] = v; return nil })
	require.True(t, ok)
	assert.Equal(t, got, set["GIT_BASH_PATH"])
	assert.Equal(t, `C:\Users\ada\AppData\Local\Programs\Git`, set["GIT_INSTALL_ROOT"])
	assert.Equal(t, env2.InstallRoot, set["GIT_INSTALL_ROOT"])
}

func TestBashLocator_WindowsFromGitOnPath(t *testing.T) {
	l := &BashLocator{
		GOOS:    "windows",
		Checker: tools.StaticChecker{"git": `D:\tools\Git\cmd\git.exe`},
		DirFS: mapFS(map[string]fstest.MapFS{
			`D:\tools\Git`: {"usr/bin/bash.exe": {Data: []byte("MZ")}},
		}),
	}
	assert.Contains(t, l.Roots(), `D:\tools\Git`)
	got, ok := l.Find()
	require.True(t, ok)
	assert.Equal(t, `D:\tools\Git\usr\bin\bash.exe`, got)
}

func TestBashLocator_NotFound(t *testing.T) {
	l := &BashLocator{GOOS: "windows", Checker: tools.StaticChecker{}, DirFS: mapFS(nil)}
	_, ok := l.Find()
	assert.False(t, ok)
	_, ok = l.ConfigureEnv(func(string, string) error { return errors.New("unused") })
	assert.False(t, ok)
}

func TestBashLocator_Unix(t *testing.T) {
	l := &BashLocator{
		GOOS:    "darwin",
		Checker: tools.StaticChecker{"git": "/usr/bin/git"},
		DirFS:   mapFS(nil),
		Exists:  func(p string) bool { return p == "/bin/bash" },
	}
	set := map[string]string{}
	env, ok := l.ConfigureEnv(func(k, v string) error { set[k] = v; return nil })
	require.True(t, ok)
	assert.Equal(t, "/bin/bash", env.BashPath)
	assert.Empty(t, env.InstallRoot)
	_, exported := set["GIT_INSTALL_ROOT"]
	assert.False(t, exported)

	l.Checker = tools.StaticChecker{}
	_, ok = l.Find()
	assert.False(t, ok, "no git, no bash")

	wsl := &BashLocator{GOOS: "linux", Checker: tools.StaticChecker{}, DirFS: mapFS(map[string]fstest.MapFS{
		"/mnt/c/Program Files/Git": {"bin/bash.exe": {Data: []byte("MZ")}},
	})}
	got, ok := wsl.Find()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(got, "/mnt/c/Program Files/Git/bin/"))
}
