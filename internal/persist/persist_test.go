package persist

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/fulmenhq/stigmergylite/pkg/tools"
	"github.com/fulmenhq/stigmergylite/pkg/tools/toolstest"
)

func shellEnv(shell string) func(string) string {
	return func(k string) string {
		if k == "SHELL" {
			return shell
		}
		return ""
	}
}

func read(t *testing.T, m *Manager, name string) string {
	t.Helper()
	b, err := util.ReadFile(m.FS, name)
	require.NoError(t, err)
	return string(b)
}

func TestApply_CreatesMissingFileWithOnlyExportLine(t *testing.T) {
	m := &Manager{GOOS: "linux", FS: memfs.New(), Getenv: shellEnv("/bin/bash")}

	rep, err := m.Apply(context.Background(), "/home/dev/git-user/bin")
	require.NoError(t, err)

	assert.Equal(t, []Target{{Store: "~/.bashrc", Action: ActionCreated}}, rep.Targets)
	assert.True(t, rep.Changed())
	assert.Equal(t, "export PATH=\"/home/dev/git-user/bin:$PATH\"\n", read(t, m, ".bashrc"))
	assert.False(t, safeExists(m, ".zshrc"))
}

func safeExists(m *Manager, name string) bool {
	_, err := m.FS.Stat(name)
	return err == nil
}

func TestApply_AppendsToExistingFile(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, ".bashrc", []byte("alias ll='ls -l'\n"), 0o644))
	m := &Manager{GOOS: "linux", FS: fs, Getenv: shellEnv("/bin/bash")}

	changed, err := m.Persist(context.Background(), "/home/dev/.bun/bin")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "alias ll='ls -l'\n\n# Added by stigmergylite\nexport PATH=\"/home/dev/.bun/bin:$PATH\"\n", read(t, m, ".bashrc"))

	changed, err = m.Persist(context.Background(), "/home/dev/.bun/bin")
	require.NoError(t, err)
	assert.False(t, changed, "second call finds the entry already present")
}

func TestApply_ZshTargets(t *testing.T) {
	for _, tc := range []struct {
		goos, shell string
		want        []string
	}{
		{"darwin", "/bin/bash", []string{".bashrc", ".zshrc"}},
		{"linux", "/usr/bin/zsh", []string{".bashrc", ".zshrc"}},
		{"linux", "", []string{".bashrc"}},
	} {
		m := &Manager{GOOS: tc.goos, FS: memfs.New(), Getenv: shellEnv(tc.shell)}
		assert.Equal(t, tc.want, m.StartupFiles(), tc.goos+" "+tc.shell)
		_, err := m.Apply(context.Background(), "/opt/bin")
		require.NoError(t, err)
		for _, f := range tc.want {
			assert.Contains(t, read(t, m, f), "/opt/bin")
		}
	}
}

func TestApply_RejectsEmpty(t *testing.T) {
	m := &Manager{GOOS: "linux", FS: memfs.New()}
	_, err := m.Apply(context.Background(), "  ")
	assert.Error(t, err)
}

func TestMentions(t *testing.T) {
	content := "# export PATH=\"/commented/out:$PATH\"\nexport PATH=\"/a/bin:$PATH\"\nPATH=$PATH:/b/bin/\n"
	assert.True(t, Mentions(content, "/a/bin"))
	assert.True(t, Mentions(content, "/b/bin"))
	assert.False(t, Mentions(content, "/a"))
	assert.False(t, Mentions(content, "/a/bin2"))
	assert.False(t, Mentions(content, "/commented/out"))

	quoted := "export PATH=\"/home/p/Application Support/bin:$PATH\"\nPATH='/opt/it''s':$PATH; export PATH\n"
	assert.True(t, Mentions(quoted, "/home/p/Application Support/bin"))
	assert.True(t, Mentions(quoted, "/opt/its"))
	assert.False(t, Mentions(quoted, "/home/p/Application"))
	assert.False(t, Mentions(quoted, "Support/bin"))
}

func TestExportLine_EscapesShellMetacharacters(t *testing.T) {
	assert.Equal(t, "export PATH=\"/opt/bin:$PATH\"\n", ExportLine("/opt/bin"))
	assert.Equal(t, "export PATH=\"/home/p/Application Support/bin:$PATH\"\n", ExportLine("/home/p/Application Support/bin"))
	assert.Equal(t, "export PATH=\"/x/\\$HOME/\\\"q\\\"/\\`id\\`/a\\\\b:$PATH\"\n", ExportLine("/x/$HOME/\"q\"/`id`/a\\b"))

	dir := `/x/$HOME/"q"/a\b`
	assert.True(t, Mentions(ExportLine(dir), dir))
}

func TestApply_DirWithSpaceIsPersistedOnce(t *testing.T) {
	m := &Manager{GOOS: "linux", FS: memfs.New(), Getenv: shellEnv("/bin/bash")}
	dir := "/home/p/Application Support/bin"

	var actions []Action
	for i := 0; i < 3; i++ {
		rep, err := m.Apply(context.Background(), dir)
		require.NoError(t, err)
		actions = append(actions, rep.Targets[0].Action)
	}

	assert.Equal(t, []Action{ActionCreated, ActionPresent, ActionPresent}, actions)
	assert.Equal(t, 1, strings.Count(read(t, m, ".bashrc"), ExportLine(dir)))
}

func TestPersist_IdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("persisting twice leaves exactly one entry", prop.ForAll(
		func(head, meta, tail string, preexisting bool, zsh bool) bool {
			dir := "/home/p/" + head + meta + tail + "/bin"
			fs := memfs.New()
			if preexisting {
				if err := util.WriteFile(fs, ".bashrc", []byte("set -o vi\n"), 0o644); err != nil {
					return false
				}
			}
			shell := "/bin/bash"
			if zsh {
				shell = "/bin/zsh"
			}
			m := &Manager{GOOS: "linux", FS: fs, Getenv: shellEnv(shell)}
			for i := 0; i < 2; i++ {
				if _, err := m.Apply(context.Background(), dir); err != nil {
					return false
				}
			}
			for _, f := range m.StartupFiles() {
				b, err := util.ReadFile(fs, f)
				if err != nil || strings.Count(string(b), ExportLine(dir)) != 1 {
					return false
				}
			}
			return true
		},
		gen.Identifier(),
		gen.OneConstOf("", " ", "Application Support", `"`, "$", "$(id)", "`", `\`, "'", ":", ";"),
		gen.Identifier(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func decode(t *testing.T, enc string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	s, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().String(string(raw))
	require.NoError(t, err)
	return s
}

// userPath fakes the Windows user-scope Path variable behind PowerShell.
func userPath(t *testing.T, value *string) toolstest.Handler {
	return func(o tools.ExecuteOptions) (*tools.ExecuteResult, error) {
		script := decode(t, o.Args[len(o.Args)-1])
		if strings.HasPrefix(script, "[Environment]::GetEnvironmentVariable") {
			return &tools.ExecuteResult{Stdout: []byte(*value + "\r\n")}, nil
		}
		start := strings.Index(script, "'Path', '") + len("'Path', '")
		end := strings.LastIndex(script, "', 'User')")
		*value = strings.ReplaceAll(script[start:end], "''", "'")
		return &tools.ExecuteResult{}, nil
	}
}

func TestApply_WindowsUserPath(t *testing.T) {
	value := `C:\Users\dev\AppData\Roaming\npm;C:\Windows`
	exec := toolstest.New().On("powershell", userPath(t, &value))
	m := &Manager{GOOS: "windows", Runner: exec}

	rep, err := m.Apply(context.Background(), `C:\Users\dev\git-portable\mingw64\bin`)
	require.NoError(t, err)
	assert.Equal(t, []Target{{Store: `HKCU\Environment\Path`, Action: ActionUpdated}}, rep.Targets)
	assert.Equal(t, `C:\Users\dev\git-portable\mingw64\bin;C:\Users\dev\AppData\Roaming\npm;C:\Windows`, value)

	rep, err = m.Apply(context.Background(), `c:\users\dev\git-portable\mingw64\bin\`)
	require.NoError(t, err)
	assert.False(t, rep.Changed())
	assert.Equal(t, 3, exec.Count("powershell"), "get, set, get")
	assert.Equal(t, "-EncodedCommand", exec.Calls[0].Args[2])
}

func TestApply_WindowsQuotesApostrophes(t *testing.T) {
	value := ""
	exec := toolstest.New().On("powershell", userPath(t, &value))
	m := &Manager{GOOS: "windows", Runner: exec}

	_, err := m.Apply(context.Background(), `C:\Users\o'brien\bin`)
	require.NoError(t, err)
	assert.Equal(t, `C:\Users\o'brien\bin`, value)
}

func TestApply_WindowsFailureIsReported(t *testing.T) {
	exec := toolstest.New().Fail("powershell", 1, "access denied")
	m := &Manager{GOOS: "windows", Runner: exec}

	_, err := m.Apply(context.Background(), `C:\x`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestQuotePowerShell(t *testing.T) {
	assert.Equal(t, `'it''s'`, QuotePowerShell("it's"))
	enc, err := EncodePowerShell("ab")
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{'a', 0, 'b', 0}), enc)
}
