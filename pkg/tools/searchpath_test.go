package tools

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchPath_SplitAndString(t *testing.T) {
	p := NewDetachedSearchPath("/usr/bin::/bin: ", "linux")
	assert.Equal(t, []string{"/usr/bin", "/bin"}, p.Entries())
	assert.Equal(t, "/usr/bin:/bin", p.String())

	w := NewDetachedSearchPath(`C:\Windows;C:\Users\dev\AppData\Roaming\npm`, "windows")
	assert.Len(t, w.Entries(), 2)
	assert.Equal(t, `C:\Windows;C:\Users\dev\AppData\Roaming\npm`, w.String())
}

func TestSearchPath_Contains(t *testing.T) {
	tests := []struct {
		name  string
		value string
		goos  string
		dir   string
		want  bool
	}{
		{"exact unix", "/a:/b", "linux", "/b", true},
		{"trailing slash unix", "/a:/b/", "linux", "/b", true},
		{"case sensitive unix", "/A", "linux", "/a", false},
		{"case insensitive windows", `C:\Users\Dev\npm`, "windows", `c:\users\dev\npm`, true},
		{"slash style windows", `C:\git\bin`, "windows", `C:/git/bin`, true},
		{"absent", "/a", "linux", "/c", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewDetachedSearchPath(tt.value, tt.goos).Contains(tt.dir))
		})
	}
}

func TestSearchPath_PrependIdempotent(t *testing.T) {
	p := NewDetachedSearchPath("/usr/bin", "linux")

	assert.True(t, p.Prepend("/home/dev/.bun/bin"))
	assert.False(t, p.Prepend("/home/dev/.bun/bin"))
	assert.False(t, p.Prepend(" "))
	assert.Equal(t, []string{"/home/dev/.bun/bin", "/usr/bin"}, p.Entries())
}

func TestSearchPath_PrependMirrorsProcessEnv(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	p := NewSearchPath()
	dir := t.TempDir()

	require.True(t, p.Prepend(dir))
	assert.Equal(t, p.String(), os.Getenv("PATH"))
}

func TestSearchPath_Lookup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec-bit semantics are unix only")
	}
	dir := t.TempDir()
	exe := filepath.Join(dir, "opencode")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	plain := filepath.Join(dir, "notes")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	p := NewDetachedSearchPath("/nonexistent:"+dir, "linux")

	got, ok := p.Lookup("opencode")
	assert.True(t, ok)
	assert.Equal(t, exe, got)

	_, ok = p.Lookup("notes")
	assert.False(t, ok, "non-executable files do not resolve")

	_, ok = p.Lookup("subdir")
	assert.False(t, ok, "directories do not resolve")

	_, ok = p.Lookup("")
	assert.False(t, ok)

	got, ok = p.Lookup(exe)
	assert.True(t, ok, "paths are checked directly")
	assert.Equal(t, exe, got)
}

func TestPathChecker(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec-bit semantics are unix only")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "git"), []byte("#!/bin/sh\n"), 0o755))

	c := NewPathChecker(NewDetachedSearchPath(dir, "linux"))
	assert.True(t, c.Exists("git"))
	assert.False(t, c.Exists("bun"))

	p, ok := c.Resolve("git")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "git"), p)
}

func TestStaticChecker(t *testing.T) {
	c := StaticChecker{"npm": "/usr/bin/npm"}
	assert.True(t, c.Exists("npm"))
	assert.False(t, c.Exists("bunx"))
	p, ok := c.Resolve("npm")
	assert.True(t, ok)
	assert.Equal(t, "/usr/bin/npm", p)
}
