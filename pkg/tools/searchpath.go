package tools

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
)

// SearchPath is the command search path for one run. It starts from the
// process PATH and is the only place the run's PATH changes; Prepend mirrors
// the new value into the process environment so child processes observe it.
type SearchPath struct {
	mu      sync.RWMutex
	goos    string
	entries []string
	mirror  bool
}

// NewSearchPath builds a session from the current process PATH.
func NewSearchPath() *SearchPath {
	return &SearchPath{
		goos:    runtime.GOOS,
		entries: split(os.Getenv("PATH"), runtime.GOOS),
		mirror:  true,
	}
}

// NewDetachedSearchPath builds a session from an explicit value for the given
// GOOS. It never touches the process environment.
func NewDetachedSearchPath(value, goos string) *SearchPath {
	return &SearchPath{goos: goos, entries: split(value, goos)}
}

func listSeparator(goos string) string {
	if goos == "windows" {
		return ";"
	}
	return ":"
}

func split(value, goos string) []string {
	var out []string
	for _, e := range strings.Split(value, listSeparator(goos)) {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns a copy of the entries in search order.
func (p *SearchPath) Entries() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.entries)
}

// String renders the session as a PATH value.
func (p *SearchPath) String() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return strings.Join(p.entries, listSeparator(p.goos))
}

// GOOS is the operating system whose conventions the session follows.
func (p *SearchPath) GOOS() string { return p.goos }

// Contains reports whether dir is already an entry. Windows compares case-insensitively.
func (p *SearchPath) Contains(dir string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.indexLocked(dir) >= 0
}

func (p *SearchPath) indexLocked(dir string) int {
	want := normalizeEntry(dir, p.goos)
	for i, e := range p.entries {
		if normalizeEntry(e, p.goos) == want {
			return i
		}
	}
	return -1
}

func normalizeEntry(dir, goos string) string {
	dir = strings.TrimRight(strings.TrimSpace(dir), `/\`)
	if goos == "windows" {
		return strings.ToLower(strings.ReplaceAll(dir, "/", `\`))
	}
	return dir
}

// Prepend puts dir at the front of the session. It returns false when dir was
// already present (the session is left unchanged).
func (p *SearchPath) Prepend(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	p.mu.Lock()
	if p.indexLocked(dir) >= 0 {
		p.mu.Unlock()
		return false
	}
	p.entries = append([]string{dir}, p.entries...)
	value := strings.Join(p.entries, listSeparator(p.goos))
	mirror := p.mirror
	p.mu.Unlock()

	if mirror {
		_ = os.Setenv("PATH", value)
	}
	return true
}

// Lookup resolves name against the session entries without executing it.
// Names containing a separator are checked directly.
func (p *SearchPath) Lookup(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if strings.ContainsAny(name, `/\`) {
		return p.probe(name)
	}
	for _, dir := range p.Entries() {
		if found, ok := p.probe(filepath.Join(dir, name)); ok {
			return found, true
		}
	}
	return "", false
}

func (p *SearchPath) probe(candidate string) (string, bool) {
	if p.goos != "windows" {
		return candidate, isExecutable(candidate)
	}
	if filepath.Ext(candidate) != "" && isRegular(candidate) {
		return candidate, true
	}
	for _, ext := range pathExts() {
		if withExt := candidate + ext; isRegular(withExt) {
			return withExt, true
		}
	}
	return "", false
}

func pathExts() []string {
	raw := os.Getenv("PATHEXT")
	if raw == "" {
		return []string{".com", ".exe", ".bat", ".cmd"}
	}
	var exts []string
	for _, e := range strings.Split(strings.ToLower(raw), ";") {
		if e = strings.TrimSpace(e); e != "" {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts = append(exts, e)
		}
	}
	return exts
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
