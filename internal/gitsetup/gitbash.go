package gitsetup

import (
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// bashPattern matches bash.exe inside a Git for Windows install root.
const bashPattern = "{bin,usr/bin}/bash.exe"

// unixBash is returned on unix hosts once git is available.
const unixBash = "/bin/bash"

// BashLocator finds a Git Bash executable.
type BashLocator struct {
	GOOS    string
	Getenv  func(string) string
	Checker tools.Checker
	// DirFS opens an install root; defaults to os.DirFS.
	DirFS func(root string) fs.FS
	// Exists defaults to os.Stat.
	Exists func(path string) bool
}

// NewBashLocator returns a locator for the live host.
func NewBashLocator(goos string, checker tools.Checker) *BashLocator {
	return &BashLocator{GOOS: goos, Getenv: os.Getenv, Checker: checker}
}

func (l *BashLocator) dirFS(root string) fs.FS {
	if l.DirFS != nil {
		return l.DirFS(root)
	}
	return os.DirFS(root)
}

func (l *BashLocator) exists(p string) bool {
	if l.Exists != nil {
		return l.Exists(p)
	}
	_, err := os.Stat(p)
	return err == nil
}

func (l *BashLocator) getenv(k string) string {
	if l.Getenv == nil {
		return ""
	}
	return l.Getenv(k)
}

// Roots lists candidate Git install roots in search order.
func (l *BashLocator) Roots() []string {
	if l.GOOS != "windows" {
		if l.GOOS == "linux" {
			return []string{"/mnt/c/Program Files/Git", "/mnt/c/Program Files (x86)/Git"}
		}
		return nil
	}
	roots := []string{`C:\Program Files\Git`, `C:\Program Files (x86)\Git`}
	if pf := l.getenv("ProgramFiles"); pf != "" {
		roots = append(roots, joinWin(pf, "Git"))
	}
	if pf := l.getenv("ProgramFiles(x86)"); pf != "" {
		roots = append(roots, joinWin(pf, "Git"))
	}
	if local := l.getenv("LOCALAPPDATA"); local != "" {
		roots = append(roots, joinWin(local, `Programs\Git`))
	} else if profile := l.getenv("USERPROFILE"); profile != "" {
		roots = append(roots, joinWin(profile, `AppData\Local\Programs\Git`))
	}
	roots = append(roots, `E:\PortableGit`)
	if l.Checker != nil {
		if git, ok := l.Checker.Resolve("git"); ok {
			// <root>\cmd\git.exe or <root>\bin\git.exe
			roots = append(roots, parentWin(parentWin(git)))
		}
	}
	return dedupe(roots)
}

// Find returns the first Git Bash found.
func (l *BashLocator) Find() (string, bool) {
	for _, root := range l.Roots() {
		matches, err := doublestar.Glob(l.dirFS(root), bashPattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		rel := matches[0]
		if slices.Contains(matches, "bin/bash.exe") {
			rel = "bin/bash.exe"
		}
		found := l.join(root, rel)
		logger.Debug("Found Git Bash", logger.String("path", found))
		return found, true
	}
	if l.GOOS != "windows" && l.Checker != nil && l.Checker.Exists("git") && l.exists(unixBash) {
		return unixBash, true
	}
	return "", false
}

func (l *BashLocator) join(root, rel string) string {
	if l.GOOS == "windows" {
		return joinWin(root, rel)
	}
	return strings.TrimRight(root, "/") + "/" + rel
}

// BashEnv is what ConfigureEnv exported.
type BashEnv struct {
	BashPath    string `json:"bash_path,omitempty" yaml:"bash_path,omitempty"`
	InstallRoot string `json:"install_root,omitempty" yaml:"install_root,omitempty"`
}

// ConfigureEnv exports GIT_BASH_PATH (and GIT_INSTALL_ROOT on windows) for
// the rest of the run. It reports false when no Git Bash was found.
func (l *BashLocator) ConfigureEnv(setenv func(k, v string) error) (BashEnv, bool) {
	bash, ok := l.Find()
	if !ok {
		return BashEnv{}, false
	}
	env := BashEnv{BashPath: bash}
	_ = setenv("GIT_BASH_PATH", bash)
	if l.GOOS == "windows" {
		env.InstallRoot = parentWin(parentWin(bash))
		_ = setenv("GIT_INSTALL_ROOT", env.InstallRoot)
	}
	logger.Info("Configured Git Bash", logger.String("GIT_BASH_PATH", env.BashPath), logger.String("GIT_INSTALL_ROOT", env.InstallRoot))
	return env, true
}

func joinWin(root, rel string) string {
	return strings.TrimRight(root, `\/`) + `\` + strings.ReplaceAll(rel, "/", `\`)
}

func parentWin(p string) string {
	p = strings.TrimRight(p, `\/`)
	if i := strings.LastIndexAny(p, `\/`); i > 0 {
		return p[:i]
	}
	return p
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := in[:0]
	for _, s := range in {
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
