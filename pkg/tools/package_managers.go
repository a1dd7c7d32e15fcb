package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fulmenhq/stigmergylite/pkg/logger"
)

// PackageManager describes a package manager some strategy may rely on.
type PackageManager struct {
	Name            string   `json:"name" yaml:"name"`
	Executable      string   `json:"executable" yaml:"executable"`
	Platforms       []string `json:"platforms" yaml:"platforms"`
	InstallationURL string   `json:"installation_url" yaml:"installation_url"`
}

// KnownManagers is every package manager the catalog strategies reference.
var KnownManagers = []PackageManager{
	{Name: "winget", Executable: "winget", Platforms: []string{"windows"}, InstallationURL: "https://learn.microsoft.com/windows/package-manager/winget/"},
	{Name: "chocolatey", Executable: "choco", Platforms: []string{"windows"}, InstallationURL: "https://chocolatey.org/install"},
	{Name: "scoop", Executable: "scoop", Platforms: []string{"windows"}, InstallationURL: "https://scoop.sh"},
	{Name: "brew", Executable: "brew", Platforms: []string{"darwin", "linux"}, InstallationURL: "https://brew.sh"},
	{Name: "apt-get", Executable: "apt-get", Platforms: []string{"linux"}},
	{Name: "dnf", Executable: "dnf", Platforms: []string{"linux"}},
	{Name: "yum", Executable: "yum", Platforms: []string{"linux"}},
	{Name: "pacman", Executable: "pacman", Platforms: []string{"linux"}},
	{Name: "npm", Executable: "npm", Platforms: []string{"windows", "darwin", "linux"}, InstallationURL: "https://nodejs.org"},
	{Name: "bun", Executable: "bun", Platforms: []string{"windows", "darwin", "linux"}, InstallationURL: "https://bun.sh"},
}

// PackageManagerStatus represents the status of a package manager.
type PackageManagerStatus struct {
	Name            string `json:"name" yaml:"name"`
	Available       bool   `json:"available" yaml:"available"`
	Path            string `json:"path,omitempty" yaml:"path,omitempty"`
	InstallationURL string `json:"installation_url,omitempty" yaml:"installation_url,omitempty"`
}

// PackageManagerStatuses reports the managers relevant to goos, in KnownManagers order.
func PackageManagerStatuses(checker Checker, goos string) []PackageManagerStatus {
	var statuses []PackageManagerStatus
	for _, m := range KnownManagers {
		if !slices.Contains(m.Platforms, goos) {
			continue
		}
		p, ok := checker.Resolve(m.Executable)
		statuses = append(statuses, PackageManagerStatus{
			Name:            m.Name,
			Available:       ok,
			Path:            p,
			InstallationURL: m.InstallationURL,
		})
	}
	return statuses
}

// BrewLocation represents different types of Homebrew installations.
type BrewLocation int

const (
	// BrewNotFound indicates no Homebrew installation was detected
	BrewNotFound BrewLocation = iota
	// BrewSystemAppleSilicon indicates Homebrew at /opt/homebrew (Apple Silicon macOS)
	BrewSystemAppleSilicon
	// BrewSystemIntel indicates Homebrew at /usr/local (Intel macOS)
	BrewSystemIntel
	// BrewSystemLinux indicates Homebrew at /home/linuxbrew/.linuxbrew (Linux standard)
	BrewSystemLinux
	// BrewCustom indicates Homebrew on PATH at a non-standard location
	BrewCustom
)

// String returns the string representation of BrewLocation.
func (l BrewLocation) String() string {
	switch l {
	case BrewNotFound:
		return "not_found"
	case BrewSystemAppleSilicon:
		return "system_apple_silicon"
	case BrewSystemIntel:
		return "system_intel"
	case BrewSystemLinux:
		return "system_linux"
	case BrewCustom:
		return "custom"
	default:
		return "unknown"
	}
}

var brewSystemPaths = []struct {
	loc  BrewLocation
	path string
}{
	{BrewSystemAppleSilicon, "/opt/homebrew/bin/brew"},
	{BrewSystemIntel, "/usr/local/bin/brew"},
	{BrewSystemLinux, "/home/linuxbrew/.linuxbrew/bin/brew"},
}

// DetectBrew finds Homebrew, preferring the standard system locations over
// whatever the session PATH resolves.
func DetectBrew(checker Checker) (BrewLocation, string, error) {
	for _, candidate := range brewSystemPaths {
		if fileExists(candidate.path) {
			logger.Debug("detected system brew",
				logger.String("location", candidate.loc.String()),
				logger.String("path", candidate.path))
			return candidate.loc, candidate.path, nil
		}
	}

	if brewPath, ok := checker.Resolve("brew"); ok {
		loc := classifyBrewPath(brewPath)
		logger.Debug("detected brew in PATH",
			logger.String("location", loc.String()),
			logger.String("path", brewPath))
		return loc, brewPath, nil
	}

	return BrewNotFound, "", fmt.Errorf("brew not found")
}

// classifyBrewPath determines the BrewLocation type from a brew binary path.
func classifyBrewPath(brewPath string) BrewLocation {
	switch {
	case strings.HasPrefix(brewPath, "/opt/homebrew"):
		return BrewSystemAppleSilicon
	case strings.HasPrefix(brewPath, "/usr/local"):
		return BrewSystemIntel
	case strings.HasPrefix(brewPath, "/home/linuxbrew"):
		return BrewSystemLinux
	default:
		return BrewCustom
	}
}

// fileExists checks if a file exists and is accessible.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Dirs are the canonical directories package managers install executables into.
type Dirs struct {
	NpmGlobalBin string `json:"npm_global_bin" yaml:"npm_global_bin"`
	BunBin       string `json:"bun_bin" yaml:"bun_bin"`
	BrewBin      string `json:"brew_bin,omitempty" yaml:"brew_bin,omitempty"`
	ScoopShims   string `json:"scoop_shims,omitempty" yaml:"scoop_shims,omitempty"`
}

// NpmGlobalBin is where `npm install -g` places executables for the user.
// NPM_CONFIG_PREFIX wins when set.
func NpmGlobalBin(goos, home string, getenv func(string) string) string {
	if prefix := getenv("NPM_CONFIG_PREFIX"); prefix != "" {
		if goos == "windows" {
			return prefix
		}
		return filepath.Join(prefix, "bin")
	}
	if goos == "windows" {
		appData := getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "npm")
	}
	return filepath.Join(home, ".npm-global", "bin")
}

// CanonicalDirs computes the package-manager directories for goos under home.
func CanonicalDirs(goos, home string, getenv func(string) string, checker Checker) Dirs {
	d := Dirs{
		NpmGlobalBin: NpmGlobalBin(goos, home, getenv),
		BunBin:       filepath.Join(home, ".bun", "bin"),
	}
	if goos == "windows" {
		d.ScoopShims = filepath.Join(home, "scoop", "shims")
	} else if loc, brewPath, err := DetectBrew(checker); err == nil && loc != BrewNotFound {
		d.BrewBin = filepath.Dir(brewPath)
	}
	return d
}

// List returns the non-empty directories in refresh priority order.
func (d Dirs) List() []string {
	var out []string
	for _, dir := range []string{d.NpmGlobalBin, d.BunBin, d.BrewBin, d.ScoopShims} {
		if dir != "" {
			out = append(out, dir)
		}
	}
	return out
}

// RefreshSearchPath prepends every existing dir that is not yet on the session
// and returns the ones it added.
func RefreshSearchPath(p *SearchPath, dirs []string) []string {
	var added []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		if p.Prepend(dir) {
			logger.Debug("added directory to session PATH", logger.String("dir", dir))
			added = append(added, dir)
		}
	}
	return added
}
