// Package platform captures the host facts provisioning decisions depend on.
package platform

import (
	"bufio"
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// OSFamily is the operating-system family.
type OSFamily string

const (
	Windows   OSFamily = "windows"
	MacOS     OSFamily = "macos"
	Linux     OSFamily = "linux"
	UnknownOS OSFamily = "unknown"
)

// Arch is the CPU architecture.
type Arch string

const (
	X64       Arch = "x64"
	ARM64     Arch = "arm64"
	OtherArch Arch = "other"
)

// ErrIndeterminate is logged when the host cannot be classified; it never
// escapes Detect, which degrades to UnknownOS/OtherArch instead.
var ErrIndeterminate = errors.New("environment indeterminate")

// Environment is an immutable snapshot taken once per run.
type Environment struct {
	OSFamily             OSFamily `json:"os_family" yaml:"os_family" toml:"os_family"`
	Arch                 Arch     `json:"arch" yaml:"arch" toml:"arch"`
	IsContainer          bool     `json:"is_container" yaml:"is_container" toml:"is_container"`
	HasElevatedPrivilege bool     `json:"has_elevated_privilege" yaml:"has_elevated_privilege" toml:"has_elevated_privilege"`
}

// Platform renders the "<os>-<arch>" key used by catalog platform lists.
func (e Environment) Platform() string {
	return string(e.OSFamily) + "-" + string(e.Arch)
}

func (e Environment) IsWindows() bool { return e.OSFamily == Windows }

// GOOS maps the family back to a Go GOOS value.
func (e Environment) GOOS() string {
	switch e.OSFamily {
	case MacOS:
		return "darwin"
	case Windows, Linux:
		return string(e.OSFamily)
	default:
		return runtime.GOOS
	}
}

// ClassifyOS maps a GOOS value to a family.
func ClassifyOS(goos string) (OSFamily, error) {
	switch goos {
	case "windows":
		return Windows, nil
	case "darwin":
		return MacOS, nil
	case "linux":
		return Linux, nil
	default:
		return UnknownOS, ErrIndeterminate
	}
}

// ClassifyArch maps a GOARCH value to an Arch.
func ClassifyArch(goarch string) (Arch, error) {
	switch goarch {
	case "amd64":
		return X64, nil
	case "arm64":
		return ARM64, nil
	default:
		return OtherArch, ErrIndeterminate
	}
}

var cgroupMarkers = []string{"docker", "containerd", "kubepods", "lxc", "libpod"}

// Probe detects the Environment. Every field is injectable for tests.
type Probe struct {
	GOOS   string
	GOARCH string
	// Root is the filesystem marker files are read from, rooted at "/".
	Root    billy.Filesystem
	Runner  tools.Executor
	Getenv  func(string) string
	Geteuid func() int
	Timeout time.Duration
}

// NewProbe returns a probe for the running host.
func NewProbe(runner tools.Executor, timeout time.Duration) *Probe {
	return &Probe{
		GOOS:    runtime.GOOS,
		GOARCH:  runtime.GOARCH,
		Root:    osfs.New("/"),
		Runner:  runner,
		Getenv:  os.Getenv,
		Geteuid: os.Geteuid,
		Timeout: timeout,
	}
}

// Detect never fails: unreadable facts degrade to their conservative value.
func (p *Probe) Detect(ctx context.Context) Environment {
	family, err := ClassifyOS(p.GOOS)
	if err != nil {
		logger.Warn("could not classify operating system", logger.String("goos", p.GOOS), logger.Err(err))
	}
	arch, err := ClassifyArch(p.GOARCH)
	if err != nil {
		logger.Debug("unrecognised architecture", logger.String("goarch", p.GOARCH))
	}

	env := Environment{
		OSFamily:    family,
		Arch:        arch,
		IsContainer: p.inContainer(),
	}
	env.HasElevatedPrivilege = p.elevated(ctx, family)

	logger.Debug("environment detected",
		logger.String("platform", env.Platform()),
		logger.Bool("container", env.IsContainer),
		logger.Bool("elevated", env.HasElevatedPrivilege))
	return env
}

func (p *Probe) inContainer() bool {
	if p.Root == nil {
		return false
	}
	for _, marker := range []string{"/.dockerenv", "/run/.containerenv"} {
		if _, err := p.Root.Stat(marker); err == nil {
			return true
		}
	}
	if p.Getenv != nil && p.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}

	f, err := p.Root.Open("/proc/self/cgroup")
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		for _, m := range cgroupMarkers {
			if strings.Contains(line, m) {
				return true
			}
		}
	}
	return false
}

// elevated runs a no-op privileged command; any error means not elevated.
func (p *Probe) elevated(ctx context.Context, family OSFamily) bool {
	if family != Windows && p.Geteuid != nil && p.Geteuid() == 0 {
		return true
	}
	if p.Runner == nil {
		return false
	}

	opts := tools.ExecuteOptions{Tool: "sudo", Args: []string{"-n", "true"}, Timeout: p.Timeout}
	if family == Windows {
		opts = tools.ExecuteOptions{Tool: "net", Args: []string{"session"}, Timeout: p.Timeout}
	}

	res, err := p.Runner.Execute(ctx, opts)
	if err != nil {
		logger.Trace("privilege probe could not start", logger.Err(err))
		return false
	}
	return res.Succeeded()
}
