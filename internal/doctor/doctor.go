package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/fulmenhq/stigmergylite/internal/catalog"
	"github.com/fulmenhq/stigmergylite/internal/gitsetup"
	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// Doctor diagnoses and repairs the tools a run provisions.
type Doctor struct {
	Catalog *catalog.Catalog
	Config  *config.Config
	Env     platform.Environment
	Render  catalog.Context
	Checker tools.Checker
	Runner  tools.Executor
	Path    *tools.SearchPath
	Persist provision.Persister
	Git     *gitsetup.Store
	Bash    *gitsetup.BashLocator

	ProbeTimeout time.Duration

	// FS opens a directory; defaults to osfs.New.
	FS     func(dir string) billy.Filesystem
	Getenv func(string) string
	Setenv func(key, value string) error
	Now    func() time.Time
}

func (d *Doctor) fs(dir string) billy.Filesystem {
	if d.FS != nil {
		return d.FS(dir)
	}
	return osfs.New(dir)
}

func (d *Doctor) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Doctor) getenv(k string) string {
	if d.Getenv != nil {
		return d.Getenv(k)
	}
	return os.Getenv(k)
}

// exists stats path through the injected filesystem.
func (d *Doctor) exists(path string) (os.FileInfo, bool) {
	fs, name := d.openDir(path)
	info, err := fs.Stat(name)
	return info, err == nil
}

// enabled renders the enabled tools in configured order.
func (d *Doctor) enabled(r *Report) []catalog.ToolSpec {
	var out []catalog.ToolSpec
	for _, name := range d.Config.Tools {
		raw, ok := d.Catalog.Tool(name)
		if !ok {
			continue
		}
		spec, err := d.Render.Render(raw)
		if err != nil {
			r.Add(SeverityWarning, Finding{Check: CheckTool, Tool: name, Message: err.Error()})
			continue
		}
		out = append(out, spec)
	}
	return out
}

// Diagnose runs every check against live state. No check stops another.
func (d *Doctor) Diagnose(ctx context.Context) *Report {
	r := NewReport(d.Env, d.now())
	specs := d.enabled(r)

	for _, spec := range specs {
		r.Tools[spec.Name] = d.checkTool(ctx, spec, r)
	}
	d.checkBunx(r)
	d.checkPath(r)
	for _, spec := range specs {
		for _, cf := range spec.ConfigFiles {
			d.checkConfig(spec, cf, r)
		}
	}
	d.checkGit(r)

	logger.Debug("Diagnostics complete",
		logger.Int("issues", len(r.Issues)),
		logger.Int("warnings", len(r.Warnings)),
		logger.Bool("healthy", r.Healthy))
	return r
}

// Inspect reports presence and version of one tool without recording findings.
func (d *Doctor) Inspect(ctx context.Context, spec catalog.ToolSpec) ToolStatus {
	st := ToolStatus{
		Name:     spec.Name,
		Title:    spec.Title(),
		Required: spec.Required,
		Enabled:  d.Config.Enabled(spec.Name),
	}
	if spec.Marker != "" {
		if _, ok := d.exists(spec.Marker); ok {
			st.Present, st.Path = true, spec.Marker
		}
		return st
	}
	path, ok := d.Checker.Resolve(spec.Executable)
	if !ok {
		return st
	}
	st.Present, st.Path = true, path
	if spec.VersionProbe == "" || d.Runner == nil {
		return st
	}
	res, err := d.Runner.Execute(ctx, tools.ExecuteOptions{Command: spec.VersionProbe, Timeout: d.ProbeTimeout})
	switch {
	case err != nil:
		st.ProbeError = err.Error()
	case !res.Succeeded():
		st.ProbeError = provision.DescribeFailure(res)
	default:
		st.Version = catalog.FirstLine(string(res.Stdout))
		st.BelowMinimum = spec.BelowMinimum(st.Version)
	}
	return st
}

func (d *Doctor) checkTool(ctx context.Context, spec catalog.ToolSpec, r *Report) ToolStatus {
	st := d.Inspect(ctx, spec)
	switch {
	case !st.Present:
		sev := SeverityWarning
		if spec.Severity() == catalog.SeverityIssue {
			sev = SeverityIssue
		}
		r.Add(sev, Finding{
			Check:   CheckTool,
			Tool:    spec.Name,
			Message: spec.Title() + " is not installed",
			Hint:    strings.Join(spec.Manual, " or "),
		})
	case st.ProbeError != "":
		r.Add(SeverityWarning, Finding{
			Check:   CheckTool,
			Tool:    spec.Name,
			Message: fmt.Sprintf("%s is on PATH but %q failed: %s", spec.Title(), spec.VersionProbe, st.ProbeError),
			Kind:    provision.ErrVerificationFailed,
		})
	case st.BelowMinimum:
		r.Add(SeverityWarning, Finding{
			Check:   CheckVersionMin,
			Tool:    spec.Name,
			Message: fmt.Sprintf("%s %s is older than %s", spec.Title(), st.Version, spec.MinVersion),
		})
	}
	if st.Present && spec.Marker != "" {
		d.listPlugins(spec, r)
	}
	return st
}

// listPlugins records what a marker-directory tool has installed.
func (d *Doctor) listPlugins(spec catalog.ToolSpec, r *Report) {
	dir := filepath.Join(spec.Marker, "plugins")
	info, ok := d.exists(dir)
	if !ok || !info.IsDir() {
		return
	}
	entries, err := d.fs(dir).ReadDir(".")
	if err != nil {
		r.Add(SeverityWarning, Finding{Check: CheckPlugins, Tool: spec.Name, Message: "cannot read " + dir + ": " + err.Error()})
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	msg := fmt.Sprintf("%s: %d plugin(s) installed", spec.Title(), len(names))
	if len(names) > 0 {
		msg += ": " + strings.Join(names, ", ")
	}
	r.Add(SeverityInfo, Finding{Check: CheckPlugins, Tool: spec.Name, Message: msg})
}

func (d *Doctor) checkBunx(r *Report) {
	if !d.Config.Enabled("bun") || !d.Checker.Exists("bun") || d.Checker.Exists("bunx") {
		return
	}
	r.Add(SeverityIssue, Finding{
		Check:   CheckBunx,
		Tool:    "bun",
		Message: "bun is installed but bunx is not on PATH",
		Hint:    "reinstall Bun with: npm install -g bun",
	})
}

// checkPath flags a package-manager directory that exists but is missing
// from the session PATH.
func (d *Doctor) checkPath(r *Report) {
	dir := d.Render.Dirs.NpmGlobalBin
	if dir == "" || d.Path == nil {
		return
	}
	if info, ok := d.exists(dir); !ok || !info.IsDir() {
		r.Add(SeverityInfo, Finding{Check: CheckPath, Message: "npm global directory " + dir + " does not exist yet"})
		return
	}
	if d.Path.Contains(dir) {
		return
	}
	r.PathComplete = false
	shell := DetectShell(d.Env.GOOS(), d.getenv)
	r.Add(SeverityIssue, Finding{
		Check:   CheckPath,
		Message: "PATH is missing the npm global directory " + dir,
		Hint:    ActivationLine(shell, dir),
	})
}

func (d *Doctor) checkConfig(spec catalog.ToolSpec, cf catalog.ConfigFile, r *Report) {
	st := d.inspectConfig(spec.Name, cf)
	r.Configs = append(r.Configs, st)

	switch {
	case !st.Exists:
		r.Add(SeverityInfo, Finding{Check: CheckConfig, Tool: spec.Name, Message: cf.Path + " does not exist yet"})
	case !st.Valid:
		r.ConfigValid = false
		r.Add(SeverityIssue, Finding{
			Check:   CheckConfig,
			Tool:    spec.Name,
			Message: fmt.Sprintf("%s is corrupted: %s", cf.Path, st.Error),
			Hint:    "run 'stigmergylite fix' to back it up and reset it",
			Kind:    provision.ErrConfigCorrupted,
		})
	case len(st.Keys) > 0:
		r.Add(SeverityInfo, Finding{Check: CheckConfig, Tool: spec.Name, Message: fmt.Sprintf("%s (%d bytes): %s", cf.Path, st.Size, strings.Join(st.Keys, ", "))})
	}

	dir := filepath.Dir(cf.Path)
	if info, ok := d.exists(dir); ok && info.IsDir() && !st.Writable {
		r.Add(SeverityIssue, Finding{
			Check:   CheckConfigDir,
			Tool:    spec.Name,
			Message: "configuration directory " + dir + " is not writable",
		})
	}
}

func (d *Doctor) checkGit(r *Report) {
	if !d.Config.Enabled("git") || !d.Checker.Exists("git") {
		return
	}
	if d.Git != nil {
		name, email := d.Git.Identity()
		var missing []string
		if name == "" {
			missing = append(missing, `git config --global user.name "Your Name"`)
		}
		if email == "" {
			missing = append(missing, `git config --global user.email "you@example.com"`)
		}
		if len(missing) > 0 {
			r.Add(SeverityWarning, Finding{
				Check:   CheckGitIdent,
				Tool:    "git",
				Message: "git identity is incomplete",
				Hint:    strings.Join(missing, "; "),
			})
		}
	}
	if d.Env.IsWindows() && d.Bash != nil {
		if _, ok := d.Bash.Find(); !ok {
			r.Add(SeverityIssue, Finding{
				Check:   CheckGitBash,
				Tool:    "git",
				Message: "Git Bash was not found",
				Hint:    "install Git for Windows from https://git-scm.com/download/win",
			})
		}
	}
}
