package catalog

import (
	"fmt"
	"maps"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/aymerick/raymond"

	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// Context supplies template values for one environment.
type Context struct {
	Env  platform.Environment
	Home string
	Dirs tools.Dirs
	// Vars come from the catalog's top-level vars block.
	Vars map[string]string
}

var placeholder = regexp.MustCompile(`\{\{\{?\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}?\}\}`)

func gnuArch(a platform.Arch) string {
	switch a {
	case platform.X64:
		return "x86_64"
	case platform.ARM64:
		return "aarch64"
	default:
		return "unknown"
	}
}

func appleArch(a platform.Arch) string {
	if a == platform.ARM64 {
		return "arm64"
	}
	return gnuArch(a)
}

// Values returns the template data, catalog vars first so built-ins win.
func (c Context) Values() map[string]string {
	values := maps.Clone(c.Vars)
	if values == nil {
		values = map[string]string{}
	}
	exe := ""
	if c.Env.IsWindows() {
		exe = ".exe"
	}
	maps.Copy(values, map[string]string{
		"home":           filepath.ToSlash(c.Home),
		"os":             string(c.Env.OSFamily),
		"arch":           string(c.Env.Arch),
		"platform":       c.Env.Platform(),
		"gnu_arch":       gnuArch(c.Env.Arch),
		"apple_arch":     appleArch(c.Env.Arch),
		"exe":            exe,
		"npm_global_bin": filepath.ToSlash(c.Dirs.NpmGlobalBin),
		"bun_bin":        filepath.ToSlash(c.Dirs.BunBin),
		"brew_bin":       filepath.ToSlash(c.Dirs.BrewBin),
	})
	return values
}

// Expand renders one template string.
func (c Context) Expand(tpl string) (string, error) {
	return expand(tpl, c.Values())
}

func expand(tpl string, values map[string]string) (string, error) {
	if tpl == "" {
		return "", nil
	}
	var unknown []string
	for _, m := range placeholder.FindAllStringSubmatch(tpl, -1) {
		if _, ok := values[m[1]]; !ok {
			unknown = append(unknown, m[1])
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return "", fmt.Errorf("unknown template variable(s) %v in %q", unknown, tpl)
	}
	data := make(map[string]interface{}, len(values))
	for k, v := range values {
		data[k] = v
	}
	out, err := raymond.Render(tpl, data)
	if err != nil {
		return "", fmt.Errorf("render %q: %w", tpl, err)
	}
	return out, nil
}

func expandPath(tpl string, values map[string]string) (string, error) {
	out, err := expand(tpl, values)
	if err != nil || out == "" {
		return out, err
	}
	return filepath.Clean(filepath.FromSlash(out)), nil
}

// Render returns a copy of t with every template field expanded for this context.
func (c Context) Render(t ToolSpec) (ToolSpec, error) {
	values := c.Values()
	out := t
	var err error

	wrap := func(field string, e error) error {
		return fmt.Errorf("tool %s: %s: %w", t.Name, field, e)
	}

	if out.Marker, err = expandPath(t.Marker, values); err != nil {
		return ToolSpec{}, wrap("marker", err)
	}
	if out.VersionProbe, err = expand(t.VersionProbe, values); err != nil {
		return ToolSpec{}, wrap("version_probe", err)
	}

	out.Manual = make([]string, len(t.Manual))
	for i, line := range t.Manual {
		if out.Manual[i], err = expand(line, values); err != nil {
			return ToolSpec{}, wrap("manual", err)
		}
	}

	out.ConfigFiles = make([]ConfigFile, len(t.ConfigFiles))
	for i, cf := range t.ConfigFiles {
		out.ConfigFiles[i] = cf
		if out.ConfigFiles[i].Path, err = expandPath(cf.Path, values); err != nil {
			return ToolSpec{}, wrap("config_files", err)
		}
	}

	out.Strategies = make([]Strategy, len(t.Strategies))
	for i, s := range t.Strategies {
		rs, err := renderStrategy(s, values)
		if err != nil {
			return ToolSpec{}, wrap(fmt.Sprintf("strategy %q", s.Label), err)
		}
		out.Strategies[i] = rs
	}
	return out, nil
}

func renderStrategy(s Strategy, values map[string]string) (Strategy, error) {
	out := s
	var err error
	if out.Command, err = expand(s.Command, values); err != nil {
		return Strategy{}, err
	}
	if out.Writable, err = expandPath(s.Writable, values); err != nil {
		return Strategy{}, err
	}
	if out.PathEntry, err = expandPath(s.PathEntry, values); err != nil {
		return Strategy{}, err
	}
	if s.Artifact != nil {
		a := *s.Artifact
		if a.URL, err = expand(a.URL, values); err != nil {
			return Strategy{}, err
		}
		if a.Dest, err = expandPath(a.Dest, values); err != nil {
			return Strategy{}, err
		}
		out.Artifact = &a
	}
	if s.PostGitConfig != nil {
		out.PostGitConfig = maps.Clone(s.PostGitConfig)
	}
	return out, nil
}
