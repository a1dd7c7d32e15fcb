// Package catalog holds the static description of every provisionable tool
// and the installation strategies available for it on each platform.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/stigmergylite/internal/assets"
	"github.com/fulmenhq/stigmergylite/internal/schema"
)

// Strategy kinds.
const (
	KindCommand  = "command"
	KindArtifact = "artifact"
)

// Elevation requirements.
const (
	ElevationNone     = "none"
	ElevationRequired = "required"
)

// Missing-tool severities used by diagnostics.
const (
	SeverityIssue   = "issue"
	SeverityWarning = "warning"
)

// PrepareRepairOpenCodeConfig repairs the OpenCode config before installing.
const PrepareRepairOpenCodeConfig = "repair-opencode-config"

// OSAny matches every OS family.
const OSAny = "any"

// Catalog is the decoded tools.yaml document.
type Catalog struct {
	Version int               `yaml:"version"`
	Vars    map[string]string `yaml:"vars"`
	Tools   []ToolSpec        `yaml:"tools"`
}

// ToolSpec describes one provisionable tool. Template fields are rendered per
// environment by Render; the decoded catalog is never mutated.
type ToolSpec struct {
	Name            string       `yaml:"name" json:"name"`
	DisplayName     string       `yaml:"display_name" json:"display_name,omitempty"`
	Executable      string       `yaml:"executable" json:"executable,omitempty"`
	Marker          string       `yaml:"marker" json:"marker,omitempty"`
	Required        bool         `yaml:"required" json:"required"`
	MissingSeverity string       `yaml:"missing_severity" json:"missing_severity,omitempty"`
	VersionProbe    string       `yaml:"version_probe" json:"version_probe,omitempty"`
	MinVersion      string       `yaml:"min_version" json:"min_version,omitempty"`
	Platforms       []string     `yaml:"platforms" json:"platforms,omitempty"`
	Unsupported     []string     `yaml:"unsupported" json:"unsupported,omitempty"`
	ContainerHint   string       `yaml:"container_hint" json:"container_hint,omitempty"`
	Manual          []string     `yaml:"manual" json:"manual,omitempty"`
	Prepare         []string     `yaml:"prepare" json:"prepare,omitempty"`
	WarnIfMissing   []string     `yaml:"warn_if_missing" json:"warn_if_missing,omitempty"`
	ConfigFiles     []ConfigFile `yaml:"config_files" json:"config_files,omitempty"`
	Strategies      []Strategy   `yaml:"strategies" json:"strategies"`
}

// Config file formats.
const (
	FormatJSON = "json"
	FormatTOML = "toml"
)

// ConfigFile is a structured configuration file a tool persists.
type ConfigFile struct {
	Path   string `yaml:"path" json:"path"`
	Format string `yaml:"format" json:"format"`
	// Schema, for json files, is written as "$schema" into a regenerated file.
	Schema string `yaml:"schema" json:"schema,omitempty"`
}

// Strategy is one candidate installation method.
type Strategy struct {
	Label         string            `yaml:"label" json:"label"`
	OS            string            `yaml:"os" json:"os"`
	Kind          string            `yaml:"kind" json:"kind,omitempty"`
	Command       string            `yaml:"command" json:"command,omitempty"`
	Artifact      *Artifact         `yaml:"artifact" json:"artifact,omitempty"`
	Requires      []string          `yaml:"requires" json:"requires,omitempty"`
	RequiresAny   []string          `yaml:"requires_any" json:"requires_any,omitempty"`
	Elevation     string            `yaml:"elevation" json:"elevation,omitempty"`
	Writable      string            `yaml:"writable" json:"writable,omitempty"`
	Platforms     []string          `yaml:"platforms" json:"platforms,omitempty"`
	Network       bool              `yaml:"network" json:"network"`
	Timeout       Duration          `yaml:"timeout" json:"timeout,omitempty"`
	PathEntry     string            `yaml:"path_entry" json:"path_entry,omitempty"`
	MutatesPath   bool              `yaml:"mutates_path" json:"mutates_path"`
	PostGitConfig map[string]string `yaml:"post_git_config" json:"post_git_config,omitempty"`
}

// Artifact is a precompiled release archive.
type Artifact struct {
	URL             string `yaml:"url" json:"url"`
	Format          string `yaml:"format" json:"format,omitempty"`
	Dest            string `yaml:"dest" json:"dest"`
	StripComponents int    `yaml:"strip_components" json:"strip_components,omitempty"`
	SHA256          string `yaml:"sha256" json:"sha256,omitempty"`
}

// Duration decodes "5m"-style YAML scalars.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Value == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	if d == 0 {
		return []byte{}, nil
	}
	return []byte(time.Duration(d).String()), nil
}

// KindOrDefault returns the strategy kind, defaulting to command.
func (s Strategy) KindOrDefault() string {
	if s.Kind == "" {
		return KindCommand
	}
	return s.Kind
}

// NeedsElevation reports whether the strategy only works with elevated privilege.
func (s Strategy) NeedsElevation() bool {
	return s.Elevation == ElevationRequired
}

// Title is the name shown to people.
func (t ToolSpec) Title() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

// Severity returns how diagnostics classify the tool being absent.
func (t ToolSpec) Severity() string {
	if t.MissingSeverity != "" {
		return t.MissingSeverity
	}
	if t.Required {
		return SeverityIssue
	}
	return SeverityWarning
}

// Load reads the catalog: the embedded one, or override when non-empty.
// Either source is schema-validated before decoding.
func Load(override string) (*Catalog, error) {
	data := assets.ToolCatalog
	source := "embedded catalog"
	if override != "" {
		b, err := os.ReadFile(override)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", override, err)
		}
		data, source = b, override
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return c, nil
}

// Parse validates and decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	res, err := schema.ValidateYAML(data, schema.CatalogV1)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		msgs := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("catalog failed schema validation: %s", strings.Join(msgs, "; "))
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	seen := map[string]bool{}
	for _, t := range c.Tools {
		if seen[t.Name] {
			return nil, fmt.Errorf("tool %q declared twice", t.Name)
		}
		seen[t.Name] = true
	}
	return &c, nil
}

// Names returns tool names in declared order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Tools))
	for i, t := range c.Tools {
		names[i] = t.Name
	}
	return names
}

// Tool looks up a tool by name.
func (c *Catalog) Tool(name string) (ToolSpec, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolSpec{}, false
}
