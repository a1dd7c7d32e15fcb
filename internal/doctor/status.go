package doctor

import (
	"context"

	"github.com/fulmenhq/stigmergylite/internal/gitsetup"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// Snapshot is the `status` view: every catalog tool, enabled or not.
type Snapshot struct {
	Environment     platform.Environment         `json:"environment" yaml:"environment" toml:"environment"`
	Tools           []ToolStatus                 `json:"tools" yaml:"tools" toml:"tools"`
	PackageManagers []tools.PackageManagerStatus `json:"package_managers" yaml:"package_managers" toml:"package_managers"`
	Dirs            tools.Dirs                   `json:"dirs" yaml:"dirs" toml:"dirs"`
	GitUser         string                       `json:"git_user,omitempty" yaml:"git_user,omitempty" toml:"git_user,omitempty"`
	GitEmail        string                       `json:"git_email,omitempty" yaml:"git_email,omitempty" toml:"git_email,omitempty"`
	GitBash         *gitsetup.BashEnv            `json:"git_bash,omitempty" yaml:"git_bash,omitempty" toml:"git_bash,omitempty"`
}

// Status takes a Snapshot without recording findings or changing anything.
func (d *Doctor) Status(ctx context.Context) Snapshot {
	s := Snapshot{
		Environment:     d.Env,
		PackageManagers: tools.PackageManagerStatuses(d.Checker, d.Env.GOOS()),
		Dirs:            d.Render.Dirs,
	}
	for _, raw := range d.Catalog.Tools {
		spec, err := d.Render.Render(raw)
		if err != nil {
			s.Tools = append(s.Tools, ToolStatus{Name: raw.Name, Title: raw.Title(), ProbeError: err.Error()})
			continue
		}
		s.Tools = append(s.Tools, d.Inspect(ctx, spec))
	}
	if d.Git != nil {
		s.GitUser, s.GitEmail = d.Git.Identity()
	}
	if d.Bash != nil {
		if p, ok := d.Bash.Find(); ok {
			s.GitBash = &gitsetup.BashEnv{BashPath: p}
		}
	}
	return s
}
