package doctor

import (
	"context"
	"fmt"

	"github.com/fulmenhq/stigmergylite/internal/catalog"
	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// Repair actions.
const (
	FixRefreshPath = "refresh-path"
	FixPersistPath = "persist-path"
	FixResetConfig = "reset-config"
	FixGitBashEnv  = "git-bash-env"
)

// Fix is one repair action. Applied is false when the target was already
// correct or the action could not run; Detail says which.
type Fix struct {
	Action  string `json:"action" yaml:"action" toml:"action"`
	Target  string `json:"target,omitempty" yaml:"target,omitempty" toml:"target,omitempty"`
	Applied bool   `json:"applied" yaml:"applied" toml:"applied"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty" toml:"detail,omitempty"`
}

// Applied filters fixes down to the ones that changed something.
func Applied(fixes []Fix) []Fix {
	var out []Fix
	for _, f := range fixes {
		if f.Applied {
			out = append(out, f)
		}
	}
	return out
}

// Repair applies the fixed set of idempotent corrections to live state. It
// reads the system afresh rather than trusting an earlier Report.
func (d *Doctor) Repair(ctx context.Context) []Fix {
	var fixes []Fix
	dirs := d.Render.Dirs.List()

	if d.Path != nil {
		added := tools.RefreshSearchPath(d.Path, dirs)
		for _, dir := range added {
			fixes = append(fixes, Fix{Action: FixRefreshPath, Target: dir, Applied: true, Detail: "added to session PATH"})
		}
		if len(added) == 0 {
			fixes = append(fixes, Fix{Action: FixRefreshPath, Detail: "session PATH already includes every package-manager directory"})
		}
	}

	if d.Persist != nil && d.Config.Persist.Enabled {
		for _, dir := range dirs {
			if info, ok := d.exists(dir); !ok || !info.IsDir() {
				continue
			}
			fixes = append(fixes, d.persist(ctx, dir))
		}
	}

	for _, name := range d.Config.Tools {
		fixes = append(fixes, d.repairConfigs(name)...)
	}

	if d.Config.ConfigureGitBash && d.Bash != nil && d.Setenv != nil {
		if env, ok := d.Bash.ConfigureEnv(d.Setenv); ok {
			fixes = append(fixes, Fix{Action: FixGitBashEnv, Target: env.BashPath, Applied: true, Detail: "GIT_BASH_PATH exported"})
		} else if d.Env.IsWindows() {
			fixes = append(fixes, Fix{Action: FixGitBashEnv, Detail: "Git Bash not found"})
		}
	}

	for _, f := range Applied(fixes) {
		logger.Info("Applied fix", logger.String("action", f.Action), logger.String("target", f.Target))
	}
	return fixes
}

func (d *Doctor) persist(ctx context.Context, dir string) Fix {
	fix := Fix{Action: FixPersistPath, Target: dir}
	written, err := d.Persist.Persist(ctx, dir)
	switch {
	case err != nil:
		fix.Detail = err.Error()
		logger.Warn("Could not persist PATH entry", logger.String("dir", dir), logger.Err(err))
	case written:
		fix.Applied = true
		fix.Detail = "added to the user PATH store"
	default:
		fix.Detail = "already persisted"
	}
	return fix
}

// repairConfigs resets every corrupt config file the tool tracks.
func (d *Doctor) repairConfigs(tool string) []Fix {
	raw, ok := d.Catalog.Tool(tool)
	if !ok || len(raw.ConfigFiles) == 0 {
		return nil
	}
	spec, err := d.Render.Render(raw)
	if err != nil {
		return []Fix{{Action: FixResetConfig, Target: tool, Detail: err.Error()}}
	}
	var fixes []Fix
	for _, cf := range spec.ConfigFiles {
		backup, changed, err := d.resetConfig(cf)
		switch {
		case err != nil:
			fixes = append(fixes, Fix{Action: FixResetConfig, Target: cf.Path, Detail: err.Error()})
		case changed:
			fixes = append(fixes, Fix{Action: FixResetConfig, Target: cf.Path, Applied: true, Detail: "backed up to " + backup})
			logger.Warn("Reset corrupted config", logger.String("file", cf.Path), logger.String("backup", backup))
		}
	}
	return fixes
}

// Prepare implements provision.Preparer for catalog prepare actions.
func (d *Doctor) Prepare(_ context.Context, action string, spec catalog.ToolSpec) error {
	switch action {
	case catalog.PrepareRepairOpenCodeConfig:
		for _, f := range d.repairConfigs("opencode") {
			if !f.Applied && f.Detail != "" {
				return fmt.Errorf("%s: %s", f.Target, f.Detail)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown prepare action %q for %s", action, spec.Name)
	}
}
