package gitsetup

import (
	"context"

	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/logger"
)

// SetupOptions wires AfterInstall.
type SetupOptions struct {
	Config *config.Config
	GOOS   string
	Store  *Store
	Bash   *BashLocator
	Host   Host
	Setenv func(k, v string) error
}

// AfterInstall returns the hook that runs once git is usable: identity
// defaults first, then the Git Bash environment. Nothing happens when git
// ended up unavailable.
func AfterInstall(o SetupOptions) provision.Hook {
	return func(_ context.Context, res *provision.ToolInstallResult) {
		if !res.OK() {
			return
		}
		if o.Config.Git.Configure && o.Store != nil {
			id, err := o.Store.ConfigureIdentity(o.Config.Git, o.GOOS, o.Host)
			switch {
			case err != nil:
				logger.Warn("Could not configure git identity", logger.Err(err))
				res.Warnings = append(res.Warnings, "git identity not configured: "+err.Error())
			case len(id.Changed) > 0:
				logger.Info("Configured git defaults", logger.Int("keys", len(id.Changed)))
			}
			for _, h := range id.Hints {
				res.Warnings = append(res.Warnings, "set it yourself: "+h)
			}
		}
		if o.Config.ConfigureGitBash && o.Bash != nil && o.Setenv != nil {
			if _, ok := o.Bash.ConfigureEnv(o.Setenv); !ok && o.GOOS == "windows" {
				logger.Warn("Git Bash was not found; GIT_BASH_PATH is unset")
				res.Warnings = append(res.Warnings, "Git Bash was not found; GIT_BASH_PATH is unset")
			}
		}
	}
}
