package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fulmenhq/stigmergylite/internal/doctor"
	"github.com/fulmenhq/stigmergylite/pkg/ascii"
	"github.com/fulmenhq/stigmergylite/pkg/di"
	"github.com/fulmenhq/stigmergylite/pkg/notify"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show presence and version of every catalog tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			n := newNotifier(cmd, cfg)

			return invoke(cmd, cfg, format, func(i di.Injector) error {
				doc, err := di.ResolveDoctor(i)
				if err != nil {
					return err
				}
				snap := doc.Status(commandContext(cmd))
				if format != formatText {
					return writeStructured(cmd.OutOrStdout(), format, snap)
				}
				renderSnapshot(n, snap)
				return nil
			})
		},
	}
}

func renderSnapshot(n *notify.Notifier, s doctor.Snapshot) {
	n.Titlef("Tools on %s", s.Environment.Platform())
	t := ascii.NewTable("TOOL", "ENABLED", "PRESENT", "VERSION", "PATH")
	for _, st := range s.Tools {
		version := st.Version
		if st.BelowMinimum {
			version += " (outdated)"
		}
		t.Add(st.Title, yesNo(st.Enabled), yesNo(st.Present), version, st.Path)
	}
	n.Plain(t.String())

	n.Titlef("Package managers")
	pm := ascii.NewTable("NAME", "AVAILABLE", "PATH")
	for _, m := range s.PackageManagers {
		pm.Add(m.Name, yesNo(m.Available), m.Path)
	}
	n.Plain(pm.String())

	n.Titlef("Directories")
	dirs := ascii.NewTable("NAME", "PATH")
	dirs.Add("npm global bin", s.Dirs.NpmGlobalBin)
	dirs.Add("bun bin", s.Dirs.BunBin)
	if s.Dirs.BrewBin != "" {
		dirs.Add("brew bin", s.Dirs.BrewBin)
	}
	if s.Dirs.ScoopShims != "" {
		dirs.Add("scoop shims", s.Dirs.ScoopShims)
	}
	n.Plain(dirs.String())

	if s.GitUser != "" || s.GitEmail != "" {
		n.Infof("git identity: %s <%s>", s.GitUser, s.GitEmail)
	}
	if s.GitBash != nil {
		n.Infof("Git Bash: %s", s.GitBash.BashPath)
	}
}
