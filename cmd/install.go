package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/di"
	"github.com/fulmenhq/stigmergylite/pkg/exitcode"
	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/notify"
)

func newInstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install every enabled tool (the default command)",
		Args:  cobra.NoArgs,
		RunE:  runInstall,
	}
	addInstallFlags(cmd)
	return cmd
}

func runInstall(cmd *cobra.Command, _ []string) error {
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
		orch, err := di.ResolveOrchestrator(i)
		if err != nil {
			return exitcode.WithCode(exitcode.ConfigError, err)
		}

		if cfg.DryRun {
			plans, err := orch.PlanAll()
			if err != nil {
				return err
			}
			if format != formatText {
				return writeStructured(cmd.OutOrStdout(), format, planOutput{Environment: orch.Environment(), Plans: plans})
			}
			renderPlans(n, orch.Environment(), plans)
			return nil
		}

		n.Titlef("Provisioning %d tool(s) on %s", len(orch.Order()), orch.Environment().Platform())
		sum, runErr := orch.InstallAll(commandContext(cmd))
		return finishInstall(cmd, n, format, sum, runErr)
	})
}

// finishInstall renders a run and maps a fatal error to the exit code.
func finishInstall(cmd *cobra.Command, n *notify.Notifier, format string, sum *provision.Summary, runErr error) error {
	if format != formatText {
		if err := writeStructured(cmd.OutOrStdout(), format, sum); err != nil {
			return err
		}
	} else {
		renderSummary(n, sum)
	}
	if runErr != nil {
		logger.Debug("Provisioning aborted", logger.Err(runErr))
		return exitcode.WithCode(exitCodeFor(runErr), runErr)
	}
	return nil
}

func newInstallOhMyOpenCodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install-oh-my-opencode",
		Short: "Install Oh My OpenCode together with the OpenCode and Bun it needs",
		Long: `Installs OpenCode and Bun first and stops if either is unavailable.
The OpenCode configuration is checked and, when corrupted, backed up and reset
before Oh My OpenCode itself is installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Tools = nil
			cfg.Enable(ohMyOpenCodeChain...)
			n := newNotifier(cmd, cfg)

			return invoke(cmd, cfg, format, func(i di.Injector) error {
				orch, err := di.ResolveOrchestrator(i)
				if err != nil {
					return exitcode.WithCode(exitcode.ConfigError, err)
				}
				n.Titlef("Installing Oh My OpenCode on %s", orch.Environment().Platform())
				sum, runErr := orch.InstallChain(commandContext(cmd), ohMyOpenCodeChain...)
				if runErr != nil {
					runErr = exitcode.WithCode(exitcode.RequiredToolMissing, runErr)
				}
				return finishInstall(cmd, n, format, sum, runErr)
			})
		},
	}
}

// ohMyOpenCodeChain is the install order for install-oh-my-opencode.
var ohMyOpenCodeChain = []string{"opencode", "bun", "oh-my-opencode"}
