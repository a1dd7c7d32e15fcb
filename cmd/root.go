/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/buildinfo"
	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/exitcode"
	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/notify"
)

// newRootCommand creates a fresh root command instance.
// Tests build isolated trees through it instead of sharing rootCmd.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stigmergylite",
		Short: "Provision AI coding CLIs and the tools they depend on",
		Long: `Stigmergylite installs git, OpenCode, Bun, Oh My OpenCode and a set of AI
command-line tools, picking the cheapest install strategy that works on this
machine and verifying every tool afterwards.

Examples:
   stigmergylite                  # Install everything that is enabled
   stigmergylite --no-clis --qwen # Core tools plus Qwen Code only
   stigmergylite --dry-run        # Show the plan, change nothing
   stigmergylite doctor           # Diagnose the installation
   stigmergylite fix              # Repair PATH and corrupted config files`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initializeLogger(cmd)
		},
		RunE: runInstall,
	}

	pf := cmd.PersistentFlags()
	pf.String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	pf.Bool("json", false, "Output logs in JSON format")
	pf.Bool("no-color", false, "Disable colored output")
	pf.Bool("silent", false, "Only print errors")
	pf.String("config", "", "Config file (default ./stigmergylite.yaml or ~/.stigmergylite/config/stigmergylite.yaml)")
	pf.String("catalog", "", "Tool catalog file overriding the built-in one")
	pf.String("format", formatText, "Output format (text|json|yaml|toml)")

	addInstallFlags(cmd)

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("stigmergylite {{.Version}}\n")
	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newInstallCommand())
	cmd.AddCommand(newInstallOhMyOpenCodeCommand())
	cmd.AddCommand(newDoctorCommand())
	cmd.AddCommand(newFixCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newPersistCommand())
	cmd.AddCommand(newEnvinfoCommand())
	cmd.AddCommand(newVersionCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

func init() {
	registerSubcommands(rootCmd)
}

// Execute runs the command tree and exits with the code the error maps to.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	code := exitCodeFor(err)
	if err != nil {
		var ee *exitcode.ExitError
		if !errors.As(err, &ee) || ee.Err != nil {
			notify.New(os.Stderr, false, false).Errorf("%v", err)
			logger.Debug("Command execution failed", logger.Err(err), logger.String("exit", exitcode.String(code)))
		}
	}
	logger.Close()
	os.Exit(code)
}

// exitCodeFor maps a command error onto the process exit code.
func exitCodeFor(err error) int {
	var ee *exitcode.ExitError
	switch {
	case err == nil:
		return exitcode.Success
	case errors.As(err, &ee):
		return ee.Code
	case errors.Is(err, config.ErrInvalid):
		return exitcode.ConfigError
	case errors.Is(err, context.DeadlineExceeded):
		return exitcode.TimeoutError
	case errors.Is(err, provision.ErrPlatformUnsupported):
		return exitcode.UnsupportedTarget
	case errors.Is(err, provision.ErrStrategyExhausted):
		return exitcode.RequiredToolMissing
	default:
		return exitcode.GeneralError
	}
}

// initializeLogger sets up the logger based on command flags and configuration.
func initializeLogger(cmd *cobra.Command) error {
	if err := logger.Initialize(loggerConfig(cmd)); err != nil {
		return exitcode.WithCode(exitcode.ConfigError, fmt.Errorf("failed to initialize logger: %w", err))
	}
	return nil
}

// loggerConfig reads silent and log.file through the same layers as the run
// config (file, environment, flags) without failing on a broken config file;
// the command itself reports that later.
func loggerConfig(cmd *cobra.Command) logger.Config {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	v := newViper(cmd)
	_ = v.ReadInConfig()

	level := logger.ParseLevel(logLevelStr)
	if v.GetBool("silent") && level < logger.ErrorLevel {
		level = logger.ErrorLevel
	}

	cfg := logger.Config{
		Level:     level,
		UseColor:  !noColor && notify.ColorEnabled(os.Stderr),
		JSON:      jsonLogs,
		Component: "stigmergylite",
	}
	if v.GetBool("log.file") {
		if dir, err := config.GetLogDir(); err == nil {
			cfg.File = filepath.Join(dir, "stigmergylite.log")
		}
	}
	return cfg
}
