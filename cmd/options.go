package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/di"
	"github.com/fulmenhq/stigmergylite/pkg/exitcode"
	"github.com/fulmenhq/stigmergylite/pkg/notify"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

// toggle flips tools on or off when its flag is set.
type toggle struct {
	flag   string
	usage  string
	enable bool
	tools  []string
}

// Disables apply before enables, so --no-clis --qwen keeps only Qwen Code.
var toggles = []toggle{
	{flag: "no-opencode", usage: "Skip OpenCode", tools: []string{"opencode"}},
	{flag: "no-bun", usage: "Skip Bun", tools: []string{"bun"}},
	{flag: "no-oh-my-opencode", usage: "Skip Oh My OpenCode", tools: []string{"oh-my-opencode"}},
	{flag: "no-clis", usage: "Skip every optional AI CLI", tools: config.CLITools},
	{flag: "codebuddy", usage: "Install CodeBuddy", enable: true, tools: []string{"codebuddy"}},
	{flag: "iflow", usage: "Install iFlow CLI", enable: true, tools: []string{"iflow"}},
	{flag: "qoder", usage: "Install Qoder CLI", enable: true, tools: []string{"qodercli"}},
	{flag: "qwen", usage: "Install Qwen Code", enable: true, tools: []string{"qwen"}},
}

func addInstallFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	for _, t := range toggles {
		f.Bool(t.flag, false, t.usage)
	}
	f.Bool("no-auto-install", false, "Report missing tools without installing them")
	f.Bool("no-git-bash", false, "Do not export GIT_BASH_PATH")
	f.Bool("no-git-config", false, "Do not write git identity defaults")
	f.Bool("no-persist", false, "Do not write PATH changes to shell profiles or the registry")
	f.Bool("dry-run", false, "Print the resolved install plan and change nothing")
}

// newViper binds the flags this command defines onto a fresh config viper.
func newViper(cmd *cobra.Command) *viper.Viper {
	v := config.NewViper()
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		v.SetConfigFile(file)
	}
	for key, flag := range map[string]string{
		"silent":  "silent",
		"catalog": "catalog",
		"dry_run": "dry-run",
	} {
		if fl := cmd.Flags().Lookup(flag); fl != nil {
			_ = v.BindPFlag(key, fl)
		}
	}
	return v
}

// loadConfig layers defaults, config file, environment and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(newViper(cmd))
	if err != nil {
		return nil, exitcode.WithCode(exitcode.ConfigError, err)
	}
	applyToggles(cmd.Flags(), cfg)
	return cfg, nil
}

func applyToggles(f *pflag.FlagSet, cfg *config.Config) {
	set := func(name string) bool {
		v, err := f.GetBool(name)
		return err == nil && v
	}
	for _, t := range toggles {
		if !t.enable && set(t.flag) {
			cfg.Disable(t.tools...)
		}
	}
	for _, t := range toggles {
		if t.enable && set(t.flag) {
			cfg.Enable(t.tools...)
		}
	}
	if set("no-auto-install") {
		cfg.AutoInstall = false
	}
	if set("no-git-bash") {
		cfg.ConfigureGitBash = false
	}
	if set("no-git-config") {
		cfg.Git.Configure = false
	}
	if set("no-persist") {
		cfg.Persist.Enabled = false
	}
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case formatText, formatJSON, formatYAML, formatTOML:
		return format, nil
	default:
		return "", exitcode.WithCode(exitcode.ConfigError, fmt.Errorf("unknown format %q (want text, json, yaml or toml)", format))
	}
}

func newNotifier(cmd *cobra.Command, cfg *config.Config) *notify.Notifier {
	noColor, _ := cmd.Flags().GetBool("no-color")
	return notify.New(cmd.OutOrStdout(), cfg.Silent, noColor)
}

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newRuntime is swapped in tests.
var newRuntime = func() *di.Runtime { return di.NewRuntime() }

// invoke runs handler against the live components for cfg.
func invoke(cmd *cobra.Command, cfg *config.Config, format string, handler func(di.Injector) error) error {
	s := di.Settings{
		Config:      cfg,
		Interactive: interactive(),
		Stream:      !cfg.Silent && format == formatText,
		Context:     commandContext(cmd),
	}
	return newRuntime().Invoke(handler, di.WithSettings(s))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
