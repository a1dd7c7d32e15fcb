package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (STIGMERGYLITE_AUTO_INSTALL, ...).
const EnvPrefix = "STIGMERGYLITE"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the run configuration. It is validated once, before any tool is touched.
type Config struct {
	Silent           bool          `mapstructure:"silent" json:"silent" yaml:"silent"`
	AutoInstall      bool          `mapstructure:"auto_install" json:"auto_install" yaml:"auto_install"`
	ConfigureGitBash bool          `mapstructure:"configure_git_bash" json:"configure_git_bash" yaml:"configure_git_bash"`
	DryRun           bool          `mapstructure:"dry_run" json:"dry_run" yaml:"dry_run"`
	Tools            []string      `mapstructure:"tools" json:"tools" yaml:"tools"`
	Git              GitConfig     `mapstructure:"git" json:"git" yaml:"git"`
	Timeouts         TimeoutConfig `mapstructure:"timeouts" json:"timeouts" yaml:"timeouts"`
	Retry            RetryConfig   `mapstructure:"retry" json:"retry" yaml:"retry"`
	Persist          PersistConfig `mapstructure:"persist" json:"persist" yaml:"persist"`
	Catalog          string        `mapstructure:"catalog" json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Log              LogConfig     `mapstructure:"log" json:"log" yaml:"log"`
}

// GitConfig controls the identity defaults written to ~/.gitconfig.
type GitConfig struct {
	Configure     bool   `mapstructure:"configure" json:"configure" yaml:"configure"`
	UserName      string `mapstructure:"user_name" json:"user_name,omitempty" yaml:"user_name,omitempty"`
	UserEmail     string `mapstructure:"user_email" json:"user_email,omitempty" yaml:"user_email,omitempty"`
	DefaultBranch string `mapstructure:"default_branch" json:"default_branch" yaml:"default_branch"`
}

// TimeoutConfig bounds every external command by its expected cost.
type TimeoutConfig struct {
	Install   time.Duration `mapstructure:"install" json:"install" yaml:"install"`
	Download  time.Duration `mapstructure:"download" json:"download" yaml:"download"`
	Probe     time.Duration `mapstructure:"probe" json:"probe" yaml:"probe"`
	Privilege time.Duration `mapstructure:"privilege" json:"privilege" yaml:"privilege"`
}

// RetryConfig applies to network-dependent strategies only.
type RetryConfig struct {
	Attempts  int           `mapstructure:"attempts" json:"attempts" yaml:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay" json:"base_delay" yaml:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay"`
}

type PersistConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
}

type LogConfig struct {
	// File enables the rotating log under ~/.stigmergylite/logs.
	File bool `mapstructure:"file" json:"file" yaml:"file"`
}

// DefaultTools is the provisioning order used when no tool list is configured.
var DefaultTools = []string{"git", "opencode", "bun", "oh-my-opencode", "codebuddy", "iflow", "qodercli", "qwen"}

// CLITools are the optional AI command-line tools toggled together by --no-clis.
var CLITools = []string{"codebuddy", "iflow", "qodercli", "qwen"}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AutoInstall:      true,
		ConfigureGitBash: true,
		Tools:            slices.Clone(DefaultTools),
		Git: GitConfig{
			Configure:     true,
			DefaultBranch: "main",
		},
		Timeouts: TimeoutConfig{
			Install:   5 * time.Minute,
			Download:  10 * time.Minute,
			Probe:     30 * time.Second,
			Privilege: 10 * time.Second,
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: time.Second,
			MaxDelay:  4 * time.Second,
		},
		Persist: PersistConfig{Enabled: true},
	}
}

// NewViper returns a viper instance with defaults, search paths and environment
// binding applied. Callers may bind flags onto it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("silent", d.Silent)
	v.SetDefault("auto_install", d.AutoInstall)
	v.SetDefault("configure_git_bash", d.ConfigureGitBash)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("tools", d.Tools)
	v.SetDefault("git.configure", d.Git.Configure)
	v.SetDefault("git.user_name", d.Git.UserName)
	v.SetDefault("git.user_email", d.Git.UserEmail)
	v.SetDefault("git.default_branch", d.Git.DefaultBranch)
	v.SetDefault("timeouts.install", d.Timeouts.Install)
	v.SetDefault("timeouts.download", d.Timeouts.Download)
	v.SetDefault("timeouts.probe", d.Timeouts.Probe)
	v.SetDefault("timeouts.privilege", d.Timeouts.Privilege)
	v.SetDefault("retry.attempts", d.Retry.Attempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("persist.enabled", d.Persist.Enabled)
	v.SetDefault("catalog", d.Catalog)
	v.SetDefault("log.file", d.Log.File)

	v.SetConfigName("stigmergylite")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := GetHome(); err == nil {
		v.AddConfigPath(filepath.Join(home, "config"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present), the optional config file, environment and any
// bound flags into a Config. A missing config file is not an error; a malformed one is.
func Load(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration against the set of tool names the catalog
// knows about. It is meant to run exactly once per process.
func (c *Config) Validate(known []string) error {
	var problems []string

	seen := make(map[string]bool, len(c.Tools))
	for _, name := range c.Tools {
		switch {
		case !slices.Contains(known, name):
			problems = append(problems, fmt.Sprintf("unknown tool %q", name))
		case seen[name]:
			problems = append(problems, fmt.Sprintf("tool %q listed twice", name))
		}
		seen[name] = true
	}

	for label, d := range map[string]time.Duration{
		"timeouts.install":   c.Timeouts.Install,
		"timeouts.download":  c.Timeouts.Download,
		"timeouts.probe":     c.Timeouts.Probe,
		"timeouts.privilege": c.Timeouts.Privilege,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %s", label, d))
		}
	}

	if c.Retry.Attempts < 1 {
		problems = append(problems, fmt.Sprintf("retry.attempts must be at least 1, got %d", c.Retry.Attempts))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		problems = append(problems, "retry delays must satisfy 0 <= base_delay <= max_delay")
	}
	if strings.TrimSpace(c.Git.DefaultBranch) == "" {
		problems = append(problems, "git.default_branch must not be empty")
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

// Enabled reports whether name is in the tool list.
func (c *Config) Enabled(name string) bool {
	return slices.Contains(c.Tools, name)
}

// Disable removes names from the tool list, preserving order.
func (c *Config) Disable(names ...string) {
	c.Tools = slices.DeleteFunc(c.Tools, func(t string) bool {
		return slices.Contains(names, t)
	})
}

// Enable appends names that are not yet listed, then restores DefaultTools order
// for the known names so provisioning order stays stable.
func (c *Config) Enable(names ...string) {
	for _, n := range names {
		if !c.Enabled(n) {
			c.Tools = append(c.Tools, n)
		}
	}
	slices.SortStableFunc(c.Tools, func(a, b string) int {
		return orderOf(a) - orderOf(b)
	})
}

func orderOf(name string) int {
	if i := slices.Index(DefaultTools, name); i >= 0 {
		return i
	}
	return len(DefaultTools)
}

// GetHome returns the stigmergylite home directory (~/.stigmergylite or $STIGMERGYLITE_HOME).
func GetHome() (string, error) {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".stigmergylite"), nil
}

// EnsureHome creates the home directory if it doesn't exist
func EnsureHome() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o750); err != nil {
		return "", fmt.Errorf("failed to create home directory: %w", err)
	}
	return home, nil
}

// GetLogDir returns the log directory
func GetLogDir() (string, error) {
	return ensureSubdir("logs")
}

// GetConfigDir returns the config directory
func GetConfigDir() (string, error) {
	return ensureSubdir("config")
}

// GetCacheDir holds downloaded release archives.
func GetCacheDir() (string, error) {
	return ensureSubdir("cache")
}

func ensureSubdir(name string) (string, error) {
	home, err := EnsureHome()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", name, err)
	}
	return dir, nil
}
