/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/stigmergylite/pkg/ascii"
	"github.com/fulmenhq/stigmergylite/pkg/buildinfo"
	"github.com/fulmenhq/stigmergylite/pkg/di"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
)

// envVariables are the variables that change how tools are found or installed.
var envVariables = []string{
	"SHELL", "PSModulePath", "NPM_CONFIG_PREFIX", "APPDATA", "LOCALAPPDATA",
	"GIT_BASH_PATH", "GIT_INSTALL_ROOT", "STIGMERGYLITE_HOME",
}

// EnvData represents the structured data for environment information.
type EnvData struct {
	System      SystemInfo           `json:"system" yaml:"system" toml:"system"`
	Environment platform.Environment `json:"environment" yaml:"environment" toml:"environment"`
	Path        []string             `json:"path" yaml:"path" toml:"path"`
	Variables   map[string]string    `json:"variables" yaml:"variables" toml:"variables"`
}

// SystemInfo holds system-related information.
type SystemInfo struct {
	OS           string    `json:"os" yaml:"os" toml:"os"`
	Architecture string    `json:"architecture" yaml:"architecture" toml:"architecture"`
	GoVersion    string    `json:"goVersion" yaml:"goVersion" toml:"goVersion"`
	NumCPU       int       `json:"numCPU" yaml:"numCPU" toml:"numCPU"`
	Hostname     string    `json:"hostname" yaml:"hostname" toml:"hostname"`
	WorkingDir   string    `json:"workingDir" yaml:"workingDir" toml:"workingDir"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
	Version      string    `json:"version" yaml:"version" toml:"version"`
}

func newEnvinfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "envinfo",
		Short: "Display environment and system information",
		Long: `Display the detected platform, the session PATH and the environment
variables that affect where tools are found.`,
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

			return invoke(cmd, cfg, format, func(i di.Injector) error {
				env, err := di.ResolveEnvironment(i)
				if err != nil {
					return err
				}
				path, err := di.ResolveSearchPath(i)
				if err != nil {
					return err
				}
				data := collectEnvData(env, path.Entries())
				if format != formatText {
					return writeStructured(cmd.OutOrStdout(), format, data)
				}
				printEnvData(cmd, data)
				return nil
			})
		},
	}
}

func collectEnvData(env platform.Environment, path []string) EnvData {
	hostname, _ := os.Hostname()
	wd, _ := os.Getwd()
	vars := make(map[string]string)
	for _, k := range envVariables {
		if v, ok := os.LookupEnv(k); ok {
			vars[k] = v
		}
	}
	return EnvData{
		System: SystemInfo{
			OS:           runtime.GOOS,
			Architecture: runtime.GOARCH,
			GoVersion:    runtime.Version(),
			NumCPU:       runtime.NumCPU(),
			Hostname:     hostname,
			WorkingDir:   wd,
			Timestamp:    time.Now(),
			Version:      buildinfo.Version(),
		},
		Environment: env,
		Path:        path,
		Variables:   vars,
	}
}

func printEnvData(cmd *cobra.Command, d EnvData) {
	out := cmd.OutOrStdout()
	ascii.DrawBox(out, []string{
		"stigmergylite " + d.System.Version,
		fmt.Sprintf("Platform:   %s", d.Environment.Platform()),
		fmt.Sprintf("Container:  %s", yesNo(d.Environment.IsContainer)),
		fmt.Sprintf("Elevated:   %s", yesNo(d.Environment.HasElevatedPrivilege)),
		fmt.Sprintf("Go:         %s (%d CPUs)", d.System.GoVersion, d.System.NumCPU),
		fmt.Sprintf("Host:       %s", d.System.Hostname),
	})

	_, _ = fmt.Fprintln(out, "\nPATH:")
	for _, p := range d.Path {
		_, _ = fmt.Fprintf(out, "  %s\n", p)
	}

	if len(d.Variables) > 0 {
		_, _ = fmt.Fprintln(out, "\nVariables:")
		t := ascii.NewTable("NAME", "VALUE")
		t.MaxWidth = 60
		for _, k := range envVariables {
			if v, ok := d.Variables[k]; ok {
				t.Add(k, v)
			}
		}
		_, _ = fmt.Fprint(out, t.String())
	}
}
