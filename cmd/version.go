/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/stigmergylite/pkg/buildinfo"
)

// VersionInfo is the machine-readable form of `version`.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version" toml:"version"`
	Commit    string `json:"commit,omitempty" yaml:"commit,omitempty" toml:"commit,omitempty"`
	BuildDate string `json:"buildDate,omitempty" yaml:"buildDate,omitempty" toml:"buildDate,omitempty"`
	GoVersion string `json:"goVersion" yaml:"goVersion" toml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform" toml:"platform"`
}

func currentVersion() VersionInfo {
	return VersionInfo{
		Version:   buildinfo.Version(),
		Commit:    buildinfo.VCSRevision(),
		BuildDate: buildinfo.BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the stigmergylite version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			info := currentVersion()
			if format != formatText {
				return writeStructured(cmd.OutOrStdout(), format, info)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "stigmergylite %s\n", info.Version)
			if extended, _ := cmd.Flags().GetBool("extended"); extended {
				if info.Commit != "" {
					_, _ = fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
				}
				if info.BuildDate != "" {
					_, _ = fmt.Fprintf(out, "Built:      %s\n", info.BuildDate)
				}
				_, _ = fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
				_, _ = fmt.Fprintf(out, "Platform:   %s\n", info.Platform)
			}
			return nil
		},
	}
	cmd.Flags().Bool("extended", false, "Show detailed build information")
	return cmd
}
