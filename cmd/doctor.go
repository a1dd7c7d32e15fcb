/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/stigmergylite/internal/doctor"
	"github.com/fulmenhq/stigmergylite/pkg/di"
	"github.com/fulmenhq/stigmergylite/pkg/exitcode"
)

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose installed tools, PATH and configuration files",
		Long: `Runs every check against the live system and reports issues, warnings and
notes. Nothing is changed. Exits with code 3 when any issue is found.`,
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
			n := newNotifier(cmd, cfg)

			return invoke(cmd, cfg, format, func(i di.Injector) error {
				doc, err := di.ResolveDoctor(i)
				if err != nil {
					return err
				}
				report := doc.Diagnose(commandContext(cmd))
				if format != formatText {
					if err := writeStructured(cmd.OutOrStdout(), format, report); err != nil {
						return err
					}
				} else {
					renderReport(n, report)
				}
				return unhealthy(report)
			})
		},
	}
}

// unhealthy returns the silent exit error for a report with issues.
func unhealthy(r *doctor.Report) error {
	if r.Healthy {
		return nil
	}
	return &exitcode.ExitError{Code: exitcode.Unhealthy}
}

var errIssuesRemain = errors.New("issues remain after repair")

func newFixCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fix",
		Short: "Repair PATH entries, corrupted config files and the Git Bash environment",
		Long: `Applies the idempotent repairs: package-manager directories are added to the
session PATH and persisted, corrupted tracked config files are backed up and
reset, and GIT_BASH_PATH is exported. Diagnostics run again afterwards and any
remaining issue is listed with its next step.`,
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
			n := newNotifier(cmd, cfg)

			return invoke(cmd, cfg, format, func(i di.Injector) error {
				doc, err := di.ResolveDoctor(i)
				if err != nil {
					return err
				}
				ctx := commandContext(cmd)
				fixes := doc.Repair(ctx)
				report := doc.Diagnose(ctx)

				if format != formatText {
					out := fixOutput{Fixes: fixes, Report: report}
					if err := writeStructured(cmd.OutOrStdout(), format, out); err != nil {
						return err
					}
				} else {
					renderFixes(n, fixes)
					if report.Healthy {
						n.Successf("Everything checks out")
					} else {
						n.Titlef("Next steps")
						for _, f := range report.Issues {
							n.Errorf("%s", f)
						}
					}
				}
				if !report.Healthy {
					return exitcode.WithCode(exitcode.Unhealthy, errIssuesRemain)
				}
				return nil
			})
		},
	}
}

type fixOutput struct {
	Fixes  []doctor.Fix   `json:"fixes" yaml:"fixes" toml:"fixes"`
	Report *doctor.Report `json:"report" yaml:"report" toml:"report"`
}
