package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/di"
	"github.com/fulmenhq/stigmergylite/pkg/exitcode"
)

func newPersistCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "persist <dir>",
		Short: "Add a directory to the PATH of future shells",
		Long: `Writes dir to the user PATH store: the shell startup files on Linux and
macOS, the user registry Path on Windows. Running it again changes nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			n := newNotifier(cmd, cfg)

			return invoke(cmd, cfg, format, func(i di.Injector) error {
				pm, err := di.ResolvePersist(i)
				if err != nil {
					return err
				}
				rep, err := pm.Apply(commandContext(cmd), dir)
				if err != nil {
					return exitcode.WithCode(exitcode.FileSystemError, fmt.Errorf("%w: %v", provision.ErrPersistenceFailed, err))
				}
				if format != formatText {
					return writeStructured(cmd.OutOrStdout(), format, rep)
				}
				renderPersist(n, rep)
				return nil
			})
		},
	}
}
