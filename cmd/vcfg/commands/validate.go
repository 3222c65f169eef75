package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vcfg/vcfg/pkg/config"
)

func newValidateCommand(s *session) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "validate [kind...]",
		Short: "Load and validate configuration files",
		Long: `Load each configuration file, migrating it to the latest version if needed,
and report schema violations as path, expected and actual value.

Without arguments every project and user kind is validated. Service and
module manifests are read from --dir.`,
		Example: `  # Validate the project and user files
  vcfg validate

  # Validate the deployment record only
  vcfg validate app

  # Validate a service manifest
  vcfg validate service --dir ./services/storage`,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := selectKinds(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var errs []error
			for _, k := range selected {
				res, err := k.load(cmd.Context(), s.engine, s.dirFor(k, dir))
				switch {
				case err != nil:
					reportFailure(out, k.name, err)
					errs = append(errs, fmt.Errorf("%s: %w", k.name, err))
				case res == nil:
					fmt.Fprintf(out, "-  %-16s not found\n", k.name)
				case res.migrated():
					fmt.Fprintf(out, "✓  %-16s %s (migrated v%d -> v%d)\n", k.name, res.path, res.from, res.latest)
				default:
					fmt.Fprintf(out, "✓  %-16s %s (v%d)\n", k.name, res.path, res.latest)
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding service and module manifests")

	return cmd
}

func reportFailure(out io.Writer, name string, err error) {
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) || len(cfgErr.Violations) == 0 {
		fmt.Fprintf(out, "✗  %-16s %v\n", name, err)
		return
	}

	where := cfgErr.Path
	if cfgErr.Class == config.ErrorClassMigrationValidation {
		where += " at " + cfgErr.Boundary()
	}
	fmt.Fprintf(out, "✗  %-16s %s: %d violation(s)\n", name, where, len(cfgErr.Violations))
	for _, v := range cfgErr.Violations {
		fmt.Fprintf(out, "     %s\n", v)
	}
}
