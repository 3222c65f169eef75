package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vcfg/vcfg/pkg/config"
)

// ErrMigrationPending is returned by migrate --check when a file is behind.
var ErrMigrationPending = errors.New("files need migration")

func newMigrateCommand(s *session) *cobra.Command {
	var (
		dir   string
		check bool
	)

	cmd := &cobra.Command{
		Use:   "migrate [kind...]",
		Short: "Migrate configuration files to their latest version",
		Long: `Migrate configuration files to the latest version of their kind and
rewrite them in place. With --check nothing is written; the command only
reports the version found in each file and fails if any file is behind.`,
		Example: `  # Migrate every project and user file
  vcfg migrate

  # Report pending migrations without writing
  vcfg migrate --check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := selectKinds(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var errs []error
			pending := false
			for _, k := range selected {
				kdir := s.dirFor(k, dir)
				if check {
					behind, err := checkVersion(out, k, kdir)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", k.name, err))
					}
					pending = pending || behind
					continue
				}

				res, err := k.load(cmd.Context(), s.engine, kdir)
				switch {
				case err != nil:
					reportFailure(out, k.name, err)
					errs = append(errs, fmt.Errorf("%s: %w", k.name, err))
				case res == nil:
					fmt.Fprintf(out, "-  %-16s not found\n", k.name)
				case res.migrated():
					fmt.Fprintf(out, "✓  %-16s v%d -> v%d %s\n", k.name, res.from, res.latest, res.path)
				default:
					fmt.Fprintf(out, "✓  %-16s up to date (v%d)\n", k.name, res.latest)
				}
			}
			if pending {
				errs = append(errs, ErrMigrationPending)
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding service and module manifests")
	cmd.Flags().BoolVar(&check, "check", false, "report pending migrations without writing")

	return cmd
}

// checkVersion reads the version of k's file without migrating it.
func checkVersion(out io.Writer, k kindRef, dir string) (bool, error) {
	path, err := k.path(dir)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(out, "-  %-16s not found\n", k.name)
		return false, nil
	}
	if err != nil {
		return false, config.NewIOError(path, "read", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil || doc == nil {
		if err == nil {
			err = fmt.Errorf("document is not a mapping")
		}
		perr := config.NewParseError(path, err)
		fmt.Fprintf(out, "✗  %-16s %v\n", k.name, perr)
		return false, perr
	}

	version, err := config.DetectVersion(doc, k.latest)
	if err != nil {
		fmt.Fprintf(out, "✗  %-16s %v\n", k.name, err)
		return false, err
	}
	if version < k.latest {
		fmt.Fprintf(out, "!  %-16s v%d -> v%d pending %s\n", k.name, version, k.latest, path)
		return true, nil
	}
	fmt.Fprintf(out, "✓  %-16s up to date (v%d)\n", k.name, version)
	return false, nil
}
