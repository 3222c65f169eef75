package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/vcfg/vcfg/pkg/config"
	"github.com/vcfg/vcfg/pkg/kinds"
)

func newInitCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the project and user configuration files",
		Long: `Create the project manifest and the project secrets store in the project's
.vcfg directory, and the user secrets store with a fresh default key pair in
the user directory. Existing files are loaded (and migrated) but never
replaced.`,
		Example: `  # Initialize the project in the current directory
  vcfg init

  # Initialize another project
  vcfg init --project-dir ./myproject`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if err := initFile(ctx, out, s, kinds.Project(), s.projectDir, kinds.NewProject); err != nil {
				return err
			}
			if err := initFile(ctx, out, s, kinds.ProjectSecrets(), s.projectDir, kinds.NewProjectSecrets); err != nil {
				return err
			}
			return initFile(ctx, out, s, kinds.UserSecrets(), s.userDir, kinds.NewUserSecrets)
		},
	}
	return cmd
}

func initFile[T any](ctx context.Context, out io.Writer, s *session, kind *config.Kind[T], dir string, gen func() (T, error)) error {
	opts := config.LoadOptions[T]{Dir: dir, Default: gen}
	path, err := config.ResolvePath(kind, opts)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	existed := !errors.Is(statErr, fs.ErrNotExist)

	h, err := config.LoadMutable(ctx, s.engine, kind, opts)
	if err != nil {
		return err
	}

	switch {
	case !existed:
		fmt.Fprintf(out, "✓ Created %s: %s\n", kind.Name, h.Path())
	case h.MigratedFrom() < h.Version():
		fmt.Fprintf(out, "✓ Migrated %s v%d -> v%d: %s\n", kind.Name, h.MigratedFrom(), h.Version(), h.Path())
	default:
		fmt.Fprintf(out, "✓ Found %s: %s\n", kind.Name, h.Path())
	}
	return nil
}
