package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vcfg/vcfg/pkg/config"
)

func newShowCommand(s *session) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "show <kind>",
		Short: "Print a configuration file at its latest version",
		Example: `  vcfg show project
  vcfg show module --dir ./services/storage/modules/facade`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := lookupKind(args[0])
			if err != nil {
				return err
			}
			kdir := s.dirFor(k, dir)
			res, err := k.load(cmd.Context(), s.engine, kdir)
			if err != nil {
				return err
			}
			if res == nil {
				path, _ := k.path(kdir)
				return fmt.Errorf("%s: no file at %s", k.name, path)
			}

			data, err := config.EncodeDocument(res.value, "")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding service and module manifests")

	return cmd
}
