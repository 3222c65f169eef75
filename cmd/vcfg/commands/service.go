package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vcfg/vcfg/pkg/config"
	"github.com/vcfg/vcfg/pkg/kinds"
)

func newServiceCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the services of the project manifest",
	}

	cmd.AddCommand(newServiceAddCommand(s))
	cmd.AddCommand(newServiceListCommand(s))

	return cmd
}

func newServiceAddCommand(s *session) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a service to the project manifest",
		Long: `Read the service manifest at path (a directory holding service.yaml or the
file itself) and add the service to the project manifest with a default
deployment. The service is named after its manifest unless --name is given.`,
		Example: `  vcfg service add ./services/storage
  vcfg service add ./services/storage/service.yaml --name store`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			opts := config.LoadOptions[kinds.ServiceConfig]{Dir: args[0]}
			serviceDir := args[0]
			if strings.HasSuffix(args[0], ".yaml") || strings.HasSuffix(args[0], ".yml") {
				opts = config.LoadOptions[kinds.ServiceConfig]{Path: args[0]}
				serviceDir = filepath.Dir(args[0])
			}
			svc, err := config.LoadReadonly(ctx, s.engine, kinds.Service(), opts)
			if err != nil {
				return err
			}
			if svc == nil {
				return fmt.Errorf("no %s found in %s", kinds.ServiceFileName, serviceDir)
			}
			if name == "" {
				name = svc.Config().Name
			}

			project, err := config.LoadMutable(ctx, s.engine, kinds.Project(),
				config.LoadOptions[kinds.ProjectConfig]{Dir: s.projectDir, Default: kinds.NewProject})
			if err != nil {
				return err
			}
			get, err := s.relativeToProject(serviceDir)
			if err != nil {
				return err
			}
			if err := project.Config().AddService(name, get); err != nil {
				return err
			}
			if err := project.Commit(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Added service %s (%s) to %s\n", name, get, project.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "service name (default: the name in service.yaml)")

	return cmd
}

func newServiceListCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the services of the project manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := config.LoadReadonly(cmd.Context(), s.engine, kinds.Project(),
				config.LoadOptions[kinds.ProjectConfig]{Dir: s.projectDir})
			if err != nil {
				return err
			}
			if project == nil {
				return fmt.Errorf("no %s in %s, run vcfg init first", kinds.ProjectFileName, s.projectDir)
			}

			cfg := project.Config()
			out := cmd.OutOrStdout()
			for _, name := range cfg.ServiceNames() {
				svc := cfg.Services[name]
				ids := make([]string, 0, len(svc.Deploy))
				for _, d := range svc.Deploy {
					ids = append(ids, d.DeployID)
				}
				fmt.Fprintf(out, "%-16s %s [%s]\n", name, svc.Get, strings.Join(ids, ", "))
			}
			return nil
		},
	}
}

// relativeToProject expresses dir relative to the project root, the way
// service sources are recorded in the project manifest.
func (s *session) relativeToProject(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.projectRoot(), abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs), nil
	}
	if rel == "." {
		return rel, nil
	}
	return "./" + filepath.ToSlash(rel), nil
}
