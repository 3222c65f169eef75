package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vcfg/vcfg/pkg/config"
	"github.com/vcfg/vcfg/pkg/kinds"
)

func newKeyCommand(s *session) *cobra.Command {
	var user bool

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage deployment key pairs",
		Long: `Manage the ed25519 key pairs kept in the project secrets store, or with
--user in the user secrets store. The user store always keeps at least one
key pair.`,
	}
	cmd.PersistentFlags().BoolVar(&user, "user", false, "use the user secrets store instead of the project's")

	cmd.AddCommand(newKeyNewCommand(s, &user))
	cmd.AddCommand(newKeyDefaultCommand(s, &user))
	cmd.AddCommand(newKeyRemoveCommand(s, &user))
	cmd.AddCommand(newKeyListCommand(s, &user))
	cmd.AddCommand(newKeyResolveCommand(s))

	return cmd
}

// secrets loads the selected secrets store for editing, creating it when absent.
func (s *session) secrets(ctx context.Context, user bool) (*config.Handle[kinds.SecretsConfig], error) {
	if user {
		return config.LoadMutable(ctx, s.engine, kinds.UserSecrets(),
			config.LoadOptions[kinds.SecretsConfig]{Dir: s.userDir, Default: kinds.NewUserSecrets})
	}
	return config.LoadMutable(ctx, s.engine, kinds.ProjectSecrets(),
		config.LoadOptions[kinds.SecretsConfig]{Dir: s.projectDir, Default: kinds.NewProjectSecrets})
}

func newKeyNewCommand(s *session, user *bool) *cobra.Command {
	var makeDefault bool

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Generate a new key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := s.secrets(cmd.Context(), *user)
			if err != nil {
				return err
			}
			kp, err := kinds.GenerateKeyPair(args[0])
			if err != nil {
				return err
			}
			if err := h.Config().Add(kp); err != nil {
				return err
			}
			if makeDefault {
				if err := h.Config().SetDefault(kp.Name); err != nil {
					return err
				}
			}
			if err := h.Commit(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created key pair %s (%s) in %s\n", kp.Name, kp.PeerID, h.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&makeDefault, "default", false, "make the new key pair the default")

	return cmd
}

func newKeyDefaultCommand(s *session, user *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "default <name>",
		Short: "Set the default key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := s.secrets(cmd.Context(), *user)
			if err != nil {
				return err
			}
			if err := h.Config().SetDefault(args[0]); err != nil {
				return err
			}
			if err := h.Commit(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Default key pair is now %s\n", args[0])
			return nil
		},
	}
}

func newKeyRemoveCommand(s *session, user *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := s.secrets(cmd.Context(), *user)
			if err != nil {
				return err
			}
			wasDefault := h.Config().DefaultKeyPairName == args[0]
			if err := h.Config().Remove(args[0], *user); err != nil {
				return err
			}
			if err := h.Commit(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Removed key pair %s\n", args[0])
			if wasDefault && h.Config().DefaultKeyPairName != "" {
				fmt.Fprintf(out, "  Default key pair is now %s\n", h.Config().DefaultKeyPairName)
			}
			return nil
		},
	}
}

func newKeyListCommand(s *session, user *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List key pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := s.secrets(cmd.Context(), *user)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, kp := range h.Config().KeyPairs {
				marker := " "
				if kp.Name == h.Config().DefaultKeyPairName {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-16s %s\n", marker, kp.Name, kp.PeerID)
			}
			return nil
		},
	}
}

func newKeyResolveCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [name]",
		Short: "Show the key pair a deployment would use",
		Long: `Show the key pair a deployment would use. A named key pair is looked up in
the project store first and then in the user store; without a name the
project default wins over the user default.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := ""
			if len(args) > 0 {
				name = args[0]
			}

			var project, user *kinds.SecretsConfig
			ph, err := config.LoadReadonly(ctx, s.engine, kinds.ProjectSecrets(),
				config.LoadOptions[kinds.SecretsConfig]{Dir: s.projectDir})
			if err != nil {
				return err
			}
			if ph != nil {
				cfg := ph.Config()
				project = &cfg
			}
			uh, err := config.LoadReadonly(ctx, s.engine, kinds.UserSecrets(),
				config.LoadOptions[kinds.SecretsConfig]{Dir: s.userDir})
			if err != nil {
				return err
			}
			if uh != nil {
				cfg := uh.Config()
				user = &cfg
			}

			kp, err := kinds.ResolveKeyPair(project, user, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", kp.Name, kp.PeerID)
			return nil
		},
	}
}
