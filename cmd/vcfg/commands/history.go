package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vcfg/vcfg/pkg/stores"
)

// ErrJournalDisabled is returned by history commands when the journal is off.
var ErrJournalDisabled = errors.New(`migration journal is disabled (journal: "off")`)

func newHistoryCommand(s *session) *cobra.Command {
	var (
		limit     int
		kind      string
		eventType string
		since     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the journal of created, migrated and committed files",
		Example: `  # Last 20 entries
  vcfg history --limit 20

  # Migrations of the deployment record during the last week
  vcfg history --kind app --type config.migrated --since 168h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.journal == nil {
				return ErrJournalDisabled
			}

			filter := stores.Filter{Kind: kind, Type: eventType, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			entries, err := s.journal.ListEntries(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tKIND\tVERSION\tPATH\tMESSAGE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format(time.DateTime),
					e.Type,
					e.Kind,
					versionSpan(e.FromVersion, e.ToVersion),
					e.Path,
					e.Message,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", stores.DefaultListLimit, "maximum number of entries")
	cmd.Flags().StringVar(&kind, "kind", "", "only entries for this kind")
	cmd.Flags().StringVar(&eventType, "type", "", "only entries of this event type")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this")

	cmd.AddCommand(newHistoryPruneCommand(s))

	return cmd
}

func newHistoryPruneCommand(s *session) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.journal == nil {
				return ErrJournalDisabled
			}
			n, err := s.journal.PruneEntries(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d journal entries\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete entries older than this")

	return cmd
}

// versionSpan renders an entry's versions; negative versions are unknown.
func versionSpan(from, to int) string {
	switch {
	case from >= 0 && to >= 0 && from != to:
		return fmt.Sprintf("v%d->v%d", from, to)
	case to >= 0:
		return fmt.Sprintf("v%d", to)
	case from >= 0:
		return fmt.Sprintf("v%d", from)
	default:
		return "-"
	}
}
