package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/vcfg/vcfg/pkg/telemetry"
)

func newWatchCommand(s *session) *cobra.Command {
	var (
		dir      string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <kind>",
		Short: "Validate a configuration file every time it changes",
		Long: `Watch the file of a kind and load it after every change, migrating and
validating it like validate does. Runs until interrupted.`,
		Example: `  vcfg watch app`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := lookupKind(args[0])
			if err != nil {
				return err
			}
			return s.watch(cmd.Context(), cmd.OutOrStdout(), k, s.dirFor(k, dir), debounce)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding service and module manifests")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "wait this long after a change before reloading")

	return cmd
}

// watch reports on k's file once and then after every change until ctx ends.
// The directory is watched rather than the file because every write replaces
// the file by renaming over it.
func (s *session) watch(ctx context.Context, out io.Writer, k kindRef, dir string, debounce time.Duration) error {
	path, err := k.path(dir)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	log := telemetry.FromContext(ctx).NewComponentLogger("watch").WithKind(k.name, path).Zerolog()
	report := func() {
		res, err := k.load(ctx, s.engine, dir)
		stamp := time.Now().Format(time.TimeOnly)
		switch {
		case err != nil:
			fmt.Fprintf(out, "[%s] ", stamp)
			reportFailure(out, k.name, err)
		case res == nil:
			fmt.Fprintf(out, "[%s] -  %-16s not found\n", stamp, k.name)
		case res.migrated():
			fmt.Fprintf(out, "[%s] ✓  %-16s migrated v%d -> v%d\n", stamp, k.name, res.from, res.latest)
		default:
			fmt.Fprintf(out, "[%s] ✓  %-16s valid (v%d)\n", stamp, k.name, res.latest)
		}
	}

	report()
	log.Info().Msg("watching for changes")

	reload := make(chan struct{}, 1)
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			log.Debug().Str("op", event.Op.String()).Msg("config file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			report()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}
