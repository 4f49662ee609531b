package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/cli"
	"mercator-hq/ruleengine/pkg/registry"
	"mercator-hq/ruleengine/pkg/store"
)

var watchFlags struct {
	schedule string
	files    bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the rule registry fresh until interrupted",
	Long: `Load every stored rule into the registry and keep it current until
SIGINT or SIGTERM.

With the file backend and registry.watch (or --files), rule files are
watched and changes trigger a reload after the configured debounce
interval. A cron schedule
(registry.refresh_schedule or --schedule) triggers periodic reloads with
any backend. Each reload prints how many rules were loaded and which
could not be decoded.

Examples:
  rulectl watch --files
  rulectl watch --schedule "@every 30s"`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFlags.schedule, "schedule", "", "cron schedule for periodic reloads (overrides config)")
	watchCmd.Flags().BoolVar(&watchFlags.files, "files", false, "watch rule files even if registry.watch is false")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()
	cmd.SetContext(ctx)

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.engine.Registry() == nil {
			return cli.NewConfigError(cfgFile, errors.New("registry.enabled must be true to watch rules"))
		}

		out := &syncWriter{w: cmd.OutOrStdout()}
		refresh := func(ctx context.Context) (*registry.ReloadStats, error) {
			stats, err := a.engine.Refresh(ctx)
			if err != nil {
				fmt.Fprintf(out, "✗ reload failed: %v\n", err)
				return nil, err
			}
			printReload(out, stats)
			return stats, nil
		}

		if _, err := refresh(ctx); err != nil {
			return err
		}

		schedule := a.cfg.Registry.RefreshSchedule
		if watchFlags.schedule != "" {
			schedule = watchFlags.schedule
		}
		scheduler := registry.NewScheduler(schedule, refresh, a.logger)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()

		watchFiles := a.cfg.Registry.Watch || watchFlags.files
		if !watchFiles || a.cfg.Store.Backend != store.BackendFile {
			a.logger.Info("watching for signals only", "backend", a.cfg.Store.Backend)
			<-ctx.Done()
			return nil
		}

		watcher, err := registry.NewFileWatcher(&registry.FileWatcherConfig{
			Dir:              a.cfg.Store.File.Dir,
			DebounceInterval: a.cfg.Registry.DebounceInterval,
		}, a.logger)
		if err != nil {
			return err
		}
		defer watcher.Stop()

		return watcher.Watch(ctx, func(ctx context.Context) error {
			_, err := refresh(ctx)
			return err
		})
	})
}

func printReload(w io.Writer, stats *registry.ReloadStats) {
	fmt.Fprintf(w, "✓ %d rules loaded (%d decoded, %d unchanged, %d removed) in %s\n",
		stats.Loaded, stats.Decoded, stats.Reused, stats.Removed, stats.Duration)
	for name, err := range stats.Failed {
		fmt.Fprintf(w, "  ✗ %s: %v\n", name, err)
	}
}

// syncWriter serializes writes from the watcher and scheduler goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
