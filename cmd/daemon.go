package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus/notesync/internal/engine"
	"github.com/marcus/notesync/internal/output"
	"github.com/marcus/notesync/internal/syncconfig"
	"github.com/marcus/notesync/internal/trigger"
	"github.com/spf13/cobra"
)

const connectivityProbeInterval = 30 * time.Second

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run background sync for this store",
	Long: `Watches the local store and syncs opportunistically: edits debounce into
one pass, a periodic backstop catches anything missed, and regained
connectivity triggers an immediate pass.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !syncconfig.GetAutoSyncEnabled() {
			output.Warning("auto sync is disabled (set sync.auto.enabled or NOTESYNC_AUTO)")
			return nil
		}

		store, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		client, err := newRemoteClient()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		owner := currentOwner()
		coord := engine.New(store, client)

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		pass := func(ctx context.Context) error {
			res, err := coord.RunSyncPass(ctx, owner)
			if err != nil {
				logger.Error("sync pass failed", "err", err)
				return err
			}
			logger.Info("sync pass",
				"pushed", res.Pushed, "pulled", res.Pulled, "deleted", res.Deleted,
				"conflicts", res.Conflicts, "failed", res.Failed(), "dur", res.Duration.Round(time.Millisecond))
			return nil
		}

		trig := trigger.New(pass, trigger.Config{
			Debounce: syncconfig.GetAutoSyncDebounce(),
			Interval: syncconfig.GetAutoSyncInterval(),
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		trig.Start(ctx)
		defer trig.Stop()

		// Writes through this process's own store handle.
		changes, cancelObserve := store.Observe(owner)
		defer cancelObserve()

		// CLI commands run in separate processes and never reach the
		// in-process observer, so watch the database files too. The
		// daemon's own writes echo back through the watcher; the extra
		// scheduled pass finds nothing dirty and settles.
		go func() {
			if err := store.WatchFiles(ctx, trig.RequestSync); err != nil {
				logger.Warn("file watch unavailable, relying on periodic sync", "err", err)
			}
		}()

		go watchConnectivity(ctx, client.HealthCheck, trig, logger)

		logger.Info("daemon started", "owner", owner, "server", syncconfig.GetServerURL())
		trig.RequestSync() // catch up on anything pending from before start

		for {
			select {
			case <-ctx.Done():
				logger.Info("daemon stopping")
				return nil
			case <-changes:
				trig.RequestSync()
			}
		}
	},
}

// watchConnectivity polls the server's health endpoint and fires the
// trigger's immediate path when the server comes back after an outage.
func watchConnectivity(ctx context.Context, probe func(context.Context) error, trig *trigger.Trigger, logger *slog.Logger) {
	ticker := time.NewTicker(connectivityProbeInterval)
	defer ticker.Stop()

	online := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := probe(probeCtx)
			cancel()
			if err != nil {
				if online {
					logger.Warn("server unreachable", "err", err)
				}
				online = false
				continue
			}
			if !online {
				logger.Info("connectivity restored")
				trig.OnConnectivityRestored()
			}
			online = true
		}
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
