package cmd

import (
	"context"
	"time"

	"github.com/marcus/notesync/internal/output"
	"github.com/marcus/notesync/internal/syncconfig"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show sync status",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		owner := currentOwner()
		pending, err := store.CountPending(owner)
		if err != nil {
			output.Error("failed to count pending: %v", err)
			return err
		}
		checkpoint, err := store.LatestSyncCheckpoint(owner)
		if err != nil {
			output.Error("failed to read checkpoint: %v", err)
			return err
		}

		st := map[string]any{
			"logged_in":     syncconfig.IsAuthenticated(),
			"server_url":    syncconfig.GetServerURL(),
			"pending":       pending,
			"checkpoint_ms": checkpoint,
		}

		// Reach for the server only when logged in; status still works offline.
		if syncconfig.IsAuthenticated() {
			if client, err := newRemoteClient(); err == nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()
				if remote, err := client.Status(ctx); err == nil {
					st["server_records"] = remote.RecordCount
					st["server_tombstones"] = remote.TombstoneCount
				} else {
					st["server_error"] = err.Error()
				}
			}
		}

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			return output.JSON(st)
		}

		if syncconfig.IsAuthenticated() {
			output.Info("Server:     %s", syncconfig.GetServerURL())
		} else {
			output.Warning("Not logged in; notes stay on this machine")
		}
		output.Info("Pending:    %d local changes waiting to push", pending)
		output.Info("Checkpoint: %s", output.FormatTimestamp(checkpoint))
		if n, ok := st["server_records"]; ok {
			output.Info("Server has: %v records (%v tombstones)", n, st["server_tombstones"])
		}
		if msg, ok := st["server_error"]; ok {
			output.Warning("Server unreachable: %v", msg)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(statusCmd)
}
