package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/marcus/notesync/internal/engine"
	"github.com/marcus/notesync/internal/output"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Sync with the server now",
	Long:    `Runs one sync pass: pushes pending local changes, then pulls remote changes since the last checkpoint.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		coord := engine.New(store, client)
		res, err := coord.RunSyncPass(ctx, currentOwner())
		if err != nil {
			output.Error("sync failed: %v", err)
			return err
		}

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			failures := make([]map[string]any, 0, len(res.Failures))
			for _, f := range res.Failures {
				failures = append(failures, map[string]any{
					"record_id": f.RecordID,
					"action":    f.Action.String(),
					"error":     f.Err.Error(),
					"permanent": f.Permanent,
				})
			}
			return output.JSON(map[string]any{
				"pushed":      res.Pushed,
				"pulled":      res.Pulled,
				"deleted":     res.Deleted,
				"conflicts":   res.Conflicts,
				"failures":    failures,
				"duration_ms": res.Duration.Milliseconds(),
			})
		}

		printSyncResult(res)
		if res.Failed() > 0 {
			return fmt.Errorf("%d records failed to sync", res.Failed())
		}
		return nil
	},
}

func printSyncResult(res *engine.Result) {
	output.Success("Synced in %s: %d pushed, %d pulled, %d deleted",
		res.Duration.Round(time.Millisecond), res.Pushed, res.Pulled, res.Deleted)
	if res.Conflicts > 0 {
		output.Warning("%d local edits were overwritten (see 'notesync conflicts')", res.Conflicts)
	}
	for _, f := range res.Failures {
		if f.Permanent {
			output.Error("record %s rejected by server: %v", shortID(f.RecordID), f.Err)
		} else {
			output.Warning("record %s not synced (will retry): %v", shortID(f.RecordID), f.Err)
		}
	}
}

func init() {
	syncCmd.Flags().Duration("timeout", 2*time.Minute, "overall pass timeout")
	syncCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(syncCmd)
}
