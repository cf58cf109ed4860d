package cmd

import (
	"time"

	"github.com/marcus/notesync/internal/dateparse"
	"github.com/marcus/notesync/internal/output"
	"github.com/spf13/cobra"
)

var conflictsCmd = &cobra.Command{
	Use:     "conflicts",
	Short:   "Show recently overwritten local edits",
	Long:    `Lists local edits that lost last-writer-wins resolution. The journaled local version is shown so nothing is silently lost.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		sinceArg, _ := cmd.Flags().GetString("since")
		var since *time.Time
		if sinceArg != "" {
			t, err := dateparse.ParseSince(sinceArg)
			if err != nil {
				output.Error("invalid --since: %v", err)
				return err
			}
			since = &t
		}

		conflicts, err := store.RecentConflicts(limit, since)
		if err != nil {
			output.Error("failed to read conflicts: %v", err)
			return err
		}

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			items := make([]map[string]any, 0, len(conflicts))
			for _, c := range conflicts {
				items = append(items, map[string]any{
					"record_id":          c.RecordID,
					"local_data":         c.LocalData,
					"remote_data":        c.RemoteData,
					"local_modified_at":  c.LocalModifiedAt,
					"remote_modified_at": c.RemoteModifiedAt,
					"overwritten_at":     c.OverwrittenAt,
				})
			}
			return output.JSON(items)
		}

		if len(conflicts) == 0 {
			output.Subtle("No conflicts recorded.")
			return nil
		}
		for _, c := range conflicts {
			output.Title("record %s", shortID(c.RecordID))
			output.Info("  overwritten %s", c.OverwrittenAt.Local().Format("2006-01-02 15:04:05"))
			output.Info("  local  (modified %s): %s", output.FormatTimestamp(c.LocalModifiedAt), c.LocalData)
			output.Info("  remote (modified %s): %s", output.FormatTimestamp(c.RemoteModifiedAt), c.RemoteData)
		}
		return nil
	},
}

func init() {
	conflictsCmd.Flags().Int("limit", 20, "max conflicts to show")
	conflictsCmd.Flags().String("since", "", "only conflicts after this point (e.g. 24h, 7d, yesterday, 2026-03-01)")
	conflictsCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(conflictsCmd)
}
