package cmd

import (
	"time"

	"github.com/marcus/notesync/internal/output"
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:     "rm <id|title>",
	Aliases: []string{"delete"},
	Short:   "Delete a note",
	Long:    `Soft-deletes a note. The tombstone propagates to other devices on the next sync.`,
	GroupID: "notes",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		rec, err := findRecord(store, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		note := noteFromRecord(rec.Payload)

		rec.MarkDeleted(time.Now())
		if err := store.Upsert(*rec); err != nil {
			output.Error("failed to delete note: %v", err)
			return err
		}

		output.Success("Deleted note %s: %s", shortID(rec.ID), note.Title)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
