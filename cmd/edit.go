package cmd

import (
	"time"

	"github.com/marcus/notesync/internal/input"
	"github.com/marcus/notesync/internal/output"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:     "edit <id|title>",
	Short:   "Edit a note",
	Long:    `Update a note's title, body, or tags. Only the flags you pass change; the edit is queued for sync.`,
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

		changed := false
		if cmd.Flags().Changed("title") {
			note.Title, _ = cmd.Flags().GetString("title")
			changed = true
		}
		if cmd.Flags().Changed("body") {
			bodyArg, _ := cmd.Flags().GetString("body")
			body, err := input.ExpandValue(bodyArg)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			note.Body = body
			changed = true
		}
		if cmd.Flags().Changed("tags") {
			raw, _ := cmd.Flags().GetString("tags")
			note.Tags = parseTags(raw)
			changed = true
		}
		if !changed {
			output.Warning("nothing to change (pass --title, --body, or --tags)")
			return nil
		}

		payload, err := note.Marshal()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		rec.Touch(payload, time.Now())
		if err := store.Upsert(*rec); err != nil {
			output.Error("failed to save note: %v", err)
			return err
		}

		output.Success("Updated note %s", shortID(rec.ID))
		return nil
	},
}

func init() {
	editCmd.Flags().String("title", "", "new title")
	editCmd.Flags().StringP("body", "b", "", "new body (@file reads a file, - reads stdin)")
	editCmd.Flags().StringP("tags", "t", "", "comma-separated tags (replaces existing)")
	rootCmd.AddCommand(editCmd)
}
