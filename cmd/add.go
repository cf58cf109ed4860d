package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/marcus/notesync/internal/input"
	"github.com/marcus/notesync/internal/models"
	"github.com/marcus/notesync/internal/output"
	"github.com/marcus/notesync/internal/record"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:     "add [title]",
	Aliases: []string{"new", "create"},
	Short:   "Create a new note",
	Long:    `Create a new note with an optional body and tags. The note is stored locally and queued for sync.`,
	GroupID: "notes",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		if len(args) > 0 {
			title = args[0]
		}
		if strings.TrimSpace(title) == "" {
			output.Error("title is required")
			return fmt.Errorf("title is required")
		}

		bodyArg, _ := cmd.Flags().GetString("body")
		body, err := input.ExpandValue(bodyArg)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		tags, _ := cmd.Flags().GetString("tags")

		note := &models.Note{Title: title, Body: body, Tags: parseTags(tags)}
		payload, err := note.Marshal()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		store, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		rec := record.New(currentOwner(), models.CollectionNotes, payload, time.Now())
		if err := store.Upsert(rec); err != nil {
			output.Error("failed to save note: %v", err)
			return err
		}

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			return output.JSON(map[string]string{"id": rec.ID, "title": note.Title})
		}
		output.Success("Created note %s: %s", shortID(rec.ID), note.Title)
		return nil
	},
}

func init() {
	addCmd.Flags().String("title", "", "note title (alternative to positional arg)")
	addCmd.Flags().StringP("body", "b", "", "note body (@file reads a file, - reads stdin)")
	addCmd.Flags().StringP("tags", "t", "", "comma-separated tags")
	addCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(addCmd)
}
