package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/notesync/internal/localstore"
	"github.com/marcus/notesync/internal/models"
	"github.com/marcus/notesync/internal/output"
	"github.com/marcus/notesync/internal/record"
	"github.com/marcus/notesync/internal/suggest"
	"github.com/spf13/cobra"
)

// findRecord resolves a full ID, unique ID prefix, or exact title to a
// stored record.
func findRecord(store *localstore.Store, idOrTitle string) (*record.Record, error) {
	rec, err := store.Get(idOrTitle)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	recs, err := store.List(currentOwner(), models.CollectionNotes)
	if err != nil {
		return nil, err
	}
	var match *record.Record
	var titles []string
	for i := range recs {
		note := noteFromRecord(recs[i].Payload)
		titles = append(titles, note.Title)
		hit := strings.HasPrefix(recs[i].ID, idOrTitle) ||
			strings.EqualFold(note.Title, idOrTitle)
		if hit {
			if match != nil {
				return nil, fmt.Errorf("ambiguous reference %q", idOrTitle)
			}
			match = &recs[i]
		}
	}
	if match == nil {
		if close := suggest.Titles(idOrTitle, titles); len(close) > 0 {
			return nil, fmt.Errorf("note %q not found (did you mean %s?)",
				idOrTitle, strings.Join(close, ", "))
		}
		return nil, fmt.Errorf("note %q not found", idOrTitle)
	}
	return match, nil
}

var showCmd = &cobra.Command{
	Use:     "show <id|title>",
	Short:   "Show a note",
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

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			return output.JSON(map[string]any{
				"id":          rec.ID,
				"title":       note.Title,
				"body":        note.Body,
				"tags":        note.Tags,
				"modified_at": rec.LastModifiedAt,
				"synced_at":   rec.LastSyncedAt,
				"dirty":       rec.Dirty,
			})
		}

		output.Title("%s", note.Title)
		if len(note.Tags) > 0 {
			var tags []string
			for _, t := range note.Tags {
				tags = append(tags, output.FormatTag(t))
			}
			fmt.Println(strings.Join(tags, " "))
		}
		if note.Body != "" {
			fmt.Println()
			fmt.Println(note.Body)
		}
		fmt.Println()
		output.Subtle("id:       %s", rec.ID)
		output.Subtle("modified: %s", output.FormatTimestamp(rec.LastModifiedAt))
		output.Subtle("synced:   %s", output.FormatTimestamp(rec.LastSyncedAt))
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(showCmd)
}
