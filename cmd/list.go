package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/notesync/internal/dateparse"
	"github.com/marcus/notesync/internal/models"
	"github.com/marcus/notesync/internal/output"
	"github.com/marcus/notesync/internal/record"
	"github.com/spf13/cobra"
)

// noteListItem is the JSON shape for one note in list output.
type noteListItem struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags,omitempty"`
	ModifiedAt int64    `json:"modified_at"`
	Dirty      bool     `json:"dirty"`
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notes",
	GroupID: "notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		recs, err := store.List(currentOwner(), models.CollectionNotes)
		if err != nil {
			output.Error("failed to list notes: %v", err)
			return err
		}

		tagFilter, _ := cmd.Flags().GetString("tag")
		var sinceMillis int64
		if sinceArg, _ := cmd.Flags().GetString("since"); sinceArg != "" {
			t, err := dateparse.ParseSince(sinceArg)
			if err != nil {
				output.Error("invalid --since: %v", err)
				return err
			}
			sinceMillis = t.UnixMilli()
		}
		type row struct {
			rec  record.Record
			note *models.Note
		}
		var rows []row
		for _, rec := range recs {
			note := noteFromRecord(rec.Payload)
			if tagFilter != "" && !note.HasTag(tagFilter) {
				continue
			}
			if sinceMillis > 0 && rec.LastModifiedAt < sinceMillis {
				continue
			}
			rows = append(rows, row{rec, note})
		}

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			items := make([]noteListItem, 0, len(rows))
			for _, r := range rows {
				items = append(items, noteListItem{
					ID:         r.rec.ID,
					Title:      r.note.Title,
					Tags:       r.note.Tags,
					ModifiedAt: r.rec.LastModifiedAt,
					Dirty:      r.rec.Dirty,
				})
			}
			return output.JSON(items)
		}

		if len(rows) == 0 {
			output.Subtle("No notes. Create one with 'notesync add'.")
			return nil
		}

		for _, r := range rows {
			var tags []string
			for _, t := range r.note.Tags {
				tags = append(tags, output.FormatTag(t))
			}
			line := fmt.Sprintf("%s %s  %s", output.FormatSyncState(r.rec.Dirty), shortID(r.rec.ID), r.note.Title)
			if len(tags) > 0 {
				line += "  " + strings.Join(tags, " ")
			}
			fmt.Println(line)
			if summary := r.note.Summary(72); summary != "" {
				output.Subtle("           %s", summary)
			}
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("tag", "", "only notes carrying this tag")
	listCmd.Flags().String("since", "", "only notes modified after this point (e.g. 7d, yesterday, 2026-03-01)")
	listCmd.Flags().Bool("json", false, "output JSON")
	rootCmd.AddCommand(listCmd)
}
