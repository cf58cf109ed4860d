package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcus/notesync/internal/localstore"
	"github.com/marcus/notesync/internal/output"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a notesync store here",
	Long:    `Creates the local .notesync directory and SQLite database.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		if _, err := os.Stat(filepath.Join(baseDir, ".notesync")); err == nil {
			output.Warning(".notesync/ already exists")
			return nil
		}

		store, err := localstore.Initialize(baseDir)
		if err != nil {
			output.Error("failed to initialize store: %v", err)
			return err
		}
		defer store.Close()

		fmt.Println("INITIALIZED .notesync/")

		addToGitignore(filepath.Join(baseDir, ".gitignore"))

		return nil
	},
}

// addToGitignore appends .notesync/ to an existing .gitignore so local
// databases never get committed. No-op when there is no .gitignore.
func addToGitignore(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if strings.Contains(string(content), ".notesync/") {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	prefix := ""
	if len(content) > 0 && content[len(content)-1] != '\n' {
		prefix = "\n"
	}
	f.WriteString(prefix + ".notesync/\n")
	output.Info("Added .notesync/ to .gitignore")
}

func init() {
	rootCmd.AddCommand(initCmd)
}
