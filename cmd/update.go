package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/notesync/internal/output"
	"github.com/marcus/notesync/internal/version"
)

var updateCmd = &cobra.Command{
	Use:     "update",
	Short:   "Check whether a newer release is available",
	GroupID: "system",
	Run: func(cmd *cobra.Command, args []string) {
		current := rootCmd.Version
		if version.IsDevelopmentVersion(current) {
			output.Info("Running a development build (%s); update checks are skipped.", current)
			return
		}

		res := version.CheckCached(current)
		if res.Error != nil {
			output.Error("update check failed: %v", res.Error)
			return
		}
		if !res.HasUpdate {
			output.Success("notesync %s is up to date", res.CurrentVersion)
			return
		}

		output.Info("New version available: %s (current %s)", res.LatestVersion, res.CurrentVersion)
		if cmdline := version.UpdateCommand(res.LatestVersion); cmdline != "" {
			output.Subtle("Update with: %s", cmdline)
		}
		if res.UpdateURL != "" {
			output.Subtle("Release notes: %s", res.UpdateURL)
		}
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
