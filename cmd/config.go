package cmd

import (
	"fmt"
	"time"

	"github.com/marcus/notesync/internal/output"
	"github.com/marcus/notesync/internal/syncconfig"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show or change notesync settings",
	GroupID: "system",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")
		settings := map[string]any{
			"server_url":    syncconfig.GetServerURL(),
			"logged_in":     syncconfig.IsAuthenticated(),
			"auto_enabled":  syncconfig.GetAutoSyncEnabled(),
			"auto_debounce": syncconfig.GetAutoSyncDebounce().String(),
			"auto_interval": syncconfig.GetAutoSyncInterval().String(),
		}
		if jsonOut {
			return output.JSON(settings)
		}
		output.Info("server_url:    %s", settings["server_url"])
		output.Info("logged_in:     %v", settings["logged_in"])
		output.Info("auto_enabled:  %v", settings["auto_enabled"])
		output.Info("auto_debounce: %s", settings["auto_debounce"])
		output.Info("auto_interval: %s", settings["auto_interval"])
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long:  `Supported keys: sync.url, sync.auto.enabled, sync.auto.debounce, sync.auto.interval.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		cfg, err := syncconfig.LoadConfig()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}

		switch key {
		case "sync.url":
			cfg.Sync.URL = value
		case "sync.auto.enabled":
			b := value == "true" || value == "1"
			if !b && value != "false" && value != "0" {
				output.Error("value for %s must be true or false", key)
				return fmt.Errorf("invalid bool: %s", value)
			}
			cfg.Sync.Auto.Enabled = &b
		case "sync.auto.debounce":
			if _, err := time.ParseDuration(value); err != nil {
				output.Error("invalid duration %q: %v", value, err)
				return err
			}
			cfg.Sync.Auto.Debounce = value
		case "sync.auto.interval":
			if _, err := time.ParseDuration(value); err != nil {
				output.Error("invalid duration %q: %v", value, err)
				return err
			}
			cfg.Sync.Auto.Interval = value
		default:
			output.Error("unknown config key: %s", key)
			return fmt.Errorf("unknown config key: %s", key)
		}

		if err := syncconfig.SaveConfig(cfg); err != nil {
			output.Error("save config: %v", err)
			return err
		}
		output.Success("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configShowCmd.Flags().Bool("json", false, "output JSON")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
