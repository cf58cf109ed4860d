package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/notesync/internal/output"
	"github.com/marcus/notesync/internal/remote"
	"github.com/marcus/notesync/internal/syncconfig"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Log in to a sync server",
	Long:    `Stores an API key for a notesync server and claims the notes on this machine for that account. Keys are created server-side with 'notesync-server admin create-key'.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		if serverURL == "" {
			serverURL = syncconfig.GetServerURL()
		}
		serverURL = strings.TrimRight(serverURL, "/")

		apiKey, _ := cmd.Flags().GetString("api-key")
		if apiKey == "" {
			fmt.Fprintf(os.Stderr, "API key for %s: ", serverURL)
			keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				output.Error("read api key: %v", err)
				return err
			}
			apiKey = strings.TrimSpace(string(keyBytes))
		}
		if apiKey == "" {
			output.Error("api key is required")
			return fmt.Errorf("api key is required")
		}

		deviceID := uuid.NewString()
		client := remote.NewClient(serverURL, apiKey, deviceID)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		st, err := client.Status(ctx)
		if err != nil {
			output.Error("login failed: %v", err)
			return err
		}

		if err := syncconfig.SaveAuth(&syncconfig.AuthCredentials{
			APIKey:    apiKey,
			OwnerID:   st.OwnerID,
			ServerURL: serverURL,
			DeviceID:  deviceID,
		}); err != nil {
			output.Error("save credentials: %v", err)
			return err
		}

		// Claim notes made before login so they sync to this account.
		if store, err := openStore(); err == nil {
			defer store.Close()
			if n, err := store.AdoptOwner(localOwnerID, st.OwnerID); err != nil {
				output.Warning("could not claim local notes: %v", err)
			} else if n > 0 {
				output.Info("Queued %d existing notes for sync", n)
			}
		}

		output.Success("Logged in to %s as %s", serverURL, st.OwnerID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget stored sync credentials",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			output.Error("clear credentials: %v", err)
			return err
		}
		output.Success("Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("server", "", "server base URL (default from config)")
	loginCmd.Flags().String("api-key", "", "API key (prompted securely when omitted)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
