package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/marcus/notesync/internal/server"
	"github.com/marcus/notesync/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create-owner":
		runAdminCreateOwner(args[1:])
	case "create-key":
		runAdminCreateKey(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: notesync-server admin <command> [flags]

Commands:
  create-owner  Register a new owner account
  create-key    Create an API key for an owner`)
}

func openDB(dbPath string) *serverdb.ServerDB {
	if dbPath == "" {
		cfg := server.LoadConfig()
		dbPath = cfg.DBPath
	}
	store, err := serverdb.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runAdminCreateOwner(args []string) {
	fs := flag.NewFlagSet("admin create-owner", flag.ExitOnError)
	name := fs.String("name", "", "display name for the owner")
	dbPath := fs.String("db", "", "path to notesync.db (default: from NOTESYNC_SERVER_DB_PATH or ./data/notesync.db)")
	fs.Parse(args)

	if *name == "" {
		fmt.Fprintln(os.Stderr, "error: --name is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	owner, err := store.CreateOwner(*name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created owner %s (%s)\n", owner.ID, owner.Name)
}

func runAdminCreateKey(args []string) {
	fs := flag.NewFlagSet("admin create-key", flag.ExitOnError)
	ownerID := fs.String("owner", "", "owner ID the key belongs to")
	name := fs.String("name", "", "label for the key (e.g. laptop)")
	dbPath := fs.String("db", "", "path to notesync.db (default: from NOTESYNC_SERVER_DB_PATH or ./data/notesync.db)")
	fs.Parse(args)

	if *ownerID == "" {
		fmt.Fprintln(os.Stderr, "error: --owner is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	plaintext, ak, err := store.GenerateAPIKey(*ownerID, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created key %s for %s\n", ak.ID, ak.OwnerID)
	fmt.Println("API key (shown once, store it safely):")
	fmt.Println(plaintext)
}
