package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sibylchat/sibyl/internal/appdir"
	"github.com/sibylchat/sibyl/internal/memory"
)

var (
	purgeUser string
	purgeAll  bool
)

// toolsCmd represents the tools command
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Utility tools for maintenance and debugging",
	Long: `Utility tools for maintenance and debugging.

These commands provide utilities for managing stored conversation
memory and performing maintenance tasks.`,
}

// toolsMemoryPurgeCmd deletes persisted conversation memory.
var toolsMemoryPurgeCmd = &cobra.Command{
	Use:   "memory-purge",
	Short: "Delete persisted conversation memory",
	Long: `Delete conversation memory persisted in the sibyl data directory.

Use --user to remove the stored interactions of a single client, or
--all to remove the whole memory database.

Examples:
  sibyl tools memory-purge --user 4f8a...   # Forget one client
  sibyl tools memory-purge --all            # Forget everything`,
	RunE: runMemoryPurge,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsMemoryPurgeCmd)

	toolsMemoryPurgeCmd.Flags().StringVar(&purgeUser, "user", "", "Client ID whose memory should be deleted")
	toolsMemoryPurgeCmd.Flags().BoolVar(&purgeAll, "all", false, "Delete the entire memory database")
}

func runMemoryPurge(cmd *cobra.Command, args []string) error {
	if purgeUser == "" && !purgeAll {
		return fmt.Errorf("specify --user <id> or --all")
	}

	dir, err := appdir.Dir()
	if err != nil {
		return err
	}
	dbPath := filepath.Join(dir, "memory.db")

	if purgeAll {
		if err := os.Remove(dbPath); err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No memory database found, nothing to delete.")
				return nil
			}
			return fmt.Errorf("failed to delete memory database: %w", err)
		}
		fmt.Printf("🧹 Deleted memory database: %s\n", dbPath)
		return nil
	}

	store, err := memory.OpenStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	defer store.Close()

	if err := store.Purge(cmd.Context(), purgeUser); err != nil {
		return fmt.Errorf("failed to purge memory for %s: %w", purgeUser, err)
	}
	fmt.Printf("🧹 Deleted stored memory for client %s\n", purgeUser)
	return nil
}
