package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolvault/toolvault/internal/search"
	"github.com/toolvault/toolvault/internal/storage"
)

// NewHistoryCmd creates the 'history' command group.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage the usage history",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistorySearchCmd())
	cmd.AddCommand(newHistoryRemoveCmd())
	cmd.AddCommand(newHistoryClearCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var jsonOutput bool
	var route string
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List history entries, most recent first",
		Example: `  toolvault history list
  toolvault history ls --route /t/case-converter
  toolvault history list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(jsonOutput, route, limit)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().StringVarP(&route, "route", "r", "", "Only entries for this tool route")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum entries to show (0 = all)")

	return cmd
}

func runHistoryList(jsonOutput bool, route string, limit int) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	var entries []*storage.Entry
	if route != "" {
		entries, err = store.ListByRoute(route)
	} else {
		entries, err = store.ListEntries(limit)
	}
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if route != "" && limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No history entries.")
		return nil
	}

	fmt.Printf("History entries (%d):\n\n", len(entries))
	for _, e := range entries {
		printEntry(e)
	}
	return nil
}

func printEntry(e *storage.Entry) {
	fmt.Printf("  %s  %s\n", e.ID, e.ToolName)
	fmt.Printf("    Route:     %s\n", e.ToolRoute)
	fmt.Printf("    Status:    %s\n", e.Status)
	fmt.Printf("    Last used: %s\n", e.LastUsed.Format("2006-01-02 15:04:05"))
	fmt.Printf("    Runs:      %d\n", len(e.Timestamps))
	fmt.Printf("    Input:     %s\n", e.Input.Text())
	fmt.Println()
}

func newHistorySearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Full-text search over history entries",
		Example: `  toolvault history search "json"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistorySearch(args[0], limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum results to show")

	return cmd
}

func runHistorySearch(query string, limit int) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ListEntries(0)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	indexer, err := search.NewIndexer()
	if err != nil {
		return fmt.Errorf("failed to create search index: %w", err)
	}
	defer indexer.Close()

	if err := indexer.Rebuild(entries); err != nil {
		return fmt.Errorf("failed to index history: %w", err)
	}

	results, err := indexer.Search(query, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	fmt.Printf("Matches (%d):\n\n", len(results))
	for _, r := range results {
		fmt.Printf("  %s  %s\n", r.EntryID, r.ToolName)
		fmt.Printf("    Route: %s\n", r.ToolRoute)
		fmt.Printf("    Input: %s\n", r.Input)
		fmt.Println()
	}
	return nil
}

func newHistoryRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a single history entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryRemove(args[0])
		},
	}

	return cmd
}

func runHistoryRemove(id string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteEntry(id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	fmt.Printf("✓ Removed entry '%s'\n", id)
	return nil
}

func newHistoryClearCmd() *cobra.Command {
	var route string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete history entries",
		Example: `  toolvault history clear                      # everything
  toolvault history clear --route /t/case-converter`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryClear(route)
		},
	}

	cmd.Flags().StringVarP(&route, "route", "r", "", "Only entries for this tool route")

	return cmd
}

func runHistoryClear(route string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	if route != "" {
		if err := store.DeleteByRoute(route); err != nil {
			return fmt.Errorf("failed to clear history for %s: %w", route, err)
		}
		fmt.Printf("✓ Cleared history for %s\n", route)
		return nil
	}

	if err := store.DeleteAll(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Println("✓ Cleared all history")
	return nil
}

// openStorage opens the history database for a one-shot CLI operation.
func openStorage() (*storage.SQLiteStorage, error) {
	store := storage.NewStorage()
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return store, nil
}
