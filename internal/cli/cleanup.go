package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewCleanupCmd creates the 'cleanup' command for one-shot retention sweeps.
func NewCleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:     "cleanup",
		Short:   "Delete history entries not used recently",
		Long:    `Remove history entries whose last use is older than the retention window, then compact the database.`,
		Example: `  toolvault cleanup --days 90`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(days)
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 90, "Retention window in days")

	return cmd
}

func runCleanup(days int) error {
	if days <= 0 {
		return fmt.Errorf("retention window must be positive, got %d", days)
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	before, err := store.CountEntries()
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	if err := store.Cleanup(time.Duration(days) * 24 * time.Hour); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	after, err := store.CountEntries()
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	fmt.Printf("✓ Removed %d entries older than %d days (%d remain)\n", before-after, days, after)
	return nil
}
