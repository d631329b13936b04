package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/florianmw/bpexplore/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync status of every dataset",
	Long: `Prints each dataset's lifecycle status (idle, syncing, ready, failed),
record count and the time of the last successful sync. Search modes are only
available while their datasets are ready.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if syncEngine == nil {
		return errors.New("sync engine not configured")
	}

	ctx := context.Background()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tSTATUS\tRECORDS\tLAST SYNCED")
	for _, dataset := range domain.Datasets() {
		status, err := syncEngine.Status(ctx, dataset)
		if err != nil {
			return fmt.Errorf("status %s: %w", dataset, err)
		}

		lastSynced := "never"
		if !status.LastSyncedAt.IsZero() {
			lastSynced = status.LastSyncedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", dataset, status.Status, status.RecordCount, lastSynced)
	}
	return w.Flush()
}
