package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/florianmw/bpexplore/internal/core/domain"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync [dataset]",
	Short: "Synchronise datasets from betterplace.org",
	Long: fmt.Sprintf(`Fetches remote records page by page and upserts them into the local cache.
If a dataset name is given (%s), only that dataset is synchronised.
Otherwise all datasets are synchronised concurrently.

A failed sync keeps everything already committed; re-running completes the
dataset without duplicating records.`, strings.Join(domain.Datasets(), ", ")),
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "cancel a running sync and start over")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncEngine == nil {
		return errors.New("sync engine not configured")
	}

	ctx := context.Background()

	if len(args) == 0 {
		cmd.Println("Synchronising all datasets...")
		if err := syncEngine.SyncAll(ctx); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		cmd.Println("All datasets synchronised.")
		return nil
	}

	dataset := args[0]
	cmd.Printf("Synchronising %s...\n", dataset)

	var err error
	if syncForce {
		err = syncEngine.Resync(ctx, dataset)
	} else {
		err = syncEngine.StartSync(ctx, dataset)
	}

	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		cmd.Printf("A sync for %s is already running (use --force to restart it).\n", dataset)
		return nil
	case err != nil:
		return fmt.Errorf("sync failed: %w", err)
	}

	status, statusErr := syncEngine.Status(ctx, dataset)
	if statusErr == nil {
		cmd.Printf("Dataset %s synchronised: %d records.\n", dataset, status.RecordCount)
	} else {
		cmd.Printf("Dataset %s synchronised.\n", dataset)
	}
	return nil
}
