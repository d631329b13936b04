// Package cli wires the cobra commands that drive the cache and search
// services.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/florianmw/bpexplore/internal/adapters/driven/betterplace"
	configfile "github.com/florianmw/bpexplore/internal/adapters/driven/config/file"
	"github.com/florianmw/bpexplore/internal/adapters/driven/storage/sqlite"
	"github.com/florianmw/bpexplore/internal/core/ports/driven"
	"github.com/florianmw/bpexplore/internal/core/ports/driving"
	"github.com/florianmw/bpexplore/internal/core/services"
	"github.com/florianmw/bpexplore/internal/logger"
)

// version is set via ldflags at release build time.
var version = "dev"

var (
	flagVerbose   bool
	flagConfigDir string
	flagDataDir   string
)

// Wired services, initialised in initServices.
var (
	configStore driven.ConfigStore
	recordStore *sqlite.Store
	syncEngine  driving.SyncEngine
	searchIndex *services.SearchIndex
	queryRouter driving.QueryRouter
)

var rootCmd = &cobra.Command{
	Use:   "bpexplore",
	Short: "Explore betterplace.org data from a local cache",
	Long: `bpexplore keeps a durable local copy of the betterplace.org projects,
organisations and fundraising events datasets and answers ID, contact-name,
organisation-name and title searches against it, tolerant of typos and name
variants.

Searches only run against datasets whose sync has completed; use "bpexplore
sync" first and "bpexplore status" to check readiness.`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "config directory (default ~/.bpexplore)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.bpexplore/data)")
}

// Execute runs the root command.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}

// initServices builds the adapter and service graph before any command runs.
func initServices(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(flagVerbose)

	var err error
	configStore, err = configfile.NewConfigStore(flagConfigDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dataDir := flagDataDir
	if dataDir == "" {
		dataDir = configStore.GetString(configfile.KeyDataDir)
	}

	recordStore, err = sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	logger.Debug("Record store: %s", recordStore.Path())

	fetcher := betterplace.NewClient(betterplace.ClientOptions{
		BaseURL:           configStore.GetString(configfile.KeyAPIBaseURL),
		PerPage:           configStore.GetInt(configfile.KeyPerPage),
		RequestsPerSecond: configStore.GetFloat(configfile.KeyRequestsPerSecond),
	})

	syncEngine = services.NewSyncEngine(recordStore, fetcher, services.SyncOptions{
		PageTimeout: time.Duration(configStore.GetInt(configfile.KeyPageTimeoutSecs)) * time.Second,
		MaxRetries:  uint64(configStore.GetInt(configfile.KeyMaxRetries)), //nolint:gosec // config value
	})

	searchIndex = services.NewSearchIndex(recordStore, configStore.GetFloat(configfile.KeyFuzzyThreshold))
	queryRouter = services.NewQueryRouter(syncEngine, searchIndex)

	return nil
}

// closeServices releases resources acquired in initServices.
func closeServices() {
	if recordStore != nil {
		recordStore.Close() //nolint:errcheck
	}
}
