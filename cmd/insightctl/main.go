// Command insightctl runs maintenance tasks against the customer database:
// migrations, CSV imports, demo data and quick counts.
package main

import (
	"fmt"
	"os"

	"insightpilot/backend/internal/config"
	"insightpilot/backend/internal/store"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:           "insightctl",
		Short:         "Customer insight maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a config file (default: ./config.yaml if present)")

	cmd.AddCommand(
		newMigrateCmd(&opts),
		newImportCmd(&opts),
		newDemoCmd(&opts),
		newGenerateCSVCmd(&opts),
		newCountsCmd(&opts),
	)
	return cmd
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	return config.Load(opts.configFile)
}

func openStore(opts *rootOptions) (config.Config, *store.Store, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return config.Config{}, nil, err
	}
	db, err := store.Open(cfg.Database)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, store.New(db, cfg.Import.BatchSize), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
