package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prasenjit/go-mockserver/internal/storage"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge persisted request records",
	Long: `Deletes request records persisted by the configured storage backend
(analytics.persist) that are older than --older-than.`,
	RunE: runCleanup,
}

var olderThan time.Duration

func init() {
	cleanupCmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Delete records older than this duration")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if olderThan < 0 {
		return fmt.Errorf("--older-than must not be negative")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.Open(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	n, err := purge(cmd.Context(), store, time.Now().Add(-olderThan))
	if err != nil {
		return err
	}

	logger.Info("purged request records", "storage", store.Info().Type, "deleted", n)
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d request records\n", n)
	return nil
}

func purge(ctx context.Context, store storage.Storage, before time.Time) (int64, error) {
	purger, ok := store.(storage.Purger)
	if !ok {
		return 0, fmt.Errorf("storage %q does not keep request records", store.Info().Type)
	}
	return purger.PurgeRequests(ctx, before)
}
