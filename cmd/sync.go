package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zotseek/zotseek/internal/indexer"
	"github.com/zotseek/zotseek/internal/progress"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the search index with the Zotero library",
	Long: `Enumerates the library, re-embeds new and changed items, and removes
deleted items from the index. Unchanged items are skipped, so repeated
syncs only pay for what actually changed.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("force", false, "discard the index and re-embed everything")
	syncCmd.Flags().Int("limit", 0, "only process the first N library items")
	syncCmd.Flags().Bool("fulltext", false, "extract and index attachment text")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	force, _ := cmd.Flags().GetBool("force")
	limit, _ := cmd.Flags().GetInt("limit")
	fulltext, _ := cmd.Flags().GetBool("fulltext")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := progress.NewReporter()
	a.syncer.SetProgress(progress.SyncProgress(reporter))
	defer reporter.Finish()

	stats, err := a.syncer.Run(ctx, indexer.Params{
		ForceFullRebuild: force,
		Limit:            limit,
		ExtractFulltext:  fulltext,
	})
	if errors.Is(err, indexer.ErrSyncBusy) {
		fmt.Println("A sync is already in progress.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Synced %d items in %s: %d added, %d updated, %d unchanged",
		stats.TotalItems, stats.Duration.Round(time.Millisecond),
		stats.AddedItems, stats.UpdatedItems, stats.SkippedItems)
	if stats.Errors > 0 {
		fmt.Printf(", %d error(s)", stats.Errors)
	}
	fmt.Println()
	return nil
}
