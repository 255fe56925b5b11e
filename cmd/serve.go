package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zotseek/zotseek/internal/indexer"
	mcpserver "github.com/zotseek/zotseek/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing library
search and sync tools for AI agents like Claude. If the configured update
cadence says a sync is due, it runs in the background on startup.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Set version from the cmd package variable.
	mcpserver.Version = Version

	ctx, cancel := context.WithCancel(context.Background())
	syncDone := startBackgroundSync(ctx, a)

	fmt.Fprintf(os.Stderr, "zotseek MCP server started on stdio (indexed items=%d)\n", a.store.Count())

	srv := mcpserver.NewServer(a.searcher, a.syncer, a.store, a.fingerprints,
		a.states, a.scheduler, a.jobRunner, a.jobStore)
	err = srv.Serve()

	cancel()
	<-syncDone
	return err
}

// startBackgroundSync runs a sync pass in the background when the
// configured cadence says one is due. Failures and cancellation are
// logged, never fatal: a stale index still answers queries.
func startBackgroundSync(ctx context.Context, a *app) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		due, err := a.scheduler.ShouldUpdateNow(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "startup sync check failed: %v\n", err)
			return
		}
		if !due {
			return
		}

		fmt.Fprintln(os.Stderr, "startup sync: index update is due, syncing in the background")
		stats, err := a.syncer.Run(ctx, indexer.Params{})
		switch {
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(os.Stderr, "startup sync cancelled during shutdown")
		case errors.Is(err, indexer.ErrSyncBusy):
			// A tool call beat us to it.
		case err != nil:
			fmt.Fprintf(os.Stderr, "startup sync failed: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "startup sync complete: %d added, %d updated, %d unchanged\n",
				stats.AddedItems, stats.UpdatedItems, stats.SkippedItems)
		}
	}()
	return done
}
