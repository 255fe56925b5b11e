package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the search index",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	idx := a.store.Stats()

	fmt.Printf("Collection:       %s\n", idx.Name)
	fmt.Printf("Indexed items:    %d\n", idx.Count)
	fmt.Printf("Embedding model:  %s (%d dimensions)\n", idx.EmbeddingModel, idx.Dimensions)
	fmt.Printf("Storage:          %s\n", a.cfg.Index.DataDir)

	if n, err := a.fingerprints.Count(ctx); err == nil {
		fmt.Printf("Fingerprints:     %d\n", n)
	}

	state, err := a.states.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading sync state: %w", err)
	}
	if state.LastSyncTime == nil {
		fmt.Println("Last sync:        never")
	} else {
		fmt.Printf("Last sync:        %s\n", state.LastSyncTime.Local().Format("2006-01-02 15:04:05"))
		s := state.LastStats
		fmt.Printf("Last sync result: %d seen, %d added, %d updated, %d unchanged, %d error(s)\n",
			s.TotalItems, s.AddedItems, s.UpdatedItems, s.SkippedItems, s.Errors)
	}

	if cadence := a.scheduler.Cadence(); cadence.Auto {
		fmt.Printf("Auto update:      every %s\n", cadence.Interval.Round(time.Hour))
		due, err := a.scheduler.ShouldUpdateNow(ctx)
		if err == nil && due {
			fmt.Println("                  (update due now)")
		}
	} else {
		fmt.Println("Auto update:      manual")
	}

	return nil
}
