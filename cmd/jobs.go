package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zotseek/zotseek/internal/jobs"
	"github.com/zotseek/zotseek/internal/search"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage bulk tag update jobs",
	Long: `Tag update jobs apply bulk tag changes to library items in checkpointed
batches, so an interrupted job can be resumed without redoing work.`,
}

var jobsPlanCmd = &cobra.Command{
	Use:   "plan <query>",
	Short: "Plan a tag update over items matching a search",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runJobsPlan,
}

var jobsApplyCmd = &cobra.Command{
	Use:   "apply <job-id>",
	Short: "Run a planned job to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsApply,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs and their progress",
	RunE:  runJobsList,
}

var jobsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete old completed and failed jobs",
	RunE:  runJobsSweep,
}

func init() {
	jobsPlanCmd.Flags().StringSlice("add", nil, "tags to add")
	jobsPlanCmd.Flags().StringSlice("remove", nil, "tags to remove")
	jobsPlanCmd.Flags().Int("limit", 50, "maximum matching items to include")
	jobsSweepCmd.Flags().Duration("older-than", 7*24*time.Hour, "retention window for terminal jobs")

	jobsCmd.AddCommand(jobsPlanCmd, jobsApplyCmd, jobsListCmd, jobsSweepCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsPlan(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	add, _ := cmd.Flags().GetStringSlice("add")
	remove, _ := cmd.Flags().GetStringSlice("remove")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := context.Background()
	resp, err := a.searcher.Search(ctx, search.Request{
		Query: strings.Join(args, " "),
		Limit: limit,
	})
	if err != nil {
		return err
	}
	if len(resp.Results) == 0 {
		fmt.Println("No items matched the query; no job was created.")
		return nil
	}

	keys := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		keys[i] = r.ItemKey
	}

	job, err := a.jobRunner.Plan(ctx, jobs.TagSpec{AddTags: add, RemoveTags: remove}, keys)
	if err != nil {
		return err
	}

	fmt.Printf("Planned job %s over %d item(s).\n", job.ID, len(keys))
	for _, r := range resp.Results {
		fmt.Printf("  %s  %s\n", r.ItemKey, r.Title)
	}
	fmt.Printf("Run `zotseek jobs apply %s` to execute it.\n", job.ID)
	return nil
}

func runJobsApply(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.jobRunner.Run(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Job %s %s: %d processed, %d failed.\n",
		job.ID, job.Status, len(job.ProcessedKeys), len(job.FailedKeys))
	for _, key := range job.FailedKeys {
		fmt.Printf("  failed: %s\n", key)
	}
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.jobStore.List(context.Background())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No tag update jobs.")
		return nil
	}

	for _, job := range list {
		fmt.Printf("%s  %-9s  %s  pending=%d processed=%d failed=%d\n",
			job.ID, job.Status, job.CreatedAt.Local().Format("2006-01-02 15:04"),
			len(job.PendingKeys), len(job.ProcessedKeys), len(job.FailedKeys))
	}
	return nil
}

func runJobsSweep(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	olderThan, _ := cmd.Flags().GetDuration("older-than")
	n, err := a.jobStore.Sweep(context.Background(), olderThan)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d job(s).\n", n)
	return nil
}
