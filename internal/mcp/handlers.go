package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zotseek/zotseek/internal/indexer"
	"github.com/zotseek/zotseek/internal/jobs"
	"github.com/zotseek/zotseek/internal/search"
)

// handleSemanticSearch performs semantic search over the library index.
func (s *Server) handleSemanticSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	req := search.Request{
		Query:   query,
		Limit:   request.GetInt("limit", 10),
		Filters: map[string]string{},
	}
	for param, key := range map[string]string{
		"item_type": "itemType",
		"tag":       "tag",
		"creators":  "creators",
		"date":      "date",
	} {
		if v := request.GetString(param, ""); v != "" {
			req.Filters[key] = v
		}
	}

	resp, err := s.searcher.Search(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(resp.Results) == 0 && s.store.Count() == 0 {
		return mcp.NewToolResultText("The index is empty. Run zotseek_update_database to index the library first."), nil
	}

	return mcp.NewToolResultText(search.FormatMarkdown(resp)), nil
}

// handleUpdateDatabase runs one sync pass.
func (s *Server) handleUpdateDatabase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.syncer.Run(ctx, indexer.Params{
		ForceFullRebuild: request.GetBool("force_rebuild", false),
		Limit:            request.GetInt("limit", 0),
		ExtractFulltext:  request.GetBool("fulltext", false),
	})
	if errors.Is(err, indexer.ErrSyncBusy) {
		return mcp.NewToolResultText("A sync is already in progress; this request was skipped."), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatSyncStats(stats)), nil
}

// handleDatabaseStatus reports index and sync state.
func (s *Server) handleDatabaseStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder

	idx := s.store.Stats()
	fmt.Fprintf(&sb, "Collection: %s\n", idx.Name)
	fmt.Fprintf(&sb, "Indexed items: %d\n", idx.Count)
	fmt.Fprintf(&sb, "Embedding model: %s (%d dimensions)\n", idx.EmbeddingModel, idx.Dimensions)
	if idx.PersistDir != "" {
		fmt.Fprintf(&sb, "Storage: %s\n", idx.PersistDir)
	}

	if n, err := s.fingerprints.Count(ctx); err == nil {
		fmt.Fprintf(&sb, "Fingerprinted items: %d\n", n)
	}

	state, err := s.states.Get(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read sync state: %v", err)), nil
	}
	if state.LastSyncTime == nil {
		sb.WriteString("Last sync: never\n")
	} else {
		fmt.Fprintf(&sb, "Last sync: %s\n", state.LastSyncTime.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(&sb, "Last sync result: %s\n", summarizeStats(&state.LastStats))
	}

	if c := s.scheduler.Cadence(); c.Auto {
		fmt.Fprintf(&sb, "Auto update: every %s\n", c.Interval)
	} else {
		sb.WriteString("Auto update: manual\n")
	}
	if due, err := s.scheduler.ShouldUpdateNow(ctx); err == nil {
		fmt.Fprintf(&sb, "Update due: %t\n", due)
	}

	if s.syncer.Running() {
		fmt.Fprintf(&sb, "Sync in progress: %s\n", s.syncer.State())
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// handlePlanTagUpdate creates a checkpointed tag job over search hits.
func (s *Server) handlePlanTagUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	spec := jobs.TagSpec{
		AddTags:    splitTags(request.GetString("add_tags", "")),
		RemoveTags: splitTags(request.GetString("remove_tags", "")),
	}
	if len(spec.AddTags) == 0 && len(spec.RemoveTags) == 0 {
		return mcp.NewToolResultError("at least one of add_tags or remove_tags is required"), nil
	}

	resp, err := s.searcher.Search(ctx, search.Request{
		Query: query,
		Limit: request.GetInt("limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(resp.Results) == 0 {
		return mcp.NewToolResultText("No items matched the query; no job was created."), nil
	}

	keys := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		keys[i] = r.ItemKey
	}

	job, err := s.jobRunner.Plan(ctx, spec, keys)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("plan job: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Planned tag update job %s over %d item(s). Run zotseek_apply_tag_update with this job_id to execute it.",
		job.ID, len(keys),
	)), nil
}

// handleApplyTagUpdate processes one slice of a tag job.
func (s *Server) handleApplyTagUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: job_id"), nil
	}

	job, err := s.jobRunner.Apply(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no job with ID %s", jobID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("apply job: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJob(job)), nil
}

// handleListTagJobs lists jobs newest first.
func (s *Server) handleListTagJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.jobStore.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list jobs: %v", err)), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No tag update jobs."), nil
	}

	var sb strings.Builder
	for _, job := range list {
		sb.WriteString(formatJob(job))
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatJob(job *jobs.Job) string {
	return fmt.Sprintf("Job %s: %s (%d pending, %d processed, %d failed)",
		job.ID, job.Status, len(job.PendingKeys), len(job.ProcessedKeys), len(job.FailedKeys))
}

func formatSyncStats(stats *indexer.Stats) string {
	return fmt.Sprintf("Sync complete in %s.\n%s",
		stats.Duration.Round(time.Millisecond), summarizeStats(stats))
}

func summarizeStats(stats *indexer.Stats) string {
	return fmt.Sprintf("%d items seen: %d added, %d updated, %d unchanged, %d error(s)",
		stats.TotalItems, stats.AddedItems, stats.UpdatedItems, stats.SkippedItems, stats.Errors)
}

// splitTags parses a comma-separated tag list, trimming whitespace and
// dropping empties.
func splitTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
