package mcp

import "github.com/mark3labs/mcp-go/mcp"

// semanticSearchTool defines the zotseek_semantic_search MCP tool.
var semanticSearchTool = mcp.NewTool("zotseek_semantic_search",
	mcp.WithDescription("Search the Zotero library semantically. Returns the most relevant items with authors, dates, and abstracts."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
	mcp.WithString("item_type",
		mcp.Description("Filter results by Zotero item type, e.g. journalArticle, book, note"),
	),
	mcp.WithString("tag",
		mcp.Description("Only return items carrying this tag"),
	),
	mcp.WithString("creators",
		mcp.Description("Filter by the exact formatted creator string, e.g. \"Turing, Alan\""),
	),
	mcp.WithString("date",
		mcp.Description("Filter by the item's date field"),
	),
)

// updateDatabaseTool defines the zotseek_update_database MCP tool.
var updateDatabaseTool = mcp.NewTool("zotseek_update_database",
	mcp.WithDescription("Sync the search index with the Zotero library: new and changed items are re-embedded, deleted items are removed."),
	mcp.WithBoolean("force_rebuild",
		mcp.Description("Discard the entire index and re-embed every item (default false)"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Only process the first N library items (0 = all)"),
	),
	mcp.WithBoolean("fulltext",
		mcp.Description("Also extract and index attachment text (default false)"),
	),
)

// databaseStatusTool defines the zotseek_database_status MCP tool.
var databaseStatusTool = mcp.NewTool("zotseek_database_status",
	mcp.WithDescription("Report the state of the search index: item count, embedding model, last sync time and outcome."),
)

// planTagUpdateTool defines the zotseek_plan_tag_update MCP tool.
var planTagUpdateTool = mcp.NewTool("zotseek_plan_tag_update",
	mcp.WithDescription("Plan a bulk tag update over the items matching a semantic search. Nothing is written until the job is applied."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Semantic search selecting the items to update"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of matching items to include (default 50)"),
	),
	mcp.WithString("add_tags",
		mcp.Description("Comma-separated tags to add to each item"),
	),
	mcp.WithString("remove_tags",
		mcp.Description("Comma-separated tags to remove from each item"),
	),
)

// applyTagUpdateTool defines the zotseek_apply_tag_update MCP tool.
var applyTagUpdateTool = mcp.NewTool("zotseek_apply_tag_update",
	mcp.WithDescription("Apply one batch of a planned tag update job. Call repeatedly until the job reports completed; progress is checkpointed between calls."),
	mcp.WithString("job_id",
		mcp.Required(),
		mcp.Description("ID of the job returned by zotseek_plan_tag_update"),
	),
)

// listTagJobsTool defines the zotseek_list_tag_jobs MCP tool.
var listTagJobsTool = mcp.NewTool("zotseek_list_tag_jobs",
	mcp.WithDescription("List tag update jobs and their progress."),
)
