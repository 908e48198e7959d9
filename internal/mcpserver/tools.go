// Package mcpserver exposes every ingestion, job-control, search, and
// source-management operation as an MCP tool, mirroring internal/httpapi
// one for one so the HTTP and MCP transports share the same underlying
// Scheduler/Search/Store calls. One mcp.NewTool builder function per
// tool, registered against server.ToolHandlerFunc implementations in
// handlers.go.
package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

func initCrawlTool() mcp.Tool {
	return mcp.NewTool("init_crawl",
		mcp.WithDescription("Start a documentation crawl job from one or more seed URLs"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Library/source name")),
		mcp.WithArray("start_urls", mcp.Required(), mcp.WithStringItems(), mcp.Description("Seed URLs to crawl")),
		mcp.WithNumber("max_depth", mcp.Description("Maximum link-following depth")),
		mcp.WithString("version", mcp.Description("Optional source version")),
		mcp.WithString("domain_filter", mcp.Description("Restrict crawl to this domain and its subdomains; defaults to the start URL's host")),
		mcp.WithArray("url_patterns", mcp.WithStringItems(), mcp.Description("Glob patterns a URL's path must match")),
		mcp.WithNumber("max_concurrent", mcp.Description("Concurrent page fetches for this job")),
	)
}

func uploadMarkdownTool() mcp.Tool {
	return mcp.NewTool("upload_markdown",
		mcp.WithDescription("Ingest a single markdown document synchronously"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Library/source name")),
		mcp.WithString("title", mcp.Description("Optional document title")),
	)
}

func uploadFilesTool() mcp.Tool {
	return mcp.NewTool("upload_files",
		mcp.WithDescription("Start a job ingesting multiple in-memory files"),
		mcp.WithArray("files", mcp.Required(), mcp.Description("Array of {path, content} objects")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Library/source name")),
		mcp.WithString("version", mcp.Description("Optional source version")),
		mcp.WithString("title", mcp.Description("Not applied: each document's title is the base name of its file path")),
		mcp.WithNumber("max_concurrent", mcp.Description("Concurrent file ingestion workers")),
	)
}

func uploadRepoTool() mcp.Tool {
	return mcp.NewTool("upload_repo",
		mcp.WithDescription("Start a job shallow-cloning a git repository and ingesting its files"),
		mcp.WithString("repo_url", mcp.Required(), mcp.Description("Git remote URL")),
		mcp.WithString("name", mcp.Description("Library/source name; defaults to repo_url")),
		mcp.WithString("version", mcp.Description("Optional source version")),
		mcp.WithString("path", mcp.Description("Optional subtree path (enables sparse checkout)")),
		mcp.WithString("branch", mcp.Description("Branch to clone, default main")),
		mcp.WithString("token", mcp.Description("Credential for a private HTTPS remote")),
		mcp.WithArray("include", mcp.WithStringItems(), mcp.Description("Glob patterns to include")),
		mcp.WithArray("exclude", mcp.WithStringItems(), mcp.Description("Glob patterns to exclude")),
	)
}

func searchLibrariesTool() mcp.Tool {
	return mcp.NewTool("search_libraries",
		mcp.WithDescription("Resolve a free-text library name to indexed sources"),
		mcp.WithString("query", mcp.Description("Free-text library name")),
		mcp.WithNumber("limit", mcp.Description("Maximum candidates to return")),
		mcp.WithNumber("page", mcp.Description("Zero-based page of results to return")),
	)
}

func getContentTool() mcp.Tool {
	return mcp.NewTool("get_content",
		mcp.WithDescription("Search indexed code snippets, optionally scoped to one library"),
		mcp.WithString("library_id", mcp.Description("Job id, \"name\"/\"name@version\", or fuzzy library name")),
		mcp.WithString("query", mcp.Description("Full-text query")),
		mcp.WithNumber("limit", mcp.Description("Maximum snippets to return")),
		mcp.WithNumber("page", mcp.Description("Zero-based page of results to return")),
		mcp.WithString("search_mode", mcp.Description("\"code\" or \"enhanced\"")),
	)
}

func getSnippetTool() mcp.Tool {
	return mcp.NewTool("get_snippet",
		mcp.WithDescription("Fetch one code snippet, chunked under a token budget"),
		mcp.WithString("snippet_id", mcp.Required(), mcp.Description("Snippet id")),
		mcp.WithNumber("max_tokens", mcp.Description("Approximate token budget per chunk (4 chars/token)")),
		mcp.WithNumber("chunk_index", mcp.Description("Requested chunk index")),
	)
}

func getRelatedSnippetsTool() mcp.Tool {
	return mcp.NewTool("get_related_snippets",
		mcp.WithDescription("List snippets related to a given one (examples, configuration, imports) discovered during parsing"),
		mcp.WithString("snippet_id", mcp.Required(), mcp.Description("Snippet id")),
		mcp.WithNumber("limit", mcp.Description("Maximum related snippets to return")),
	)
}

func getPageMarkdownTool() mcp.Tool {
	return mcp.NewTool("get_page_markdown",
		mcp.WithDescription("Fetch a document's markdown body, chunked, with an optional query-highlighted excerpt"),
		mcp.WithString("url", mcp.Description("Document URL")),
		mcp.WithString("snippet_id", mcp.Description("Snippet id to resolve to its owning document")),
		mcp.WithString("query", mcp.Description("Optional highlight query")),
		mcp.WithNumber("max_tokens", mcp.Description("Approximate token budget per chunk")),
		mcp.WithNumber("chunk_index", mcp.Description("Requested chunk index")),
	)
}

func jobStatusTool() mcp.Tool {
	return mcp.NewTool("job_status",
		mcp.WithDescription("Get a job's current status"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job id")),
	)
}

func jobCancelTool() mcp.Tool {
	return mcp.NewTool("job_cancel",
		mcp.WithDescription("Cancel a running job"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job id")),
	)
}

func jobDeleteTool() mcp.Tool {
	return mcp.NewTool("job_delete",
		mcp.WithDescription("Delete a job and its documents/snippets"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job id")),
	)
}

func jobRecrawlTool() mcp.Tool {
	return mcp.NewTool("job_recrawl",
		mcp.WithDescription("Re-run a crawl job under its existing configuration"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job id")),
	)
}

func jobListTool() mcp.Tool {
	return mcp.NewTool("job_list",
		mcp.WithDescription("List jobs, optionally filtered by kind"),
		mcp.WithString("kind", mcp.Description("\"crawl\" or \"upload\"; omit for all")),
	)
}

func sourceListTool() mcp.Tool {
	return mcp.NewTool("source_list",
		mcp.WithDescription("List every indexed source"),
	)
}

func sourceRenameTool() mcp.Tool {
	return mcp.NewTool("source_rename",
		mcp.WithDescription("Rename a source's (name, version) key"),
		mcp.WithString("library_id", mcp.Required(), mcp.Description("Job id, \"name\"/\"name@version\", or fuzzy library name")),
		mcp.WithString("name", mcp.Required(), mcp.Description("New name")),
		mcp.WithString("version", mcp.Description("New version")),
	)
}

func sourceDeleteTool() mcp.Tool {
	return mcp.NewTool("source_delete",
		mcp.WithDescription("Delete a single source"),
		mcp.WithString("library_id", mcp.Required(), mcp.Description("Job id, \"name\"/\"name@version\", or fuzzy library name")),
	)
}

func sourceDeleteBulkTool() mcp.Tool {
	return mcp.NewTool("source_delete_bulk",
		mcp.WithDescription("Delete several sources by reference"),
		mcp.WithArray("library_ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Job ids or name refs")),
	)
}

func sourceDeleteFilteredTool() mcp.Tool {
	return mcp.NewTool("source_delete_filtered",
		mcp.WithDescription("Delete every source whose name starts with a prefix"),
		mcp.WithString("name_prefix", mcp.Required(), mcp.Description("Name prefix to match")),
	)
}

func sourceDeleteMatchingSnippetsTool() mcp.Tool {
	return mcp.NewTool("source_delete_matching_snippets",
		mcp.WithDescription("Delete every snippet in a source whose code or title contains a SQL ILIKE pattern"),
		mcp.WithString("library_id", mcp.Required(), mcp.Description("Job id, \"name\"/\"name@version\", or fuzzy library name")),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("SQL ILIKE pattern")),
	)
}
