package mcpserver

import "testing"

// Every tool builder must produce a tool named after its operation,
// since the MCP client dispatches by name and a mismatch here would
// silently register the wrong tool under the wrong name.
func TestToolNames(t *testing.T) {
	tools := map[string]string{
		"init_crawl":                      initCrawlTool().Name,
		"upload_markdown":                 uploadMarkdownTool().Name,
		"upload_files":                    uploadFilesTool().Name,
		"upload_repo":                     uploadRepoTool().Name,
		"search_libraries":                searchLibrariesTool().Name,
		"get_content":                     getContentTool().Name,
		"get_snippet":                     getSnippetTool().Name,
		"get_related_snippets":            getRelatedSnippetsTool().Name,
		"get_page_markdown":               getPageMarkdownTool().Name,
		"job_status":                      jobStatusTool().Name,
		"job_cancel":                      jobCancelTool().Name,
		"job_delete":                      jobDeleteTool().Name,
		"job_recrawl":                     jobRecrawlTool().Name,
		"job_list":                        jobListTool().Name,
		"source_list":                     sourceListTool().Name,
		"source_rename":                   sourceRenameTool().Name,
		"source_delete":                   sourceDeleteTool().Name,
		"source_delete_bulk":              sourceDeleteBulkTool().Name,
		"source_delete_filtered":          sourceDeleteFilteredTool().Name,
		"source_delete_matching_snippets": sourceDeleteMatchingSnippetsTool().Name,
	}
	for want, got := range tools {
		if got != want {
			t.Errorf("expected tool name %q, got %q", want, got)
		}
	}
}

func TestInitCrawlTool_RequiresNameAndStartURLs(t *testing.T) {
	tool := initCrawlTool()
	required := map[string]bool{}
	for _, name := range tool.InputSchema.Required {
		required[name] = true
	}
	if !required["name"] {
		t.Error("expected name to be required")
	}
	if !required["start_urls"] {
		t.Error("expected start_urls to be required")
	}
}
