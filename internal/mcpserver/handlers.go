package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"codeindex/internal/chunk"
	"codeindex/internal/config"
	"codeindex/internal/crawl"
	"codeindex/internal/ingest"
	"codeindex/internal/jobs"
	"codeindex/internal/model"
	"codeindex/internal/pipeline"
	"codeindex/internal/search"
	"codeindex/internal/store"
)

// Server bundles the collaborators every tool handler needs, the MCP
// mirror of httpapi.Handlers so both transports share one
// Scheduler/Search/Store/Pipeline wiring.
type Server struct {
	Config    *config.Config
	Store     *store.Store
	Scheduler *jobs.Scheduler
	Search    *search.Service
	Pipeline  *pipeline.Pipeline
}

// Register builds the underlying mcp-go server and attaches every tool
// defined in tools.go to its handler.
func (s *Server) Register(name, version string) *server.MCPServer {
	srv := server.NewMCPServer(name, version, server.WithToolCapabilities(true))

	srv.AddTool(initCrawlTool(), s.handleInitCrawl)
	srv.AddTool(uploadMarkdownTool(), s.handleUploadMarkdown)
	srv.AddTool(uploadFilesTool(), s.handleUploadFiles)
	srv.AddTool(uploadRepoTool(), s.handleUploadRepo)
	srv.AddTool(searchLibrariesTool(), s.handleSearchLibraries)
	srv.AddTool(getContentTool(), s.handleGetContent)
	srv.AddTool(getSnippetTool(), s.handleGetSnippet)
	srv.AddTool(getRelatedSnippetsTool(), s.handleGetRelatedSnippets)
	srv.AddTool(getPageMarkdownTool(), s.handleGetPageMarkdown)
	srv.AddTool(jobStatusTool(), s.handleJobStatus)
	srv.AddTool(jobCancelTool(), s.handleJobCancel)
	srv.AddTool(jobDeleteTool(), s.handleJobDelete)
	srv.AddTool(jobRecrawlTool(), s.handleJobRecrawl)
	srv.AddTool(jobListTool(), s.handleJobList)
	srv.AddTool(sourceListTool(), s.handleSourceList)
	srv.AddTool(sourceRenameTool(), s.handleSourceRename)
	srv.AddTool(sourceDeleteTool(), s.handleSourceDelete)
	srv.AddTool(sourceDeleteBulkTool(), s.handleSourceDeleteBulk)
	srv.AddTool(sourceDeleteFilteredTool(), s.handleSourceDeleteFiltered)
	srv.AddTool(sourceDeleteMatchingSnippetsTool(), s.handleSourceDeleteMatchingSnippets)

	return srv
}

// jsonResult marshals v as pretty JSON into a single text content
// block, the shared output shape for every data-returning tool here.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(string(body))}}, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.NewTextContent(err.Error())},
	}
}

func (s *Server) handleInitCrawl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return errorResult(err), nil
	}
	startURLs := req.GetStringSlice("start_urls", nil)
	if len(startURLs) == 0 {
		return errorResult(errors.New("start_urls is required")), nil
	}

	maxDepth := req.GetInt("max_depth", s.Config.Crawler.MaxDepthDefault)
	maxConcurrency := req.GetInt("max_concurrent", s.Config.Crawler.MaxConcurrentDefault)
	version := req.GetString("version", "")
	domainFilter := req.GetString("domain_filter", "")
	urlPatterns := req.GetStringSlice("url_patterns", nil)

	cfg := jobs.CrawlJobConfig{
		StartURL:       startURLs[0],
		MaxDepth:       maxDepth,
		MaxConcurrency: maxConcurrency,
		URLPatterns:    urlPatterns,
		DomainFilter:   domainFilter,
	}
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := s.Scheduler.Create(ctx, model.JobKindCrawl, name, version, rawCfg)
	if err != nil {
		return errorResult(err), nil
	}

	if !result.Existing {
		s.Scheduler.RunCrawl(result.Job, crawl.RunOptions{
			StartURL:       startURLs[0],
			ExtraStartURLs: startURLs[1:],
			MaxDepth:       maxDepth,
			MaxConcurrency: maxConcurrency,
			URLPatterns:    urlPatterns,
			DomainFilter:   domainFilter,
		})
	}

	return jsonResult(map[string]string{"job_id": result.Job.ID.String()})
}

func (s *Server) handleUploadMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return errorResult(err), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return errorResult(err), nil
	}
	title := req.GetString("title", name+".md")

	result, err := s.Scheduler.Create(ctx, model.JobKindUpload, name, "", json.RawMessage("{}"))
	if err != nil {
		return errorResult(err), nil
	}

	results := ingest.Files(ctx, s.Store, s.Pipeline, result.Job, []ingest.File{
		{Path: title, Content: []byte(content)},
	}, 1)
	res := results[0]
	if res.Err != nil {
		return errorResult(res.Err), nil
	}

	return jsonResult(map[string]any{
		"document_id":    res.DocumentID.String(),
		"snippets_count": res.SnippetsCount,
	})
}

func (s *Server) handleUploadFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return errorResult(err), nil
	}

	raw, ok := req.GetArguments()["files"].([]any)
	if !ok || len(raw) == 0 {
		return errorResult(errors.New("files is required")), nil
	}

	files := make([]ingest.File, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path, _ := obj["path"].(string)
		content, _ := obj["content"].(string)
		files = append(files, ingest.File{Path: path, Content: []byte(content)})
	}

	version := req.GetString("version", "")
	maxConcurrency := req.GetInt("max_concurrent", s.Config.Upload.MaxConcurrency)

	result, err := s.Scheduler.Create(ctx, model.JobKindUpload, name, version, json.RawMessage("{}"))
	if err != nil {
		return errorResult(err), nil
	}
	if !result.Existing {
		s.Scheduler.RunUpload(result.Job, files, maxConcurrency)
	}
	return jsonResult(map[string]string{"job_id": result.Job.ID.String()})
}

func (s *Server) handleUploadRepo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoURL, err := req.RequireString("repo_url")
	if err != nil {
		return errorResult(err), nil
	}
	name := req.GetString("name", repoURL)
	version := req.GetString("version", "")
	token := req.GetString("token", s.Config.Git.Token)

	result, err := s.Scheduler.Create(ctx, model.JobKindUpload, name, version, json.RawMessage("{}"))
	if err != nil {
		return errorResult(err), nil
	}

	if !result.Existing {
		s.Scheduler.RunRepo(result.Job, ingest.RepoOptions{
			RepoURL:        repoURL,
			Branch:         req.GetString("branch", ""),
			SparsePath:     req.GetString("path", ""),
			Token:          token,
			Include:        req.GetStringSlice("include", nil),
			Exclude:        req.GetStringSlice("exclude", nil),
			MaxConcurrency: s.Config.Upload.MaxConcurrency,
		})
	}
	return jsonResult(map[string]string{"job_id": result.Job.ID.String()})
}

func (s *Server) handleSearchLibraries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	limit := req.GetInt("limit", 10)
	page := req.GetInt("page", 0)

	libs, err := s.Search.ResolveLibraries(ctx, query, limit, page)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"sources": libs, "total": len(libs)})
}

func (s *Server) handleGetContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := search.Options{
		Limit:      req.GetInt("limit", 20),
		Page:       req.GetInt("page", 0),
		SearchMode: model.SearchMode(req.GetString("search_mode", string(model.SearchModeCode))),
	}
	if libraryID := req.GetString("library_id", ""); libraryID != "" {
		job, err := s.Search.ResolveJob(ctx, libraryID)
		if err != nil {
			return errorResult(err), nil
		}
		opts.JobIDs = []uuid.UUID{job.ID}
	}

	results, err := s.Search.Search(ctx, req.GetString("query", ""), opts)
	if err != nil {
		return errorResult(err), nil
	}

	type snippetView struct {
		SnippetID       string `json:"snippet_id"`
		Title           string `json:"title"`
		Description     string `json:"description"`
		Language        string `json:"language"`
		Code            string `json:"code"`
		SourceURL       string `json:"source_url"`
		DocumentTitle   string `json:"document_title"`
		FallbackMatched bool   `json:"fallback_matched"`
	}

	view := make([]snippetView, 0, len(results))
	for _, r := range results {
		docTitle, sourceURL := "", ""
		if doc, err := s.Store.GetDocument(ctx, r.DocumentID); err == nil {
			docTitle, sourceURL = doc.Title, doc.URL
		}
		view = append(view, snippetView{
			SnippetID:       r.SnippetID.String(),
			Title:           r.Title,
			Description:     r.Description,
			Language:        r.Language,
			Code:            r.CodeContent,
			SourceURL:       sourceURL,
			DocumentTitle:   docTitle,
			FallbackMatched: !r.IsPrimary,
		})
	}
	return jsonResult(map[string]any{"snippets": view})
}

func (s *Server) handleGetSnippet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snippetID, err := req.RequireString("snippet_id")
	if err != nil {
		return errorResult(err), nil
	}
	id, err := uuid.Parse(snippetID)
	if err != nil {
		return errorResult(fmt.Errorf("invalid snippet_id: %w", err)), nil
	}

	snip, err := s.Store.GetSnippet(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}

	result := chunk.Split(snip.CodeContent, req.GetInt("max_tokens", 0), req.GetInt("chunk_index", 0))
	return jsonResult(map[string]any{
		"snippet":      snip,
		"code":         result.Text,
		"chunk_index":  result.ChunkIndex,
		"total_chunks": result.TotalChunks,
		"truncated":    result.Truncated,
	})
}

func (s *Server) handleGetRelatedSnippets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snippetID, err := req.RequireString("snippet_id")
	if err != nil {
		return errorResult(err), nil
	}
	id, err := uuid.Parse(snippetID)
	if err != nil {
		return errorResult(fmt.Errorf("invalid snippet_id: %w", err)), nil
	}

	related, err := s.Store.FindRelated(ctx, id, req.GetInt("limit", 10))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"related": related})
}

func (s *Server) handleGetPageMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var doc *model.Document
	var err error

	if url := req.GetString("url", ""); url != "" {
		doc, err = s.Store.GetDocumentByURL(ctx, url)
	} else if snippetID := req.GetString("snippet_id", ""); snippetID != "" {
		id, parseErr := uuid.Parse(snippetID)
		if parseErr != nil {
			return errorResult(parseErr), nil
		}
		snip, snipErr := s.Store.GetSnippet(ctx, id)
		if snipErr != nil {
			return errorResult(snipErr), nil
		}
		doc, err = s.Store.GetDocument(ctx, snip.DocumentID)
	} else {
		return errorResult(errors.New("url or snippet_id is required")), nil
	}
	if err != nil {
		return errorResult(err), nil
	}

	result := chunk.Split(doc.MarkdownContent, req.GetInt("max_tokens", 0), req.GetInt("chunk_index", 0))
	out := map[string]any{
		"document_id":  doc.ID.String(),
		"title":        doc.Title,
		"url":          doc.URL,
		"body":         result.Text,
		"chunk_index":  result.ChunkIndex,
		"total_chunks": result.TotalChunks,
		"truncated":    result.Truncated,
	}
	if query := req.GetString("query", ""); query != "" {
		if excerpt, ok := chunk.Excerpt(doc.MarkdownContent, query, 150); ok {
			out["excerpt"] = excerpt
		}
	}
	return jsonResult(out)
}

func (s *Server) handleJobStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return errorResult(err), nil
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return errorResult(err), nil
	}
	job, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(job)
}

func (s *Server) handleJobCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return errorResult(err), nil
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return errorResult(err), nil
	}
	if err := s.Scheduler.Cancel(ctx, id); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]bool{"cancelled": true})
}

func (s *Server) handleJobDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return errorResult(err), nil
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return errorResult(err), nil
	}
	if err := s.Store.DeleteJob(ctx, id); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]bool{"deleted": true})
}

func (s *Server) handleJobRecrawl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return errorResult(err), nil
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return errorResult(err), nil
	}
	job, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	if job.Kind != model.JobKindCrawl {
		return errorResult(errors.New("job is not a crawl job")), nil
	}

	var cfg jobs.CrawlJobConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil || cfg.StartURL == "" {
		return errorResult(errors.New("job has no recrawlable configuration")), nil
	}

	newJob, err := s.Scheduler.Recrawl(ctx, job, job.Config, crawl.RunOptions{
		StartURL:          cfg.StartURL,
		MaxDepth:          cfg.MaxDepth,
		MaxConcurrency:    cfg.MaxConcurrency,
		URLPatterns:       cfg.URLPatterns,
		DomainFilter:      cfg.DomainFilter,
		IgnoreContentHash: cfg.IgnoreContentHash,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]string{"job_id": newJob.ID.String()})
}

func (s *Server) handleJobList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var kindPtr *model.JobKind
	if kind := req.GetString("kind", ""); kind != "" {
		k := model.JobKind(kind)
		kindPtr = &k
	}
	list, err := s.Store.ListJobs(ctx, kindPtr)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(list)
}

func (s *Server) handleSourceList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources, err := s.Store.ListSources(ctx, "")
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(sources)
}

func (s *Server) handleSourceRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("library_id")
	if err != nil {
		return errorResult(err), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return errorResult(err), nil
	}
	version := req.GetString("version", "")

	job, err := s.Search.ResolveJob(ctx, ref)
	if err != nil {
		return errorResult(err), nil
	}
	if err := s.Store.RenameJob(ctx, job.ID, name, version); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]bool{"renamed": true})
}

func (s *Server) handleSourceDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("library_id")
	if err != nil {
		return errorResult(err), nil
	}
	job, err := s.Search.ResolveJob(ctx, ref)
	if err != nil {
		return errorResult(err), nil
	}
	if err := s.Store.DeleteJob(ctx, job.ID); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]bool{"deleted": true})
}

func (s *Server) handleSourceDeleteBulk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refs := req.GetStringSlice("library_ids", nil)
	var failed []string
	for _, ref := range refs {
		job, err := s.Search.ResolveJob(ctx, ref)
		if err != nil {
			failed = append(failed, ref)
			continue
		}
		if err := s.Store.DeleteJob(ctx, job.ID); err != nil {
			failed = append(failed, ref)
		}
	}
	return jsonResult(map[string]any{"failed": failed})
}

func (s *Server) handleSourceDeleteFiltered(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix, err := req.RequireString("name_prefix")
	if err != nil {
		return errorResult(err), nil
	}
	sources, err := s.Store.ListSources(ctx, prefix)
	if err != nil {
		return errorResult(err), nil
	}

	var failed []string
	deleted := 0
	for _, src := range sources {
		if err := s.Store.DeleteJob(ctx, src.JobID); err != nil {
			failed = append(failed, src.JobID.String())
			continue
		}
		deleted++
	}
	return jsonResult(map[string]any{"deleted": deleted, "failed": failed})
}

func (s *Server) handleSourceDeleteMatchingSnippets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("library_id")
	if err != nil {
		return errorResult(err), nil
	}
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return errorResult(err), nil
	}

	job, err := s.Search.ResolveJob(ctx, ref)
	if err != nil {
		return errorResult(err), nil
	}
	n, err := s.Store.DeleteSnippetsMatching(ctx, job.ID, pattern)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]int64{"deleted": n})
}
