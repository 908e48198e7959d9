package httpapi

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"codeindex/internal/ingest"
	"codeindex/internal/model"
	"codeindex/internal/store"
)

// uploadMarkdownRequest mirrors upload_markdown's argument shape.
type uploadMarkdownRequest struct {
	Content string `json:"content"`
	Name    string `json:"name"`
	Title   string `json:"title"`
}

type uploadMarkdownResponse struct {
	DocumentID    string `json:"document_id"`
	SnippetsCount int64  `json:"snippets_count"`
}

// uploadMarkdown implements upload_markdown: a single document,
// ingested synchronously under an upload job named after it, returning
// the document id and snippet count directly rather than a job id.
func (h *Handlers) uploadMarkdown(c *fiber.Ctx) error {
	var req uploadMarkdownRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Content == "" || req.Name == "" {
		return badRequest(c, "content and name are required")
	}

	result, err := h.Scheduler.Create(c.Context(), model.JobKindUpload, req.Name, "", json.RawMessage("{}"))
	if err != nil {
		return internalError(c, err.Error())
	}

	title := req.Title
	if title == "" {
		title = req.Name + ".md"
	}
	results := ingest.Files(c.Context(), h.Store, h.Pipeline, result.Job, []ingest.File{
		{Path: title, Content: []byte(req.Content)},
	}, 1)

	res := results[0]
	if res.Err != nil {
		return internalError(c, res.Err.Error())
	}

	return c.JSON(uploadMarkdownResponse{
		DocumentID:    res.DocumentID.String(),
		SnippetsCount: res.SnippetsCount,
	})
}

type uploadFilesRequest struct {
	Files          []uploadedFile `json:"files"`
	Name           string         `json:"name"`
	Version        string         `json:"version"`
	Title          string         `json:"title"`
	MaxConcurrent  int            `json:"max_concurrent"`
}

type uploadedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// uploadFiles implements upload_files: creates an upload job and
// dispatches every given file through the shared ingestion pool,
// returning the job id immediately.
func (h *Handlers) uploadFiles(c *fiber.Ctx) error {
	var req uploadFilesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" || len(req.Files) == 0 {
		return badRequest(c, "name and files are required")
	}

	result, err := h.Scheduler.Create(c.Context(), model.JobKindUpload, req.Name, req.Version, json.RawMessage("{}"))
	if err != nil {
		return internalError(c, err.Error())
	}

	maxConcurrency := req.MaxConcurrent
	if maxConcurrency <= 0 {
		maxConcurrency = h.Config.Upload.MaxConcurrency
	}

	files := make([]ingest.File, len(req.Files))
	for i, f := range req.Files {
		files[i] = ingest.File{Path: f.Path, Content: []byte(f.Content)}
	}

	if !result.Existing {
		h.Scheduler.RunUpload(result.Job, files, maxConcurrency)
	}
	return c.Status(fiber.StatusAccepted).JSON(crawlJobResponse{JobID: result.Job.ID.String()})
}

// uploadFile accepts one multipart file upload, wrapping it as a
// single-file upload_files call.
func (h *Handlers) uploadFile(c *fiber.Ctx) error {
	name := c.FormValue("name")
	if name == "" {
		return badRequest(c, "name is required")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return internalError(c, err.Error())
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return internalError(c, err.Error())
	}

	result, err := h.Scheduler.Create(c.Context(), model.JobKindUpload, name, c.FormValue("version"), json.RawMessage("{}"))
	if err != nil {
		return internalError(c, err.Error())
	}

	if !result.Existing {
		h.Scheduler.RunUpload(result.Job, []ingest.File{{Path: fh.Filename, Content: content}}, 1)
	}
	return c.Status(fiber.StatusAccepted).JSON(crawlJobResponse{JobID: result.Job.ID.String()})
}

type uploadGithubRequest struct {
	RepoURL string   `json:"repo_url"`
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Path    string   `json:"path"`
	Branch  string   `json:"branch"`
	Token   string   `json:"token"`
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// uploadGithub implements upload_repo: shallow-clones a git repository
// and feeds its files through the ingestion pipeline under a new
// upload job.
func (h *Handlers) uploadGithub(c *fiber.Ctx) error {
	var req uploadGithubRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.RepoURL == "" {
		return badRequest(c, "repo_url is required")
	}

	name := req.Name
	if name == "" {
		name = req.RepoURL
	}
	token := req.Token
	if token == "" {
		token = h.Config.Git.Token
	}

	result, err := h.Scheduler.Create(c.Context(), model.JobKindUpload, name, req.Version, json.RawMessage("{}"))
	if err != nil {
		return internalError(c, err.Error())
	}

	if !result.Existing {
		h.Scheduler.RunRepo(result.Job, ingest.RepoOptions{
			RepoURL:        req.RepoURL,
			Branch:         req.Branch,
			SparsePath:     req.Path,
			Token:          token,
			Include:        req.Include,
			Exclude:        req.Exclude,
			MaxConcurrency: h.Config.Upload.MaxConcurrency,
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(crawlJobResponse{JobID: result.Job.ID.String()})
}

// uploadStatus reports the status of an upload job, mirroring
// getCrawlJob for the upload kind.
func (h *Handlers) uploadStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("jobId"))
	if err != nil {
		return badRequest(c, "invalid job id")
	}
	job, err := h.Store.GetJob(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "job not found")
		}
		return internalError(c, err.Error())
	}
	return c.JSON(job)
}

// uploadConfig exposes the effective size/concurrency limits an
// uploading client should honor.
func (h *Handlers) uploadConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"max_size_mb":      h.Config.Upload.MaxSizeMB,
		"max_concurrency":  h.Config.Upload.MaxConcurrency,
	})
}
