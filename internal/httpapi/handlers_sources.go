package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"codeindex/internal/crawl"
	"codeindex/internal/jobs"
	"codeindex/internal/model"
	"codeindex/internal/store"
)

// listSources lists every browsable source, newest documents aside —
// ordering comes from the source_statistics view (name, version).
func (h *Handlers) listSources(c *fiber.Ctx) error {
	sources, err := h.Store.ListSources(c.Context(), "")
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(sources)
}

// searchSources implements search_libraries: a free-text query ranked
// exact > prefix > trigram-similar against the source catalogue.
func (h *Handlers) searchSources(c *fiber.Ctx) error {
	query := c.Query("query")
	limit := c.QueryInt("limit", 10)
	page := c.QueryInt("page", 0)

	libs, err := h.Search.ResolveLibraries(c.Context(), query, limit, page)
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(fiber.Map{"sources": libs, "total": len(libs)})
}

// getSource resolves a library_id (job UUID, "name"/"name@version", or
// fuzzy match) to its source_statistics row.
func (h *Handlers) getSource(c *fiber.Ctx) error {
	job, err := h.Search.ResolveJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "source not found")
		}
		return internalError(c, err.Error())
	}
	src, err := h.Store.GetSourceByJobID(c.Context(), job.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "source not found")
		}
		return internalError(c, err.Error())
	}
	return c.JSON(src)
}

func (h *Handlers) listSourceDocuments(c *fiber.Ctx) error {
	job, err := h.Search.ResolveJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "source not found")
		}
		return internalError(c, err.Error())
	}
	docs, err := h.Store.ListDocumentsByJob(c.Context(), job.ID)
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(docs)
}

func (h *Handlers) listSourceSnippets(c *fiber.Ctx) error {
	job, err := h.Search.ResolveJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "source not found")
		}
		return internalError(c, err.Error())
	}

	docs, err := h.Store.ListDocumentsByJob(c.Context(), job.ID)
	if err != nil {
		return internalError(c, err.Error())
	}

	limit := c.QueryInt("limit", 100)
	var snippets []any
	for _, doc := range docs {
		docSnippets, err := h.Store.SnippetsByDocument(c.Context(), doc.ID, limit)
		if err != nil {
			return internalError(c, err.Error())
		}
		for _, s := range docSnippets {
			snippets = append(snippets, s)
		}
	}
	return c.JSON(snippets)
}

func (h *Handlers) listSourceLanguages(c *fiber.Ctx) error {
	job, err := h.Search.ResolveJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "source not found")
		}
		return internalError(c, err.Error())
	}
	langs, err := h.Store.LanguagesByJob(c.Context(), job.ID)
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(langs)
}

type renameSourceRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// renameSource implements the source (name, version) rename operation:
// PATCH /sources/{id}.
func (h *Handlers) renameSource(c *fiber.Ctx) error {
	job, err := h.Search.ResolveJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "source not found")
		}
		return internalError(c, err.Error())
	}

	var req renameSourceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	if err := h.Store.RenameJob(c.Context(), job.ID, req.Name, req.Version); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return conflict(c, "a source with that name and version already exists")
		}
		return internalError(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// recrawlSource re-dispatches the underlying job (crawl jobs only;
// upload-backed sources have nothing to recrawl).
func (h *Handlers) recrawlSource(c *fiber.Ctx) error {
	job, err := h.Search.ResolveJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "source not found")
		}
		return internalError(c, err.Error())
	}
	if job.Kind != model.JobKindCrawl {
		return badRequest(c, "source is not backed by a crawl job")
	}

	var cfg jobs.CrawlJobConfig
	if err := decodeJobConfig(job.Config, &cfg); err != nil || cfg.StartURL == "" {
		return conflict(c, "job has no recrawlable configuration")
	}

	newJob, err := h.Scheduler.Recrawl(c.Context(), job, job.Config, crawl.RunOptions{
		StartURL:          cfg.StartURL,
		MaxDepth:          cfg.MaxDepth,
		MaxConcurrency:    cfg.MaxConcurrency,
		URLPatterns:       cfg.URLPatterns,
		DomainFilter:      cfg.DomainFilter,
		IgnoreContentHash: cfg.IgnoreContentHash,
	})
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(crawlJobResponse{JobID: newJob.ID.String()})
}

func (h *Handlers) deleteSource(c *fiber.Ctx) error {
	job, err := h.Search.ResolveJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "source not found")
		}
		return internalError(c, err.Error())
	}
	if err := h.Store.DeleteJob(c.Context(), job.ID); err != nil {
		return internalError(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) bulkDeleteSources(c *fiber.Ctx) error {
	var req bulkIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	var failed []string
	for _, ref := range req.IDs {
		job, err := h.Search.ResolveJob(c.Context(), ref)
		if err != nil {
			failed = append(failed, ref)
			continue
		}
		if err := h.Store.DeleteJob(c.Context(), job.ID); err != nil {
			failed = append(failed, ref)
		}
	}
	return c.JSON(fiber.Map{"failed": failed})
}

type deleteFilteredSourcesRequest struct {
	NamePrefix string `json:"name_prefix"`
}

// deleteFilteredSources deletes every source whose name matches the
// given prefix, a bulk "delete-filtered" affordance.
func (h *Handlers) deleteFilteredSources(c *fiber.Ctx) error {
	var req deleteFilteredSourcesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	sources, err := h.Store.ListSources(c.Context(), req.NamePrefix)
	if err != nil {
		return internalError(c, err.Error())
	}

	var failed []string
	deleted := 0
	for _, src := range sources {
		if err := h.Store.DeleteJob(c.Context(), src.JobID); err != nil {
			failed = append(failed, src.JobID.String())
			continue
		}
		deleted++
	}
	return c.JSON(fiber.Map{"deleted": deleted, "failed": failed})
}
