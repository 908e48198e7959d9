package httpapi

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"codeindex/internal/crawl"
	"codeindex/internal/jobs"
	"codeindex/internal/model"
	"codeindex/internal/store"
)

// createCrawlJobRequest mirrors init_crawl's argument shape, shared
// verbatim with the MCP tool of the same name.
type createCrawlJobRequest struct {
	Name          string   `json:"name"`
	StartURLs     []string `json:"start_urls"`
	MaxDepth      int      `json:"max_depth"`
	Version       string   `json:"version"`
	DomainFilter  string   `json:"domain_filter"`
	URLPatterns   []string `json:"url_patterns"`
	MaxConcurrent int      `json:"max_concurrent"`
}

type crawlJobResponse struct {
	JobID string `json:"job_id"`
}

// createCrawlJob implements init_crawl: creates (or reuses) the crawl
// job row, persists its CrawlJobConfig for stall-recovery redispatch,
// and dispatches it to the scheduler, returning immediately with the
// job id.
func (h *Handlers) createCrawlJob(c *fiber.Ctx) error {
	var req createCrawlJobRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" || len(req.StartURLs) == 0 {
		return badRequest(c, "name and start_urls are required")
	}

	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = h.Config.Crawler.MaxDepthDefault
	}
	maxConcurrency := req.MaxConcurrent
	if maxConcurrency <= 0 {
		maxConcurrency = h.Config.Crawler.MaxConcurrentDefault
	}

	cfg := jobs.CrawlJobConfig{
		StartURL:       req.StartURLs[0],
		MaxDepth:       maxDepth,
		MaxConcurrency: maxConcurrency,
		URLPatterns:    req.URLPatterns,
		DomainFilter:   req.DomainFilter,
	}
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return internalError(c, "encode job config")
	}

	result, err := h.Scheduler.Create(c.Context(), model.JobKindCrawl, req.Name, req.Version, rawCfg)
	if err != nil {
		return internalError(c, err.Error())
	}

	if !result.Existing {
		h.Scheduler.RunCrawl(result.Job, crawl.RunOptions{
			StartURL:       req.StartURLs[0],
			ExtraStartURLs: req.StartURLs[1:],
			MaxDepth:       maxDepth,
			MaxConcurrency: maxConcurrency,
			URLPatterns:    req.URLPatterns,
			DomainFilter:   req.DomainFilter,
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(crawlJobResponse{JobID: result.Job.ID.String()})
}

// listCrawlJobs lists every job of kind crawl.
func (h *Handlers) listCrawlJobs(c *fiber.Ctx) error {
	kind := model.JobKindCrawl
	list, err := h.Store.ListJobs(c.Context(), &kind)
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(list)
}

func parseJobID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

// getCrawlJob returns one crawl job's full status.
func (h *Handlers) getCrawlJob(c *fiber.Ctx) error {
	id, err := parseJobID(c)
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

// cancelCrawlJob flags the job cancelled; workers observe it at their
// next cooperative-cancellation checkpoint.
func (h *Handlers) cancelCrawlJob(c *fiber.Ctx) error {
	id, err := parseJobID(c)
	if err != nil {
		return badRequest(c, "invalid job id")
	}
	if err := h.Scheduler.Cancel(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "job not found")
		}
		return internalError(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// recrawlCrawlJob re-dispatches an existing crawl job under its
// original configuration.
func (h *Handlers) recrawlCrawlJob(c *fiber.Ctx) error {
	id, err := parseJobID(c)
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
	if job.Kind != model.JobKindCrawl {
		return badRequest(c, "job is not a crawl job")
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

// deleteCrawlJob removes a job row and everything cascading from it.
func (h *Handlers) deleteCrawlJob(c *fiber.Ctx) error {
	id, err := parseJobID(c)
	if err != nil {
		return badRequest(c, "invalid job id")
	}
	if err := h.Store.DeleteJob(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "job not found")
		}
		return internalError(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type bulkIDsRequest struct {
	IDs []string `json:"ids"`
}

// bulkDeleteCrawlJobs deletes every job id in the request body,
// collecting failures rather than aborting on the first one.
func (h *Handlers) bulkDeleteCrawlJobs(c *fiber.Ctx) error {
	var req bulkIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	var failed []string
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			failed = append(failed, raw)
			continue
		}
		if err := h.Store.DeleteJob(c.Context(), id); err != nil {
			failed = append(failed, raw)
		}
	}
	return c.JSON(fiber.Map{"failed": failed})
}

// bulkCancelCrawlJobs cancels every job id in the request body.
func (h *Handlers) bulkCancelCrawlJobs(c *fiber.Ctx) error {
	var req bulkIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	var failed []string
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			failed = append(failed, raw)
			continue
		}
		if err := h.Scheduler.Cancel(c.Context(), id); err != nil {
			failed = append(failed, raw)
		}
	}
	return c.JSON(fiber.Map{"failed": failed})
}

// listFailedPages returns the per-page error log for a crawl job.
func (h *Handlers) listFailedPages(c *fiber.Ctx) error {
	id, err := parseJobID(c)
	if err != nil {
		return badRequest(c, "invalid job id")
	}
	pages, err := h.Store.ListFailedPages(c.Context(), id)
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(pages)
}
