package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"codeindex/internal/auth"
	"codeindex/internal/config"
	"codeindex/internal/jobs"
	"codeindex/internal/metrics"
	"codeindex/internal/pipeline"
	"codeindex/internal/progress"
	"codeindex/internal/search"
	"codeindex/internal/store"
)

// Handlers bundles every collaborator the route handlers need. A
// single instance is built at startup and its methods registered
// directly as fiber.Handler values rather than threading dependencies
// through fiber.Ctx Locals for every request.
type Handlers struct {
	Config    *config.Config
	Store     *store.Store
	Scheduler *jobs.Scheduler
	Search    *search.Service
	Progress  *progress.Bus
	Pipeline  *pipeline.Pipeline
	AdminKey  *auth.APIKeyVerifier
	Redis     *redis.Client // optional; nil disables the per-IP rate limiter and the /healthz?deep=true redis check
	Logger    *slog.Logger
}

// Server wraps the fiber app for one HTTP process.
type Server struct {
	app    *fiber.App
	config *config.Config
}

// NewServer builds the fiber app: health/metrics endpoints, the
// request-logging + metrics middleware, an optional admin-key
// middleware on mutating routes, and the full route table.
func NewServer(h *Handlers) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "codeindex",
		BodyLimit:    h.Config.Upload.MaxSizeMB * 1024 * 1024,
		ErrorHandler: fiberErrorHandler,
	})

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		metrics.RecordRequest(c.Method(), c.Path(), status, latency.Milliseconds())

		if h.Logger != nil {
			h.Logger.Info("request",
				"request_id", reqID,
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
		return err
	})

	if h.Redis != nil {
		app.Use(redisRateLimit(h.Redis, 120, time.Minute))
	}

	app.Get("/healthz", h.healthz)
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})
	app.Get("/ws/:clientId", h.websocketUpgrade())

	api := app.Group("/api")
	adminOnly := adminKeyMiddleware(h.AdminKey)

	crawlJobs := api.Group("/crawl-jobs")
	crawlJobs.Post("/", adminOnly, h.createCrawlJob)
	crawlJobs.Get("/", h.listCrawlJobs)
	crawlJobs.Delete("/bulk", adminOnly, h.bulkDeleteCrawlJobs)
	crawlJobs.Post("/bulk/cancel", adminOnly, h.bulkCancelCrawlJobs)
	crawlJobs.Get("/:id", h.getCrawlJob)
	crawlJobs.Post("/:id/cancel", adminOnly, h.cancelCrawlJob)
	crawlJobs.Post("/:id/recrawl", adminOnly, h.recrawlCrawlJob)
	crawlJobs.Delete("/:id", adminOnly, h.deleteCrawlJob)
	crawlJobs.Get("/:id/failed-pages", h.listFailedPages)

	sources := api.Group("/sources")
	sources.Get("/", h.listSources)
	sources.Get("/search", h.searchSources)
	sources.Delete("/bulk", adminOnly, h.bulkDeleteSources)
	sources.Post("/bulk/delete-filtered", adminOnly, h.deleteFilteredSources)
	sources.Get("/:id", h.getSource)
	sources.Get("/:id/documents", h.listSourceDocuments)
	sources.Get("/:id/snippets", h.listSourceSnippets)
	sources.Get("/:id/languages", h.listSourceLanguages)
	sources.Patch("/:id", adminOnly, h.renameSource)
	sources.Post("/:id/recrawl", adminOnly, h.recrawlSource)
	sources.Delete("/:id", adminOnly, h.deleteSource)

	upload := api.Group("/upload")
	upload.Post("/markdown", adminOnly, h.uploadMarkdown)
	upload.Post("/file", adminOnly, h.uploadFile)
	upload.Post("/files", adminOnly, h.uploadFiles)
	upload.Post("/github", adminOnly, h.uploadGithub)
	upload.Get("/status/:jobId", h.uploadStatus)
	upload.Get("/config", h.uploadConfig)

	api.Get("/search", h.search)
	api.Get("/snippets/:id", h.getSnippet)
	api.Get("/snippets/:id/related", h.getRelatedSnippets)
	api.Post("/snippets/sources/:id/delete-matches", adminOnly, h.deleteMatchingSnippets)

	api.Get("/documents/:id/snippets", h.listDocumentSnippets)
	api.Get("/documents/markdown", h.getDocumentMarkdown)
	api.Get("/documents/search", h.searchDocuments)

	api.Get("/statistics", h.statistics)

	return &Server{app: app, config: h.Config}
}

// Listen starts the HTTP server, blocking until it exits.
func (s *Server) Listen() error {
	port := s.config.Server.Port
	if port == 0 {
		port = 8811
	}
	return s.app.Listen(fmt.Sprintf("%s:%d", s.config.Server.Host, port))
}

// Shutdown gracefully stops the server, used by main on SIGINT/SIGTERM.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func fiberErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return fail(c, code, "INTERNAL", err.Error())
}
