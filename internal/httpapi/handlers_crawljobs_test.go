package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"codeindex/internal/jobs"
	"codeindex/internal/store"
)

func newTestHandlers() *Handlers {
	return &Handlers{
		Store:     &store.Store{},
		Scheduler: &jobs.Scheduler{},
	}
}

func TestCreateCrawlJob_RequiresNameAndStartURLs(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Post("/crawl-jobs", h.createCrawlJob)

	req := httptest.NewRequest(http.MethodPost, "/crawl-jobs", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateCrawlJob_RejectsMalformedBody(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Post("/crawl-jobs", h.createCrawlJob)

	req := httptest.NewRequest(http.MethodPost, "/crawl-jobs", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetCrawlJob_InvalidID(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Get("/crawl-jobs/:id", h.getCrawlJob)

	req := httptest.NewRequest(http.MethodGet, "/crawl-jobs/not-a-uuid", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCancelCrawlJob_InvalidID(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Post("/crawl-jobs/:id/cancel", h.cancelCrawlJob)

	req := httptest.NewRequest(http.MethodPost, "/crawl-jobs/not-a-uuid/cancel", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBulkDeleteCrawlJobs_CollectsInvalidIDs(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Delete("/crawl-jobs/bulk", h.bulkDeleteCrawlJobs)

	req := httptest.NewRequest(http.MethodDelete, "/crawl-jobs/bulk", bytes.NewReader([]byte(`{"ids":["not-a-uuid"]}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
