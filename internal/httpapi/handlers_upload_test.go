package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"codeindex/internal/config"
)

func TestUploadMarkdown_RequiresContentAndName(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Post("/upload/markdown", h.uploadMarkdown)

	req := httptest.NewRequest(http.MethodPost, "/upload/markdown", bytes.NewReader([]byte(`{"name":"docs"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadFiles_RequiresNameAndFiles(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Post("/upload/files", h.uploadFiles)

	req := httptest.NewRequest(http.MethodPost, "/upload/files", bytes.NewReader([]byte(`{"name":"docs","files":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadFile_RequiresName(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Post("/upload/file", h.uploadFile)

	req := httptest.NewRequest(http.MethodPost, "/upload/file", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadGithub_RequiresRepoURL(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Post("/upload/github", h.uploadGithub)

	req := httptest.NewRequest(http.MethodPost, "/upload/github", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadStatus_InvalidID(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Get("/upload/status/:jobId", h.uploadStatus)

	req := httptest.NewRequest(http.MethodGet, "/upload/status/not-a-uuid", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadConfig_ReportsLimits(t *testing.T) {
	h := &Handlers{Config: &config.Config{Upload: config.UploadConfig{MaxSizeMB: 50, MaxConcurrency: 5}}}
	app := fiber.New()
	app.Get("/upload/config", h.uploadConfig)

	req := httptest.NewRequest(http.MethodGet, "/upload/config", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
