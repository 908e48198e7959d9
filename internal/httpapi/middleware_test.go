package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"codeindex/internal/auth"
)

func TestAdminKeyMiddleware_DisabledAllowsThrough(t *testing.T) {
	app := fiber.New()
	app.Use(adminKeyMiddleware(&auth.APIKeyVerifier{}))
	app.Get("/protected", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAdminKeyMiddleware_RejectsMissingKey(t *testing.T) {
	app := fiber.New()
	app.Use(adminKeyMiddleware(&auth.APIKeyVerifier{Hash: auth.HashAPIKey("secret")}))
	app.Get("/protected", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminKeyMiddleware_AcceptsValidBearer(t *testing.T) {
	app := fiber.New()
	app.Use(adminKeyMiddleware(&auth.APIKeyVerifier{Hash: auth.HashAPIKey("secret")}))
	app.Get("/protected", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAdminKeyMiddleware_AcceptsAPIKeyHeader(t *testing.T) {
	app := fiber.New()
	app.Use(adminKeyMiddleware(&auth.APIKeyVerifier{Hash: auth.HashAPIKey("secret")}))
	app.Get("/protected", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHealthz_Shallow(t *testing.T) {
	h := &Handlers{}
	app := fiber.New()
	app.Get("/healthz", h.healthz)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
