package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestGetSnippet_InvalidID(t *testing.T) {
	h := newTestHandlers()
	app := fiber.New()
	app.Get("/snippets/:id", h.getSnippet)

	req := httptest.NewRequest(http.MethodGet, "/snippets/not-a-uuid", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
