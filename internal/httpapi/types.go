// Package httpapi exposes the ingestion, job-control, search, and
// document-retrieval operations of internal/jobs, internal/search, and
// internal/store over HTTP, mirrored one-for-one by internal/mcpserver
// on the MCP transport.
package httpapi

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

// errorEnvelope is the error shape every handler returns on failure:
// {detail, code}.
type errorEnvelope struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// decodeJobConfig unmarshals a job's stored Config payload into a
// transport-specific shape (e.g. jobs.CrawlJobConfig).
func decodeJobConfig(raw json.RawMessage, out any) error {
	return json.Unmarshal(raw, out)
}

func fail(c *fiber.Ctx, status int, code, detail string) error {
	return c.Status(status).JSON(errorEnvelope{Detail: detail, Code: code})
}

func badRequest(c *fiber.Ctx, detail string) error {
	return fail(c, fiber.StatusBadRequest, "VALIDATION", detail)
}

func notFound(c *fiber.Ctx, detail string) error {
	return fail(c, fiber.StatusNotFound, "NOT_FOUND", detail)
}

func conflict(c *fiber.Ctx, detail string) error {
	return fail(c, fiber.StatusConflict, "CONFLICT", detail)
}

func internalError(c *fiber.Ctx, detail string) error {
	return fail(c, fiber.StatusInternalServerError, "INTERNAL", detail)
}
