package httpapi

import "github.com/gofiber/fiber/v2"

// statistics reports aggregate counts across every source, used by the
// dashboard-style overview endpoint.
func (h *Handlers) statistics(c *fiber.Ctx) error {
	sources, err := h.Store.ListSources(c.Context(), "")
	if err != nil {
		return internalError(c, err.Error())
	}

	var totalDocuments, totalSnippets int64
	running := 0
	for _, src := range sources {
		totalDocuments += src.DocumentCount
		totalSnippets += src.SnippetCount
		if src.Status == "running" {
			running++
		}
	}

	return c.JSON(fiber.Map{
		"sources":          len(sources),
		"documents":        totalDocuments,
		"snippets":         totalSnippets,
		"jobs_running":     running,
	})
}
