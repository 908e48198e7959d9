package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"codeindex/internal/chunk"
	"codeindex/internal/model"
	"codeindex/internal/search"
	"codeindex/internal/store"
)

// searchResultView is get_content's documented per-snippet output
// shape: title, description, language, code, source URL, document
// title, and a fallback flag.
type searchResultView struct {
	SnippetID       string `json:"snippet_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Language        string `json:"language"`
	Code            string `json:"code"`
	SourceURL       string `json:"source_url"`
	DocumentTitle   string `json:"document_title"`
	FallbackMatched bool   `json:"fallback_matched"`
}

// search implements get_content: resolves an optional library_id scope
// and runs the two-stage primary/fallback search.
func (h *Handlers) search(c *fiber.Ctx) error {
	query := c.Query("query")
	libraryID := c.Query("library_id")
	language := c.Query("language")
	limit := c.QueryInt("limit", 20)
	page := c.QueryInt("page", 0)
	searchMode := model.SearchMode(c.Query("search_mode", string(model.SearchModeCode)))

	opts := search.Options{Language: language, Limit: limit, Page: page, SearchMode: searchMode}
	if libraryID != "" {
		job, err := h.Search.ResolveJob(c.Context(), libraryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound(c, "library not found")
			}
			return internalError(c, err.Error())
		}
		opts.JobIDs = []uuid.UUID{job.ID}
	}

	results, err := h.Search.Search(c.Context(), query, opts)
	if err != nil {
		return internalError(c, err.Error())
	}

	view := make([]searchResultView, 0, len(results))
	for _, r := range results {
		doc, err := h.Store.GetDocument(c.Context(), r.DocumentID)
		docTitle, sourceURL := "", ""
		if err == nil {
			docTitle, sourceURL = doc.Title, doc.URL
		}
		view = append(view, searchResultView{
			SnippetID:       r.SnippetID.String(),
			Title:           r.Title,
			Description:     r.Description,
			Language:        r.Language,
			Code:            r.CodeContent,
			SourceURL:       sourceURL,
			DocumentTitle:   docTitle,
			FallbackMatched: !r.IsPrimary,
		})
	}
	return c.JSON(fiber.Map{"snippets": view})
}

// getSnippet implements get_snippet: fetches a snippet and applies the
// shared token/chunk policy to its code body.
func (h *Handlers) getSnippet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid snippet id")
	}
	snip, err := h.Store.GetSnippet(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "snippet not found")
		}
		return internalError(c, err.Error())
	}

	maxTokens := c.QueryInt("max_tokens", 0)
	chunkIndex := c.QueryInt("chunk_index", 0)
	result := chunk.Split(snip.CodeContent, maxTokens, chunkIndex)

	return c.JSON(fiber.Map{
		"snippet":      snip,
		"chunk_index":  result.ChunkIndex,
		"total_chunks": result.TotalChunks,
		"truncated":    result.Truncated,
		"code":         result.Text,
	})
}

// getRelatedSnippets implements get_related_snippets: edges discovered
// while parsing a document (an example demonstrating a function, a
// config block preceding the snippet it configures), returned from
// the given snippet's point of view in either direction.
func (h *Handlers) getRelatedSnippets(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid snippet id")
	}
	limit := c.QueryInt("limit", 10)

	related, err := h.Store.FindRelated(c.Context(), id, limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "snippet not found")
		}
		return internalError(c, err.Error())
	}
	return c.JSON(fiber.Map{"related": related})
}

// deleteMatchingSnippets implements the bulk delete-matching-snippets
// source-management operation, deleting every snippet in one source
// whose code matches a SQL ILIKE pattern.
func (h *Handlers) deleteMatchingSnippets(c *fiber.Ctx) error {
	job, err := h.Search.ResolveJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "source not found")
		}
		return internalError(c, err.Error())
	}

	var req struct {
		Pattern string `json:"pattern"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Pattern == "" {
		return badRequest(c, "pattern is required")
	}

	n, err := h.Store.DeleteSnippetsMatching(c.Context(), job.ID, req.Pattern)
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(fiber.Map{"deleted": n})
}
