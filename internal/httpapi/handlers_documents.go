package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"codeindex/internal/chunk"
	"codeindex/internal/store"
)

// listDocumentSnippets lists every snippet belonging to one document.
func (h *Handlers) listDocumentSnippets(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid document id")
	}
	snippets, err := h.Store.SnippetsByDocument(c.Context(), id, 1000)
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(snippets)
}

// getDocumentMarkdown implements get_page_markdown for the url form:
// fetches a document's markdown body, applies the chunk policy, and
// attaches a query-highlighted excerpt when a query is supplied.
func (h *Handlers) getDocumentMarkdown(c *fiber.Ctx) error {
	url := c.Query("url")
	if url == "" {
		return badRequest(c, "url is required")
	}

	doc, err := h.Store.GetDocumentByURL(c.Context(), url)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(c, "document not found")
		}
		return internalError(c, err.Error())
	}

	return c.JSON(renderDocumentMarkdown(doc.ID.String(), doc.Title, doc.URL, doc.MarkdownContent, c))
}

// searchDocuments runs the markdown-fallback full-text query directly,
// for clients that want matching documents rather than snippets.
func (h *Handlers) searchDocuments(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return badRequest(c, "query is required")
	}
	limit := c.QueryInt("limit", 10)

	docs, err := h.Store.SearchDocumentsFallback(c.Context(), query, nil, limit)
	if err != nil {
		return internalError(c, err.Error())
	}
	return c.JSON(docs)
}

// renderDocumentMarkdown applies the shared chunk/excerpt policy to a
// document body, used by both getDocumentMarkdown and the MCP surface's
// get_page_markdown tool (snippet_id form resolves to a document id
// first, then calls this the same way).
func renderDocumentMarkdown(documentID, title, url, markdown string, c *fiber.Ctx) fiber.Map {
	maxTokens := c.QueryInt("max_tokens", 0)
	chunkIndex := c.QueryInt("chunk_index", 0)
	result := chunk.Split(markdown, maxTokens, chunkIndex)

	out := fiber.Map{
		"document_id":  documentID,
		"title":        title,
		"url":          url,
		"body":         result.Text,
		"chunk_index":  result.ChunkIndex,
		"total_chunks": result.TotalChunks,
		"truncated":    result.Truncated,
	}

	if query := c.Query("query"); query != "" {
		if excerpt, ok := chunk.Excerpt(markdown, query, 150); ok {
			out["excerpt"] = excerpt
		}
	}
	return out
}
