// Package pipeline turns one document's markdown body into persisted
// code snippets. It is the shared tail end of every ingestion path —
// web crawl, direct upload, and git repo — so a code block is parsed,
// deduplicated, and optionally enriched exactly the same way no matter
// where its document came from.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"codeindex/internal/fingerprint"
	"codeindex/internal/llm"
	"codeindex/internal/model"
	"codeindex/internal/snippet"
	"codeindex/internal/store"
)

// Pipeline bundles the parser, enricher, and store needed to turn a
// document into its snippets.
type Pipeline struct {
	Store    *store.Store
	Enricher *llm.Pool
	Parser   snippet.Options
}

// Extract parses markdown into code blocks, skips exact duplicates
// already recorded for this document, enriches the rest when the LLM
// pool is enabled, and persists them. It returns the number of new
// snippets inserted.
func (p *Pipeline) Extract(ctx context.Context, doc *model.Document, markdown string) (int64, error) {
	blocks := snippet.ParseMarkdown([]byte(markdown), p.Parser)
	var inserted int64
	var prev *model.CodeSnippet

	for _, b := range blocks {
		codeHash := fingerprint.Snippet(b.Code)

		exists, err := p.Store.SnippetExistsByHash(ctx, doc.ID, codeHash)
		if err != nil {
			return inserted, fmt.Errorf("check snippet existence: %w", err)
		}
		if exists {
			continue
		}

		snip := &model.CodeSnippet{
			ID:             uuid.New(),
			DocumentID:     doc.ID,
			Language:       b.Language,
			CodeContent:    b.Code,
			CodeHash:       codeHash,
			LineStart:      b.LineStart,
			LineEnd:        b.LineEnd,
			ContextBefore:  b.ContextBefore,
			ContextAfter:   b.ContextAfter,
			SectionTitle:   b.SectionTitle,
			SectionContent: b.SectionContent,
			SnippetType:    b.SnippetType,
			SourceURL:      doc.URL,
		}

		if p.Enricher.Enabled() {
			res := p.Enricher.Enrich(ctx, doc.ID.String(), llm.EnrichInput{
				Language:      b.Language,
				Code:          b.Code,
				CodeHash:      codeHash,
				SectionTitle:  b.SectionTitle,
				ContextBefore: b.ContextBefore,
				DocumentURL:   doc.URL,
			})
			snip.Title = res.Title
			snip.Description = res.Description
			if res.SnippetType != "" {
				snip.SnippetType = model.SnippetType(res.SnippetType)
			}
			snip.Functions = res.Functions
			snip.Imports = res.Imports
			snip.Keywords = res.Keywords
			snip.Enriched = true
		} else {
			snip.Title = fmt.Sprintf("%s snippet", orDefault(b.Language, "code"))
		}

		if err := p.Store.InsertSnippet(ctx, snip); err != nil {
			if err == store.ErrDuplicate {
				continue
			}
			return inserted, fmt.Errorf("insert snippet: %w", err)
		}
		inserted++

		if prev != nil {
			if rel, sourceIsPrev := adjacentRelationship(prev, snip); rel != "" {
				source, target := snip.ID, prev.ID
				if sourceIsPrev {
					source, target = prev.ID, snip.ID
				}
				if err := p.Store.InsertRelationship(ctx, &model.SnippetRelationship{
					ID:     uuid.New(),
					Source: source,
					Target: target,
					Type:   rel,
				}); err != nil {
					return inserted, fmt.Errorf("insert relationship: %w", err)
				}
			}
		}
		prev = snip
	}

	return inserted, nil
}

// adjacentRelationship infers a directed edge between two snippets that
// appear back to back in the same document: a config block configures
// the block that immediately follows it, and an example block
// demonstrates the function or class immediately before it. The bool
// return reports whether prev is the edge's source (true) or target
// (false); the relationship type is "" when none applies.
func adjacentRelationship(prev, cur *model.CodeSnippet) (model.RelationshipType, bool) {
	switch {
	case cur.SnippetType == model.SnippetTypeExample &&
		(prev.SnippetType == model.SnippetTypeFunction || prev.SnippetType == model.SnippetTypeClass):
		return model.RelationExampleOf, false
	case prev.SnippetType == model.SnippetTypeConfig && cur.SnippetType != model.SnippetTypeConfig:
		return model.RelationConfigurationF, true
	default:
		return "", false
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
