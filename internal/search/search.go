// Package search implements library resolution and the two-stage
// content search over indexed documents and snippets described by the
// Store's search_code_snippets function and markdown tsvector column.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"codeindex/internal/config"
	"codeindex/internal/model"
	"codeindex/internal/store"
)

// Service resolves library names to sources and runs content search
// within a source.
type Service struct {
	Store  *store.Store
	Config config.SearchConfig
}

// Library is one fuzzy-matched candidate returned by ResolveLibraries.
type Library struct {
	Name          string
	Version       string
	DocumentCount int64
	SnippetCount  int64
	Similarity    float64
}

// ResolveLibraries ranks sources by exact match, then prefix match,
// then trigram similarity against a free-text query, for mapping a
// human-provided library name ("nextjs v14") to a job. page is a
// zero-based page of results sized to limit.
func (s *Service) ResolveLibraries(ctx context.Context, query string, limit, page int) ([]Library, error) {
	if limit <= 0 {
		limit = 10
	}
	offset := 0
	if page > 0 {
		offset = page * limit
	}
	rows, err := s.Store.ResolveLibraries(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("resolve libraries: %w", err)
	}

	out := make([]Library, 0, len(rows))
	for _, r := range rows {
		out = append(out, Library{
			Name:          r.Name,
			Version:       r.Version,
			DocumentCount: r.DocumentCount,
			SnippetCount:  r.SnippetCount,
			Similarity:    r.Similarity,
		})
	}
	return out, nil
}

// ResolveJob maps a caller-supplied library reference to a job: an
// exact job id, an exact "name" or "name@version" key, or (failing
// both) the top fuzzy match from ResolveLibraries. Used by the API and
// MCP surfaces everywhere a client passes a library_id that may be
// any of the three forms.
func (s *Service) ResolveJob(ctx context.Context, ref string) (*model.Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, store.ErrNotFound
	}

	if id, err := uuid.Parse(ref); err == nil {
		return s.Store.GetJob(ctx, id)
	}

	name, version := splitNameVersion(ref)
	for _, kind := range []model.JobKind{model.JobKindCrawl, model.JobKindUpload} {
		if job, err := s.Store.FindJob(ctx, kind, name, version); err == nil {
			return job, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	libs, err := s.ResolveLibraries(ctx, ref, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("resolve job: %w", err)
	}
	if len(libs) == 0 {
		return nil, store.ErrNotFound
	}
	top := libs[0]
	for _, kind := range []model.JobKind{model.JobKindCrawl, model.JobKindUpload} {
		if job, err := s.Store.FindJob(ctx, kind, top.Name, top.Version); err == nil {
			return job, nil
		}
	}
	return nil, store.ErrNotFound
}

// splitNameVersion splits a "name@version" reference; a bare name
// yields an empty version, matching the unversioned job key.
func splitNameVersion(ref string) (name, version string) {
	if i := strings.LastIndex(ref, "@"); i > 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// Options scopes a content search to a set of sources and constraints.
type Options struct {
	JobIDs     []uuid.UUID // empty means "search every source"
	Language   string
	Limit      int
	Page       int // zero-based; negative values are treated as 0
	SearchMode model.SearchMode
}

// offset converts a zero-based page number into a row offset for the
// configured page size.
func (o Options) offset(pageSize int) int {
	if o.Page <= 0 {
		return 0
	}
	return o.Page * pageSize
}

// Result is one ranked snippet, flagged as primary (matched the code
// search directly) or fallback (surfaced via its document's markdown
// matching the query instead).
type Result struct {
	SnippetID   uuid.UUID
	DocumentID  uuid.UUID
	Title       string
	Description string
	Language    string
	CodeContent string
	Rank        float64
	IsPrimary   bool
}

// Search runs the primary snippet full-text query, then — when in
// enhanced mode, or when primary hits fall under the configured
// fallback threshold — runs a markdown-document fallback query and
// unions its documents' snippets in below any primary hit. Results
// are ordered (is_primary DESC, rank DESC, id ASC) per the documented
// determinism guarantee.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	primaryRows, err := s.Store.SearchSnippets(ctx, query, opts.Language, opts.JobIDs, limit, opts.offset(limit))
	if err != nil {
		return nil, fmt.Errorf("search snippets: %w", err)
	}

	results := make([]Result, 0, len(primaryRows))
	seen := make(map[uuid.UUID]bool, len(primaryRows))
	for _, r := range primaryRows {
		results = append(results, Result{
			SnippetID:   r.ID,
			DocumentID:  r.DocumentID,
			Title:       r.Title,
			Description: r.Description,
			Language:    r.Language,
			CodeContent: r.CodeContent,
			Rank:        r.Rank,
			IsPrimary:   r.IsPrimary,
		})
		seen[r.ID] = true
	}

	threshold := s.Config.FallbackThreshold
	if threshold <= 0 {
		threshold = 5
	}

	runFallback := opts.SearchMode == model.SearchModeEnhanced || len(results) < threshold
	if runFallback {
		fallback, err := s.fallbackResults(ctx, query, opts, seen)
		if err != nil {
			return nil, err
		}
		results = append(results, fallback...)
	}

	return orderResults(results), nil
}

// orderResults sorts by (is_primary DESC, rank DESC, id ASC), the
// determinism guarantee documented for search results.
func orderResults(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].IsPrimary != results[j].IsPrimary {
			return results[i].IsPrimary
		}
		if results[i].Rank != results[j].Rank {
			return results[i].Rank > results[j].Rank
		}
		return results[i].SnippetID.String() < results[j].SnippetID.String()
	})
	return results
}

// fallbackResults finds documents whose markdown body matches the
// query, then fans out to up to 100 snippets under each, skipping snippets
// already present from the primary stage.
func (s *Service) fallbackResults(ctx context.Context, query string, opts Options, seen map[uuid.UUID]bool) ([]Result, error) {
	maxDocs := s.Config.MaxFallbackDocuments
	if maxDocs <= 0 {
		maxDocs = 10
	}

	docs, err := s.Store.SearchDocumentsFallback(ctx, query, opts.JobIDs, maxDocs, opts.offset(maxDocs))
	if err != nil {
		return nil, fmt.Errorf("fallback document search: %w", err)
	}

	var out []Result
	for _, doc := range docs {
		snippets, err := s.Store.SnippetsByDocument(ctx, doc.ID, 100)
		if err != nil {
			return nil, fmt.Errorf("fan out document snippets: %w", err)
		}
		for _, snip := range snippets {
			if seen[snip.ID] {
				continue
			}
			if opts.Language != "" && snip.Language != opts.Language {
				continue
			}
			seen[snip.ID] = true
			out = append(out, Result{
				SnippetID:   snip.ID,
				DocumentID:  snip.DocumentID,
				Title:       snip.Title,
				Description: snip.Description,
				Language:    snip.Language,
				CodeContent: snip.CodeContent,
				Rank:        0,
				IsPrimary:   false,
			})
		}
	}
	return out, nil
}
