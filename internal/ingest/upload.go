// Package ingest feeds documents into the shared parse/enrich/persist
// pipeline from sources other than a live web crawl: direct file
// uploads and cloned git repositories. Both forms push discovered
// files through their own bounded worker pool into the same C3/C4
// pipeline as a crawl,
// with crawl_depth fixed at 0 and no link following.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"path"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/google/uuid"

	"codeindex/internal/fingerprint"
	"codeindex/internal/model"
	"codeindex/internal/pipeline"
	"codeindex/internal/store"
)

// File is one in-memory file handed to a direct upload job.
type File struct {
	Path    string
	Content []byte
}

// Result summarizes one document produced by an ingestion pass.
type Result struct {
	DocumentID    uuid.UUID
	URL           string
	SnippetsCount int64
	Err           error
}

// Files turns a batch of in-memory files into documents under job,
// using the synthetic URL scheme upload://<job_id>/<path>. Files are
// processed concurrently, bounded by maxConcurrency.
func Files(ctx context.Context, st *store.Store, pipe *pipeline.Pipeline, job *model.Job, files []File, maxConcurrency int) []Result {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]Result, len(files))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, f := range files {
		i, f := i, f
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = Result{Err: ctx.Err()}
				return
			}
			results[i] = ingestOneFile(ctx, st, pipe, job, f)
		}()
	}

	wg.Wait()
	return results
}

func ingestOneFile(ctx context.Context, st *store.Store, pipe *pipeline.Pipeline, job *model.Job, f File) Result {
	syntheticURL := fmt.Sprintf("upload://%s/%s", job.ID, strings.TrimPrefix(f.Path, "/"))
	return ingestDocument(ctx, st, pipe, job, syntheticURL, f.Path, f.Content)
}

// ingestDocument is the shared tail for both direct uploads and repo
// files: normalize to markdown, upsert the document, then run the
// snippet pipeline if the content changed.
func ingestDocument(ctx context.Context, st *store.Store, pipe *pipeline.Pipeline, job *model.Job, docURL, titlePath string, content []byte) Result {
	contentType, markdown := normalizeUploadedFile(titlePath, content)
	contentHash := fingerprint.Document(markdown)

	doc := &model.Document{
		ID:              uuid.New(),
		URL:             docURL,
		JobID:           job.ID,
		JobKind:         job.Kind,
		Title:           path.Base(titlePath),
		ContentType:     contentType,
		ContentHash:     contentHash,
		MarkdownContent: markdown,
		CrawlDepth:      0,
	}

	changed, err := st.UpsertDocument(ctx, doc)
	if err != nil {
		_ = st.RecordFailedPage(ctx, job.ID, docURL, err.Error())
		return Result{URL: docURL, Err: err}
	}

	_ = st.Heartbeat(ctx, job.ID, 1, 0)

	if !changed {
		return Result{DocumentID: doc.ID, URL: docURL}
	}

	extracted, err := pipe.Extract(ctx, doc, markdown)
	if err != nil {
		_ = st.RecordFailedPage(ctx, job.ID, docURL, err.Error())
		return Result{DocumentID: doc.ID, URL: docURL, Err: err}
	}
	if extracted > 0 {
		_ = st.Heartbeat(ctx, job.ID, 0, extracted)
	}

	return Result{DocumentID: doc.ID, URL: docURL, SnippetsCount: extracted}
}

// normalizeUploadedFile decides the stored content type and produces
// the markdown body the parser runs against. Markdown files pass
// through untouched; HTML files are converted to markdown the same
// way a crawled page is; any other text file is wrapped in a single
// fenced code block so the rest of the pipeline sees it uniformly.
func normalizeUploadedFile(filePath string, content []byte) (model.ContentType, string) {
	ext := strings.ToLower(path.Ext(filePath))

	switch ext {
	case ".md", ".markdown", ".mdx":
		return model.ContentTypeMarkdown, string(content)
	case ".html", ".htm":
		converter := htmlmd.NewConverter("", true, nil)
		markdown, err := converter.ConvertString(string(content))
		if err != nil {
			doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(content))
			if parseErr == nil {
				markdown = doc.Text()
			} else {
				markdown = html.UnescapeString(string(content))
			}
		}
		return model.ContentTypeHTML, markdown
	default:
		lang := strings.TrimPrefix(ext, ".")
		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n```%s\n%s\n```\n", path.Base(filePath), lang, string(content))
		return model.ContentTypeMarkdown, sb.String()
	}
}
