package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"codeindex/internal/model"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when an insert would violate a uniqueness
// constraint the caller is expected to treat as a no-op, not a failure.
var ErrDuplicate = errors.New("store: duplicate")

// Store wraps a shared *sql.DB connection pool.
type Store struct {
	DB *sql.DB
}

// New wraps an already-opened, already-pooled *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// --- jobs ---------------------------------------------------------------

// CreateJob inserts a new job row. If a job with the same (kind, name,
// version) already exists, nothing is inserted and ErrDuplicate is
// returned; callers that want to reuse the existing job look it up
// with FindJob.
func (s *Store) CreateJob(ctx context.Context, j *model.Job) error {
	cfg := j.Config
	if cfg == nil {
		cfg = json.RawMessage("{}")
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, name, version, status, phase, max_retries, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, j.ID, j.Kind, j.Name, j.Version, j.Status, j.Phase, j.MaxRetries, []byte(cfg))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// FindJob looks up a job by its (kind, name, version) key.
func (s *Store) FindJob(ctx context.Context, kind model.JobKind, name, version string) (*model.Job, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, kind, name, version, status, phase, cancelled, pages_processed,
		       snippets_extracted, created_at, started_at, completed_at, last_heartbeat,
		       retry_count, max_retries, error_message, config
		FROM jobs WHERE kind = $1 AND name = $2 AND version = $3
	`, kind, name, version)
	return scanJob(row)
}

// GetJob fetches a single job row by id.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, kind, name, version, status, phase, cancelled, pages_processed,
		       snippets_extracted, created_at, started_at, completed_at, last_heartbeat,
		       retry_count, max_retries, error_message, config
		FROM jobs WHERE id = $1
	`, id)
	return scanJob(row)
}

func scanJob(row *sql.Row) (*model.Job, error) {
	var j model.Job
	var errMsg sql.NullString
	var cfg []byte
	err := row.Scan(&j.ID, &j.Kind, &j.Name, &j.Version, &j.Status, &j.Phase, &j.Cancelled,
		&j.PagesProcessed, &j.SnippetsExtracted, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
		&j.LastHeartbeat, &j.RetryCount, &j.MaxRetries, &errMsg, &cfg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if errMsg.Valid {
		j.ErrorMessage = &errMsg.String
	}
	j.Config = cfg
	return &j, nil
}

// ListJobs returns jobs ordered most-recent-first, optionally filtered
// by kind.
func (s *Store) ListJobs(ctx context.Context, kind *model.JobKind) ([]*model.Job, error) {
	query := `
		SELECT id, kind, name, version, status, phase, cancelled, pages_processed,
		       snippets_extracted, created_at, started_at, completed_at, last_heartbeat,
		       retry_count, max_retries, error_message, config
		FROM jobs
	`
	var args []any
	if kind != nil {
		query += ` WHERE kind = $1`
		args = append(args, *kind)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// StartJob marks a job running and stamps started_at if unset.
func (s *Store) StartJob(ctx context.Context, id uuid.UUID, phase model.JobPhase) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE jobs SET status = 'running', phase = $2,
		       started_at = coalesce(started_at, now())
		WHERE id = $1
	`, id, phase)
	return err
}

// SetJobPhase updates only the phase of a running job.
func (s *Store) SetJobPhase(ctx context.Context, id uuid.UUID, phase model.JobPhase) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE jobs SET phase = $2 WHERE id = $1`, id, phase)
	return err
}

// CompleteJob marks a job completed, optionally with an error message.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID, errMsg *string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', phase = '', completed_at = now(), error_message = $2
		WHERE id = $1
	`, id, errMsg)
	return err
}

// CancelJob sets the cancellation flag; the worker observes it
// cooperatively and completes the job on its own next checkpoint.
func (s *Store) CancelJob(ctx context.Context, id uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE jobs SET cancelled = TRUE WHERE id = $1 AND status = 'running'`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsCancelled reports the job's cancellation flag.
func (s *Store) IsCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	var cancelled bool
	err := s.DB.QueryRowContext(ctx, `SELECT cancelled FROM jobs WHERE id = $1`, id).Scan(&cancelled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	return cancelled, err
}

// Heartbeat advances last_heartbeat and progress counters. The
// heartbeat timestamp is monotonic: a late, out-of-order write can
// never move it backwards.
func (s *Store) Heartbeat(ctx context.Context, id uuid.UUID, pagesDelta, snippetsDelta int64) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE jobs SET
			last_heartbeat = greatest(coalesce(last_heartbeat, now()), now()),
			pages_processed = pages_processed + $2,
			snippets_extracted = snippets_extracted + $3
		WHERE id = $1
	`, id, pagesDelta, snippetsDelta)
	return err
}

// RetryJob increments the retry counter, returning the updated count.
func (s *Store) RetryJob(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `
		UPDATE jobs SET retry_count = retry_count + 1, status = 'running', cancelled = FALSE, error_message = NULL
		WHERE id = $1 RETURNING retry_count
	`, id).Scan(&count)
	return count, err
}

// StalledJobs returns running jobs whose last heartbeat is older than
// the cutoff (or that have never heartbeat and started before it).
func (s *Store) StalledJobs(ctx context.Context, cutoff time.Time) ([]*model.Job, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, kind, name, version, status, phase, cancelled, pages_processed,
		       snippets_extracted, created_at, started_at, completed_at, last_heartbeat,
		       retry_count, max_retries, error_message, config
		FROM jobs
		WHERE status = 'running'
		  AND coalesce(last_heartbeat, started_at, created_at) < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*model.Job, error) {
	var out []*model.Job
	for rows.Next() {
		var j model.Job
		var errMsg sql.NullString
		var cfg []byte
		if err := rows.Scan(&j.ID, &j.Kind, &j.Name, &j.Version, &j.Status, &j.Phase, &j.Cancelled,
			&j.PagesProcessed, &j.SnippetsExtracted, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
			&j.LastHeartbeat, &j.RetryCount, &j.MaxRetries, &errMsg, &cfg); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			j.ErrorMessage = &errMsg.String
		}
		j.Config = cfg
		out = append(out, &j)
	}
	return out, rows.Err()
}

// RenameJob updates a job's (name, version) pair, used by source
// rename. Returns ErrDuplicate if another job already owns the target
// (kind, name, version).
func (s *Store) RenameJob(ctx context.Context, id uuid.UUID, name, version string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE jobs SET name = $2, version = $3 WHERE id = $1`, id, name, version)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// RecrawlJob supersedes old with a freshly minted job under the same
// (kind, name, version) key. The old row is renamed out of the way so
// the unique key is free, the new row takes its place, every document
// migrates across to the new id, and the now-empty old row is removed.
// Migrating documents (rather than starting the new job with none)
// keeps content-hash dedup seeing prior pages as already indexed.
func (s *Store) RecrawlJob(ctx context.Context, old *model.Job, cfg json.RawMessage) (*model.Job, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin recrawl tx: %w", err)
	}
	defer tx.Rollback()

	newJob := &model.Job{
		ID:         uuid.New(),
		Kind:       old.Kind,
		Name:       old.Name,
		Version:    old.Version,
		Status:     model.JobStatusRunning,
		Phase:      model.JobPhaseNone,
		MaxRetries: old.MaxRetries,
		Config:     cfg,
	}

	supersededVersion := old.Version + ":superseded:" + newJob.ID.String()
	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET version = $2 WHERE id = $1`, old.ID, supersededVersion); err != nil {
		return nil, fmt.Errorf("free job key: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, name, version, status, phase, max_retries, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, newJob.ID, newJob.Kind, newJob.Name, newJob.Version, newJob.Status, newJob.Phase, newJob.MaxRetries, []byte(cfg)); err != nil {
		return nil, fmt.Errorf("insert recrawl job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE documents SET job_id = $1 WHERE job_id = $2`, newJob.ID, old.ID); err != nil {
		return nil, fmt.Errorf("migrate documents to recrawl job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, old.ID); err != nil {
		return nil, fmt.Errorf("delete superseded job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit recrawl tx: %w", err)
	}
	newJob.Config = cfg
	return newJob, nil
}

// LanguagesByJob returns the distinct, non-empty snippet languages
// present under a job's documents.
func (s *Store) LanguagesByJob(ctx context.Context, jobID uuid.UUID) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT cs.language
		FROM code_snippets cs
		JOIN documents d ON d.id = cs.document_id
		WHERE d.job_id = $1 AND cs.language <> ''
		ORDER BY cs.language ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, err
		}
		out = append(out, lang)
	}
	return out, rows.Err()
}

// DeleteSnippetsMatching deletes every snippet under jobID whose code
// or title matches pattern (a plain ILIKE substring, % wildcards
// accepted from the caller), returning the number removed.
func (s *Store) DeleteSnippetsMatching(ctx context.Context, jobID uuid.UUID, pattern string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM code_snippets
		WHERE document_id IN (SELECT id FROM documents WHERE job_id = $1)
		  AND (code_content ILIKE $2 OR title ILIKE $2)
	`, jobID, "%"+pattern+"%")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- documents ------------------------------------------------------------

// UpsertDocument inserts a document, or on (job_id, url) conflict
// updates it in place and reports whether the content actually
// changed (via content_hash) so callers can skip re-parsing unchanged
// pages on recrawl.
func (s *Store) UpsertDocument(ctx context.Context, d *model.Document) (changed bool, err error) {
	var existingHash string
	err = s.DB.QueryRowContext(ctx, `
		WITH prev AS (SELECT content_hash FROM documents WHERE job_id = $3 AND url = $2)
		INSERT INTO documents (id, url, job_id, job_kind, title, content_type, content_hash,
		                        markdown_content, crawl_depth, parent_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id, url) DO UPDATE SET
			title = EXCLUDED.title,
			content_type = EXCLUDED.content_type,
			content_hash = EXCLUDED.content_hash,
			markdown_content = EXCLUDED.markdown_content,
			crawl_depth = EXCLUDED.crawl_depth,
			parent_url = EXCLUDED.parent_url
		RETURNING (SELECT content_hash FROM prev) IS DISTINCT FROM documents.content_hash, content_hash
	`, d.ID, d.URL, d.JobID, d.JobKind, d.Title, d.ContentType, d.ContentHash,
		d.MarkdownContent, d.CrawlDepth, d.ParentURL).Scan(&changed, &existingHash)
	if err != nil {
		return false, fmt.Errorf("upsert document: %w", err)
	}
	return changed, nil
}

// GetDocument fetches a document by id.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, url, job_id, job_kind, title, content_type, content_hash,
		       markdown_content, crawl_depth, parent_url, created_at, updated_at
		FROM documents WHERE id = $1
	`, id)
	return scanDocument(row)
}

func scanDocument(row *sql.Row) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.URL, &d.JobID, &d.JobKind, &d.Title, &d.ContentType, &d.ContentHash,
		&d.MarkdownContent, &d.CrawlDepth, &d.ParentURL, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

// GetDocumentByURL fetches a document by its exact URL (crawl pages,
// upload:// synthetic URLs, or repo blob URLs all key off this).
func (s *Store) GetDocumentByURL(ctx context.Context, url string) (*model.Document, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, url, job_id, job_kind, title, content_type, content_hash,
		       markdown_content, crawl_depth, parent_url, created_at, updated_at
		FROM documents WHERE url = $1
	`, url)
	return scanDocument(row)
}

// ListDocumentsByJob returns every document belonging to a job.
func (s *Store) ListDocumentsByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Document, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, url, job_id, job_kind, title, content_type, content_hash,
		       markdown_content, crawl_depth, parent_url, created_at, updated_at
		FROM documents WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.URL, &d.JobID, &d.JobKind, &d.Title, &d.ContentType, &d.ContentHash,
			&d.MarkdownContent, &d.CrawlDepth, &d.ParentURL, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// --- code snippets ----------------------------------------------------

// InsertSnippet inserts a snippet, returning ErrDuplicate if one with
// the same (document_id, code_hash) already exists so the caller can
// treat the insert as a no-op.
func (s *Store) InsertSnippet(ctx context.Context, c *model.CodeSnippet) error {
	meta := c.Meta
	if meta == nil {
		meta = json.RawMessage("{}")
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO code_snippets (
			id, document_id, title, description, language, code_content, code_hash,
			line_start, line_end, context_before, context_after, section_title, section_content,
			functions, imports, keywords, snippet_type, source_url, enriched, meta
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, c.ID, c.DocumentID, c.Title, c.Description, c.Language, c.CodeContent, c.CodeHash,
		c.LineStart, c.LineEnd, c.ContextBefore, c.ContextAfter, c.SectionTitle, c.SectionContent,
		c.Functions, c.Imports, c.Keywords,
		c.SnippetType, c.SourceURL, c.Enriched, []byte(meta))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert snippet: %w", err)
	}
	return nil
}

// EnrichSnippet writes LLM-derived fields back onto an existing snippet.
func (s *Store) EnrichSnippet(ctx context.Context, id uuid.UUID, title, description, snippetType string, functions, imports, keywords []string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE code_snippets SET
			title = $2, description = $3, snippet_type = $4,
			functions = $5, imports = $6, keywords = $7, enriched = TRUE
		WHERE id = $1
	`, id, title, description, snippetType, functions, imports, keywords)
	return err
}

// GetSnippet fetches a snippet by id.
func (s *Store) GetSnippet(ctx context.Context, id uuid.UUID) (*model.CodeSnippet, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, document_id, title, description, language, code_content, code_hash,
		       line_start, line_end, context_before, context_after, section_title, section_content,
		       functions, imports, keywords, snippet_type, source_url, enriched, meta, created_at, updated_at
		FROM code_snippets WHERE id = $1
	`, id)
	return scanSnippet(row)
}

func scanSnippet(row *sql.Row) (*model.CodeSnippet, error) {
	var c model.CodeSnippet
	var meta []byte
	err := row.Scan(&c.ID, &c.DocumentID, &c.Title, &c.Description, &c.Language, &c.CodeContent, &c.CodeHash,
		&c.LineStart, &c.LineEnd, &c.ContextBefore, &c.ContextAfter, &c.SectionTitle, &c.SectionContent,
		&c.Functions, &c.Imports, &c.Keywords,
		&c.SnippetType, &c.SourceURL, &c.Enriched, &meta, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan snippet: %w", err)
	}
	c.Meta = meta
	return &c, nil
}

// SnippetExistsByHash reports whether a snippet with this (document,
// hash) pair is already stored, used for the at-most-once enrichment
// guard without requiring a full row fetch.
func (s *Store) SnippetExistsByHash(ctx context.Context, documentID uuid.UUID, codeHash string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM code_snippets WHERE document_id = $1 AND code_hash = $2)
	`, documentID, codeHash).Scan(&exists)
	return exists, err
}

// --- failed pages -------------------------------------------------------

// RecordFailedPage upserts a failure row for one URL in a job, without
// failing the job itself.
func (s *Store) RecordFailedPage(ctx context.Context, jobID uuid.UUID, url, errMsg string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO failed_pages (job_id, url, error)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, url) DO UPDATE SET error = EXCLUDED.error, created_at = now()
	`, jobID, url, errMsg)
	return err
}

// ListFailedPages returns every recorded failure for a job.
func (s *Store) ListFailedPages(ctx context.Context, jobID uuid.UUID) ([]*model.FailedPage, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT job_id, url, error, created_at FROM failed_pages WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.FailedPage
	for rows.Next() {
		var f model.FailedPage
		if err := rows.Scan(&f.JobID, &f.URL, &f.Error, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// --- relationships --------------------------------------------------------

// InsertRelationship inserts a directed edge, no-op on duplicate.
func (s *Store) InsertRelationship(ctx context.Context, r *model.SnippetRelationship) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO snippet_relationships (id, source, target, type, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source, target, type) DO NOTHING
	`, r.ID, r.Source, r.Target, r.Type, r.Description)
	return err
}

// RelatedSnippet is one edge returned by the find_related_snippets
// function, annotated with which side of the row the caller's
// snippet sat on.
type RelatedSnippet struct {
	ID          uuid.UUID
	TargetID    uuid.UUID
	Type        model.RelationshipType
	Direction   string // "outgoing" or "incoming"
	Description string
}

// FindRelated calls the find_related_snippets SQL function.
func (s *Store) FindRelated(ctx context.Context, snippetID uuid.UUID, limit int) ([]RelatedSnippet, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, target_id, type, direction, description FROM find_related_snippets($1, $2)`, snippetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RelatedSnippet
	for rows.Next() {
		var r RelatedSnippet
		if err := rows.Scan(&r.ID, &r.TargetID, &r.Type, &r.Direction, &r.Description); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- sources / statistics -----------------------------------------------

// ListSources returns the source_statistics view, optionally filtered
// by a case-insensitive name prefix.
func (s *Store) ListSources(ctx context.Context, namePrefix string) ([]*model.Source, error) {
	query := `
		SELECT job_id, job_kind, name, version, status, document_count, snippet_count, last_updated
		FROM source_statistics
	`
	var args []any
	if namePrefix != "" {
		query += ` WHERE name ILIKE $1`
		args = append(args, namePrefix+"%")
	}
	query += ` ORDER BY name ASC, version ASC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.JobID, &src.JobKind, &src.Name, &src.Version, &src.Status,
			&src.DocumentCount, &src.SnippetCount, &src.LastUpdated); err != nil {
			return nil, err
		}
		out = append(out, &src)
	}
	return out, rows.Err()
}

// GetSourceByJobID fetches a single row of the source_statistics view.
func (s *Store) GetSourceByJobID(ctx context.Context, jobID uuid.UUID) (*model.Source, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT job_id, job_kind, name, version, status, document_count, snippet_count, last_updated
		FROM source_statistics WHERE job_id = $1
	`, jobID)

	var src model.Source
	err := row.Scan(&src.JobID, &src.JobKind, &src.Name, &src.Version, &src.Status,
		&src.DocumentCount, &src.SnippetCount, &src.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}
	return &src, nil
}

// ResolveLibraryRow is a single candidate source surfaced while
// resolving a human-provided library name to an exact (name, version).
type ResolveLibraryRow struct {
	Name          string
	Version       string
	DocumentCount int64
	SnippetCount  int64
	Similarity    float64
}

// ResolveLibraries ranks sources by exact match, then prefix match,
// then trigram similarity against the query term.
func (s *Store) ResolveLibraries(ctx context.Context, term string, limit, offset int) ([]ResolveLibraryRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT name, version, document_count, snippet_count,
		       similarity(name, $1) AS sim
		FROM source_statistics
		WHERE name ILIKE $1 || '%' OR similarity(name, $1) > 0.2
		ORDER BY
			(lower(name) = lower($1)) DESC,
			(name ILIKE $1 || '%') DESC,
			sim DESC
		LIMIT $2 OFFSET $3
	`, term, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResolveLibraryRow
	for rows.Next() {
		var r ResolveLibraryRow
		if err := rows.Scan(&r.Name, &r.Version, &r.DocumentCount, &r.SnippetCount, &r.Similarity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- search ---------------------------------------------------------------

// SnippetSearchRow is one ranked result from SearchSnippets.
type SnippetSearchRow struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	Title       string
	Description string
	Language    string
	CodeContent string
	Rank        float64
	IsPrimary   bool
}

// SearchSnippets calls the search_code_snippets SQL function scoped to
// an optional language filter and an optional set of job ids (nil
// means "all sources").
func (s *Store) SearchSnippets(ctx context.Context, query, language string, jobIDs []uuid.UUID, limit, offset int) ([]SnippetSearchRow, error) {
	var jobIDsArg any
	if len(jobIDs) > 0 {
		jobIDsArg = jobIDs
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, document_id, title, description, language, code_content, rank, is_primary
		FROM search_code_snippets($1, $2, $3, $4, $5)
	`, query, language, jobIDsArg, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnippetSearchRow
	for rows.Next() {
		var r SnippetSearchRow
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Title, &r.Description, &r.Language,
			&r.CodeContent, &r.Rank, &r.IsPrimary); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchDocumentsFallback ranks whole documents by markdown tsvector
// match, used when the primary snippet search returns too few hits.
func (s *Store) SearchDocumentsFallback(ctx context.Context, query string, jobIDs []uuid.UUID, limit, offset int) ([]*model.Document, error) {
	var jobFilter string
	args := []any{query}
	if len(jobIDs) > 0 {
		jobFilter = " AND job_id = ANY($2)"
		args = append(args, jobIDs)
		args = append(args, limit, offset)
	} else {
		args = append(args, limit, offset)
	}
	limitPos := len(args) - 1
	offsetPos := len(args)

	q := fmt.Sprintf(`
		SELECT id, url, job_id, job_kind, title, content_type, content_hash,
		       markdown_content, crawl_depth, parent_url, created_at, updated_at
		FROM documents
		WHERE search_vector @@ websearch_to_tsquery('english', $1)%s
		ORDER BY ts_rank(search_vector, websearch_to_tsquery('english', $1)) DESC
		LIMIT $%d OFFSET $%d
	`, jobFilter, limitPos, offsetPos)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.URL, &d.JobID, &d.JobKind, &d.Title, &d.ContentType, &d.ContentHash,
			&d.MarkdownContent, &d.CrawlDepth, &d.ParentURL, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// SnippetsByDocument returns up to limit snippets of a document, in
// source order, for the markdown-fallback search path's per-document
// fan-out.
func (s *Store) SnippetsByDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]*model.CodeSnippet, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, document_id, title, description, language, code_content, code_hash,
		       line_start, line_end, context_before, context_after, section_title, section_content,
		       functions, imports, keywords, snippet_type, source_url, enriched, meta, created_at, updated_at
		FROM code_snippets WHERE document_id = $1 ORDER BY line_start NULLS LAST LIMIT $2
	`, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CodeSnippet
	for rows.Next() {
		var c model.CodeSnippet
		var meta []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Title, &c.Description, &c.Language, &c.CodeContent, &c.CodeHash,
			&c.LineStart, &c.LineEnd, &c.ContextBefore, &c.ContextAfter, &c.SectionTitle, &c.SectionContent,
			&c.Functions, &c.Imports, &c.Keywords,
			&c.SnippetType, &c.SourceURL, &c.Enriched, &meta, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Meta = meta
		out = append(out, &c)
	}
	return out, rows.Err()
}

// --- retention --------------------------------------------------------

// DeleteExpiredJobs removes completed jobs (and their documents and
// snippets, via ON DELETE CASCADE) older than the cutoff.
func (s *Store) DeleteExpiredJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE status = 'completed' AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteJob removes a job and everything derived from it.
func (s *Store) DeleteJob(ctx context.Context, id uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

