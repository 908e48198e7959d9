package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"codeindex/internal/crawl"
	"codeindex/internal/ingest"
	"codeindex/internal/model"
	"codeindex/internal/pipeline"
	"codeindex/internal/progress"
	"codeindex/internal/store"
)

// Scheduler owns job lifecycle: creating jobs with a unique
// (kind, name, version) key, dispatching crawl/upload work under a
// bounded concurrency budget, and exposing cancel/recrawl/retry
// operations. Jobs are dispatched directly from the API/MCP handler
// goroutine rather than queued for a separate poller to pick up.
type Scheduler struct {
	Store    *store.Store
	Crawl    *crawl.Driver
	Pipeline *pipeline.Pipeline
	Progress *progress.Bus // optional; nil disables publishing

	sem chan struct{}

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// NewScheduler builds a Scheduler bounding concurrent job execution to
// maxConcurrentJobs.
func NewScheduler(st *store.Store, driver *crawl.Driver, pipe *pipeline.Pipeline, maxConcurrentJobs int) *Scheduler {
	if maxConcurrentJobs <= 0 {
		maxConcurrentJobs = 4
	}
	return &Scheduler{
		Store:    st,
		Crawl:    driver,
		Pipeline: pipe,
		sem:      make(chan struct{}, maxConcurrentJobs),
		running:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// CreateResult reports whether Create reused an existing job.
type CreateResult struct {
	Job      *model.Job
	Existing bool
}

// Create returns the job for (kind, name, version), creating it if
// absent. When a job already exists, the scheduler reuses its id so
// repeat crawls/uploads accumulate documents under one source instead
// of fragmenting it.
func (s *Scheduler) Create(ctx context.Context, kind model.JobKind, name, version string, cfg json.RawMessage) (CreateResult, error) {
	existing, err := s.Store.FindJob(ctx, kind, name, version)
	if err == nil {
		return CreateResult{Job: existing, Existing: true}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return CreateResult{}, fmt.Errorf("find job: %w", err)
	}

	job := &model.Job{
		ID:         uuid.New(),
		Kind:       kind,
		Name:       name,
		Version:    version,
		Status:     model.JobStatusRunning,
		Phase:      model.JobPhaseNone,
		MaxRetries: 3,
		Config:     cfg,
	}
	if err := s.Store.CreateJob(ctx, job); err != nil {
		return CreateResult{}, fmt.Errorf("create job: %w", err)
	}
	return CreateResult{Job: job}, nil
}

// RunCrawl dispatches a crawl job to the Driver in its own goroutine,
// bounded by the scheduler's concurrency semaphore. It returns once
// the job has been scheduled, not once it completes.
func (s *Scheduler) RunCrawl(job *model.Job, opts crawl.RunOptions) {
	opts.Job = job
	s.dispatch(job.ID, func(ctx context.Context) error {
		return s.Crawl.Run(ctx, opts)
	})
}

// RunUpload dispatches a direct file-upload job, feeding files through
// ingest.Files under the scheduler's concurrency budget.
func (s *Scheduler) RunUpload(job *model.Job, files []ingest.File, maxConcurrency int) {
	s.dispatch(job.ID, func(ctx context.Context) error {
		return s.runIngestion(ctx, job, func(ctx context.Context) []ingest.Result {
			return ingest.Files(ctx, s.Store, s.Pipeline, job, files, maxConcurrency)
		})
	})
}

// RunRepo dispatches a git-repo ingestion job.
func (s *Scheduler) RunRepo(job *model.Job, opts ingest.RepoOptions) {
	s.dispatch(job.ID, func(ctx context.Context) error {
		return s.runIngestion(ctx, job, func(ctx context.Context) []ingest.Result {
			results, err := ingest.Repo(ctx, s.Store, s.Pipeline, job, opts)
			if err != nil {
				return []ingest.Result{{Err: err}}
			}
			return results
		})
	})
}

// runIngestion is the shared start/run/complete wrapper used by both
// upload and repo jobs, neither of which manages job phase themselves
// the way crawl.Driver.Run does.
func (s *Scheduler) runIngestion(ctx context.Context, job *model.Job, fn func(ctx context.Context) []ingest.Result) error {
	if err := s.Store.StartJob(ctx, job.ID, model.JobPhaseNone); err != nil {
		return fmt.Errorf("start job: %w", err)
	}

	results := fn(ctx)

	var firstErr error
	for _, r := range results {
		if r.Err != nil && firstErr == nil {
			firstErr = r.Err
		}
		s.publish(job.ID, progress.TypeUploadUpdate, map[string]any{
			"url":            r.URL,
			"snippets_count": r.SnippetsCount,
		})
	}

	cancelled, _ := s.Store.IsCancelled(context.Background(), job.ID)
	switch {
	case cancelled:
		msg := "cancelled"
		s.publish(job.ID, progress.TypeCompleted, map[string]any{"cancelled": true})
		return s.Store.CompleteJob(context.Background(), job.ID, &msg)
	case firstErr != nil:
		msg := firstErr.Error()
		s.publish(job.ID, progress.TypeFailed, map[string]any{"error": msg})
		return s.Store.CompleteJob(context.Background(), job.ID, &msg)
	default:
		s.publish(job.ID, progress.TypeCompleted, map[string]any{"cancelled": false})
		return s.Store.CompleteJob(context.Background(), job.ID, nil)
	}
}

// publish delivers a progress event when a Bus is configured.
func (s *Scheduler) publish(jobID uuid.UUID, msgType progress.MessageType, data any) {
	if s.Progress == nil {
		return
	}
	s.Progress.Publish(jobID, msgType, data)
}

// dispatch runs fn in its own goroutine under the concurrency
// semaphore, tracking a cancel func so Cancel can also interrupt the
// in-process goroutine rather than waiting solely on the next
// cooperative-cancellation checkpoint.
func (s *Scheduler) dispatch(jobID uuid.UUID, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.running[jobID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, jobID)
			s.mu.Unlock()
			cancel()
		}()

		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		case <-ctx.Done():
			return
		}

		_ = fn(ctx)
	}()
}

// Cancel flags the job cancelled in the store and, if its driving
// goroutine is still tracked in this process, cancels its context
// immediately rather than waiting for the next polling checkpoint.
func (s *Scheduler) Cancel(ctx context.Context, jobID uuid.UUID) error {
	if err := s.Store.CancelJob(ctx, jobID); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, ok := s.running[jobID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// Recrawl starts a brand new job under job's (kind, name, version) key,
// superseding it: its documents carry over so unchanged pages are
// still recognized as already indexed, but the run gets its own job id
// and status history. Use this for an explicit, user-triggered
// re-crawl; stall recovery re-dispatches the same job id directly via
// RunCrawl instead, since it is resuming an interrupted attempt rather
// than starting a new one.
func (s *Scheduler) Recrawl(ctx context.Context, job *model.Job, cfg json.RawMessage, opts crawl.RunOptions) (*model.Job, error) {
	newJob, err := s.Store.RecrawlJob(ctx, job, cfg)
	if err != nil {
		return nil, fmt.Errorf("recrawl job: %w", err)
	}
	s.RunCrawl(newJob, opts)
	return newJob, nil
}

// RetryFailed increments the retry counter and reports the new count,
// leaving the caller to decide whether to re-dispatch (RunCrawl /
// RunUpload) based on MaxRetries.
func (s *Scheduler) RetryFailed(ctx context.Context, jobID uuid.UUID) (int, error) {
	return s.Store.RetryJob(ctx, jobID)
}
