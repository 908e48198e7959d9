package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"codeindex/internal/config"
	"codeindex/internal/crawl"
	"codeindex/internal/model"
)

// CrawlJobConfig is the Job.Config payload stored for crawl-kind jobs,
// sufficient to re-dispatch a stalled crawl without the caller's
// original request. init_crawl / POST /crawl-jobs populate this when
// creating the job.
type CrawlJobConfig struct {
	StartURL          string   `json:"startUrl"`
	MaxDepth          int      `json:"maxDepth"`
	MaxConcurrency    int      `json:"maxConcurrency"`
	URLPatterns       []string `json:"urlPatterns,omitempty"`
	DomainFilter      string   `json:"domainFilter,omitempty"`
	IgnoreContentHash bool     `json:"ignoreContentHash,omitempty"`
}

// Sweeper runs two periodic maintenance passes via cron: recovering
// jobs whose worker died without completing them, and deleting
// expired job rows past the configured retention window.
type Sweeper struct {
	Scheduler *Scheduler
	Worker    config.WorkerConfig
	Retention config.RetentionConfig
	Logger    *slog.Logger

	cron *cron.Cron
}

// Start registers and runs the stall-recovery and retention-cleanup
// cron entries, returning immediately. Call Stop to halt them.
func (sw *Sweeper) Start(ctx context.Context) {
	logger := sw.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sw.cron = cron.New()

	// Stall recovery runs every StallThresholdMs/2 (floor 15s) so a
	// stalled job is caught within roughly half its own threshold.
	stallEvery := time.Duration(sw.Worker.StallThresholdMs) * time.Millisecond / 2
	if stallEvery < 15*time.Second {
		stallEvery = 15 * time.Second
	}
	_, _ = sw.cron.AddFunc(everySpec(stallEvery), func() {
		sw.recoverStalled(ctx, logger)
	})

	if sw.Retention.Enabled {
		interval := time.Duration(sw.Retention.CleanupIntervalMinutes) * time.Minute
		if interval <= 0 {
			interval = time.Hour
		}
		_, _ = sw.cron.AddFunc(everySpec(interval), func() {
			sw.cleanupExpired(ctx, logger)
		})
	}

	sw.cron.Start()
}

// Stop halts the cron scheduler, waiting for any in-flight run to finish.
func (sw *Sweeper) Stop() {
	if sw.cron != nil {
		<-sw.cron.Stop().Done()
	}
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}

// recoverStalled finds jobs with no heartbeat inside the stall
// threshold and either re-dispatches them (crawl jobs under their
// retry budget) or marks them completed with an error message.
func (sw *Sweeper) recoverStalled(ctx context.Context, logger *slog.Logger) {
	threshold := time.Duration(sw.Worker.StallThresholdMs) * time.Millisecond
	if threshold <= 0 {
		threshold = 60 * time.Second
	}
	cutoff := time.Now().UTC().Add(-threshold)

	stalled, err := sw.Scheduler.Store.StalledJobs(ctx, cutoff)
	if err != nil {
		logger.Error("list stalled jobs", "error", err)
		return
	}

	for _, job := range stalled {
		logger.Warn("recovering stalled job", "job_id", job.ID, "kind", job.Kind, "name", job.Name)

		if job.RetryCount >= job.MaxRetries || job.Kind != model.JobKindCrawl {
			msg := "stalled: no heartbeat within threshold"
			_ = sw.Scheduler.Store.CompleteJob(ctx, job.ID, &msg)
			continue
		}

		if _, err := sw.Scheduler.RetryFailed(ctx, job.ID); err != nil {
			logger.Error("retry stalled job", "job_id", job.ID, "error", err)
			continue
		}

		var cfg CrawlJobConfig
		if err := json.Unmarshal(job.Config, &cfg); err != nil || cfg.StartURL == "" {
			msg := "stalled: missing crawl config for retry"
			_ = sw.Scheduler.Store.CompleteJob(ctx, job.ID, &msg)
			continue
		}

		// Resume the same attempt under its existing job id rather than
		// minting a new one: this is recovering an interrupted run, not
		// an explicit user-triggered recrawl.
		sw.Scheduler.RunCrawl(job, crawl.RunOptions{
			StartURL:          cfg.StartURL,
			MaxDepth:          cfg.MaxDepth,
			MaxConcurrency:    cfg.MaxConcurrency,
			URLPatterns:       cfg.URLPatterns,
			DomainFilter:      cfg.DomainFilter,
			IgnoreContentHash: cfg.IgnoreContentHash,
		})
	}
}

// cleanupExpired deletes jobs (and their cascaded documents/snippets)
// older than the configured retention window.
func (sw *Sweeper) cleanupExpired(ctx context.Context, logger *slog.Logger) {
	if sw.Retention.JobDays <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -sw.Retention.JobDays)

	deleted, err := sw.Scheduler.Store.DeleteExpiredJobs(ctx, cutoff)
	if err != nil {
		logger.Error("delete expired jobs", "error", err)
		return
	}
	if deleted > 0 {
		logger.Info("retention cleanup deleted jobs", "count", deleted)
	}
}
