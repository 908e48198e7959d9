// Package crawl drives a breadth-first crawl of a web site: fetching
// pages, following links up to a depth and pattern budget, and
// handing each page's content to the snippet parser and LLM enricher
// before persisting it.
package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	robotstxt "github.com/temoto/robotstxt"

	"codeindex/internal/config"
	"codeindex/internal/fingerprint"
	"codeindex/internal/model"
	"codeindex/internal/pipeline"
	"codeindex/internal/progress"
	"codeindex/internal/store"
)

// Driver owns the collaborators needed to run one crawl job to completion.
type Driver struct {
	Store    *store.Store
	Renderer Renderer
	Pipeline *pipeline.Pipeline
	Progress *progress.Bus // optional; nil disables publishing

	Crawler config.CrawlerConfig
	Worker  config.WorkerConfig

	robotsMu    sync.Mutex
	robotsCache map[string]*robotstxt.RobotsData // host -> parsed robots.txt, nil on fetch failure
}

// RunOptions scopes one crawl invocation to a single job.
type RunOptions struct {
	Job               *model.Job
	StartURL          string
	ExtraStartURLs    []string // additional seeds enqueued at depth 0 alongside StartURL
	MaxDepth          int
	MaxConcurrency    int
	URLPatterns       []string // glob patterns matched against the URL path; empty means allow all
	DomainFilter      string   // allowlisted domain (and its subdomains); empty defaults to the start URL's host
	IgnoreContentHash bool     // force re-parse even if content hash is unchanged
}

type task struct {
	url    string
	depth  int
	parent string
}

// Run crawls breadth-first by depth from opts.StartURL, persisting
// documents and snippets as they are discovered, until the queue is
// exhausted, the job is cancelled, or ctx is done.
func (d *Driver) Run(ctx context.Context, opts RunOptions) error {
	job := opts.Job

	startHost, err := hostOf(opts.StartURL)
	if err != nil {
		return fmt.Errorf("invalid start url: %w", err)
	}

	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = d.Worker.MaxConcurrentURLsPerJob
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	queueCap := d.Crawler.QueueCapacity
	if queueCap <= 0 {
		queueCap = 1000
	}

	if err := d.Store.StartJob(ctx, job.ID, model.JobPhaseCrawling); err != nil {
		return fmt.Errorf("start job: %w", err)
	}

	visited := make(map[string]bool)
	var visitedMu sync.Mutex

	queue := make(chan task, queueCap)
	var wg sync.WaitGroup

	enqueue := func(u string, depth int, parent string) {
		visitedMu.Lock()
		if visited[u] {
			visitedMu.Unlock()
			return
		}
		visited[u] = true
		visitedMu.Unlock()

		wg.Add(1)
		select {
		case queue <- task{url: u, depth: depth, parent: parent}:
		default:
			// Queue is saturated; record and drop rather than block or
			// grow unbounded.
			_ = d.Store.RecordFailedPage(ctx, job.ID, u, "crawl queue full, skipped")
			wg.Done()
		}
	}

	enqueue(opts.StartURL, 0, "")
	for _, seed := range opts.ExtraStartURLs {
		enqueue(seed, 0, "")
	}

	go func() {
		wg.Wait()
		close(queue)
	}()

	var workersWg sync.WaitGroup
	for i := 0; i < maxConcurrency; i++ {
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			for t := range queue {
				d.process(ctx, job, opts, startHost, t, enqueue)
				wg.Done()
			}
		}()
	}

	heartbeatDone := make(chan struct{})
	go d.heartbeatLoop(ctx, job.ID, heartbeatDone)

	workersWg.Wait()
	close(heartbeatDone)

	cancelled, _ := d.Store.IsCancelled(context.Background(), job.ID)
	if cancelled {
		msg := "cancelled"
		d.publish(job.ID, progress.TypeCompleted, map[string]any{"cancelled": true})
		return d.Store.CompleteJob(context.Background(), job.ID, &msg)
	}

	if ctx.Err() != nil {
		msg := ctx.Err().Error()
		d.publish(job.ID, progress.TypeFailed, map[string]any{"error": msg})
		return d.Store.CompleteJob(context.Background(), job.ID, &msg)
	}

	_ = d.Store.SetJobPhase(context.Background(), job.ID, model.JobPhaseFinalizing)
	err = d.Store.CompleteJob(context.Background(), job.ID, nil)
	d.publish(job.ID, progress.TypeCompleted, map[string]any{"cancelled": false})
	return err
}

// publish delivers a progress event when a Bus is configured; a nil
// Bus (e.g. in tests) makes this a no-op rather than a nil dereference.
func (d *Driver) publish(jobID uuid.UUID, msgType progress.MessageType, data any) {
	if d.Progress == nil {
		return
	}
	d.Progress.Publish(jobID, msgType, data)
}

func (d *Driver) heartbeatLoop(ctx context.Context, jobID uuid.UUID, done chan struct{}) {
	interval := time.Duration(d.Worker.HeartbeatIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = d.Store.Heartbeat(ctx, jobID, 0, 0)
			d.publish(jobID, progress.TypeHeartbeat, nil)
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Driver) process(ctx context.Context, job *model.Job, opts RunOptions, startHost string, t task, enqueue func(string, int, string)) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	if cancelled, _ := d.Store.IsCancelled(ctx, job.ID); cancelled {
		return
	}

	if !matchesPatterns(t.url, opts.URLPatterns) {
		return
	}

	if d.Crawler.RespectRobots && !d.allowedByRobots(ctx, t.url) {
		_ = d.Store.RecordFailedPage(ctx, job.ID, t.url, "disallowed by robots.txt")
		return
	}

	page, err := d.Renderer.Render(ctx, t.url, d.Crawler.UserAgent)
	if err != nil {
		_ = d.Store.RecordFailedPage(ctx, job.ID, t.url, err.Error())
		return
	}

	contentHash := fingerprint.Document(page.Markdown)
	docID := uuid.New()
	doc := &model.Document{
		ID:              docID,
		URL:             page.URL,
		JobID:           job.ID,
		JobKind:         job.Kind,
		Title:           page.Title,
		ContentType:     model.ContentTypeHTML,
		ContentHash:     contentHash,
		MarkdownContent: page.Markdown,
		CrawlDepth:      t.depth,
		ParentURL:       t.parent,
	}

	changed, err := d.Store.UpsertDocument(ctx, doc)
	if err != nil {
		_ = d.Store.RecordFailedPage(ctx, job.ID, t.url, err.Error())
		return
	}

	_ = d.Store.Heartbeat(ctx, job.ID, 1, 0)
	d.publish(job.ID, progress.TypeCrawlUpdate, map[string]any{"url": doc.URL, "depth": t.depth, "changed": changed})

	if changed || opts.IgnoreContentHash {
		d.extractAndStore(ctx, job, doc, page)
	}

	if t.depth >= opts.MaxDepth {
		return
	}

	for _, link := range page.Links {
		if !d.sameScope(link, startHost, opts.DomainFilter) {
			continue
		}
		enqueue(link, t.depth+1, page.URL)
	}
}

// extractAndStore runs the shared parse/enrich/persist pipeline over a
// rendered page's markdown body.
func (d *Driver) extractAndStore(ctx context.Context, job *model.Job, doc *model.Document, page *Page) {
	extracted, err := d.Pipeline.Extract(ctx, doc, page.Markdown)
	if err != nil {
		_ = d.Store.RecordFailedPage(ctx, job.ID, doc.URL, err.Error())
		return
	}
	if extracted > 0 {
		_ = d.Store.Heartbeat(ctx, job.ID, 0, extracted)
	}
}

// allowedByRobots reports whether t.url may be fetched per the
// target host's robots.txt, fetching and caching it once per host.
func (d *Driver) allowedByRobots(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	data := d.robotsForHost(ctx, u)
	if data == nil {
		return true
	}
	return data.FindGroup(d.Crawler.UserAgent).Test(u.Path)
}

func (d *Driver) robotsForHost(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := u.Scheme + "://" + u.Host

	d.robotsMu.Lock()
	if d.robotsCache == nil {
		d.robotsCache = make(map[string]*robotstxt.RobotsData)
	}
	if data, ok := d.robotsCache[host]; ok {
		d.robotsMu.Unlock()
		return data
	}
	d.robotsMu.Unlock()

	data, _ := fetchRobots(ctx, host, d.Crawler.UserAgent)

	d.robotsMu.Lock()
	d.robotsCache[host] = data
	d.robotsMu.Unlock()

	return data
}

// fetchRobots fetches and parses robots.txt for a host.
func fetchRobots(ctx context.Context, host, userAgent string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 robots.txt: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// sameScope reports whether rawURL's host falls within the allowed
// domain: the configured domainFilter if set, otherwise the crawl's
// own start host. A host matches its allowed domain exactly or as a
// subdomain of it.
func (d *Driver) sameScope(rawURL, startHost, domainFilter string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	allowed := domainFilter
	if allowed == "" {
		allowed = startHost
	}
	host := u.Hostname()
	if strings.EqualFold(host, allowed) {
		return true
	}
	if strings.HasSuffix(strings.ToLower(host), "."+strings.ToLower(allowed)) {
		return true
	}
	return false
}

// matchesPatterns reports whether the URL's path satisfies at least
// one glob pattern, when patterns are configured; an empty pattern
// list allows everything.
func matchesPatterns(rawURL string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, u.Path); ok {
			return true
		}
	}
	return false
}
