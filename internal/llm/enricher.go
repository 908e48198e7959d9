package llm

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"codeindex/internal/config"
	"codeindex/internal/model"
)

// Pool wraps a Client with the concurrency, pacing, and failure
// policy that lets many snippets be enriched at once without
// overrunning a provider's rate limit or hanging a job on one bad
// request.
type Pool struct {
	client  Client
	enabled bool

	sem     chan struct{}
	limiter *rate.Limiter

	maxAttempts int
	timeout     time.Duration

	mu   sync.Mutex
	seen map[string]bool // (documentID, codeHash) guard, at-most-once per process
}

// NewPool builds a Pool from configuration. When no provider is
// configured (the cost guard), Enrich always returns the deterministic
// fallback without making any network call.
func NewPool(cfg *config.LLMConfig) *Pool {
	client, err := NewClientFromConfig(cfg)
	enabled := err == nil

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	rps := cfg.RequestsPerMinute
	if rps <= 0 {
		rps = 60
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Pool{
		client:      client,
		enabled:     enabled,
		sem:         make(chan struct{}, maxConcurrent),
		limiter:     rate.NewLimiter(rate.Limit(float64(rps)/60.0), maxConcurrent),
		maxAttempts: maxAttempts,
		timeout:     timeout,
		seen:        make(map[string]bool),
	}
}

// Enabled reports whether the pool has usable credentials.
func (p *Pool) Enabled() bool {
	return p != nil && p.enabled
}

// alreadyAttempted marks (documentID, codeHash) as seen for this
// process lifetime and reports whether it had been seen before,
// enforcing the at-most-once-per-fingerprint enrichment guarantee
// within a single run even under concurrent workers.
func (p *Pool) alreadyAttempted(documentID, codeHash string) bool {
	key := documentID + ":" + codeHash
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[key] {
		return true
	}
	p.seen[key] = true
	return false
}

// Enrich attempts to enrich one snippet, retrying every failed call
// with exponential backoff and jitter up to maxAttempts; transient
// errors (timeouts, 429, 5xx) are not told apart from permanent ones,
// so a permanent error is retried too. When the pool is disabled, the
// fingerprint was already attempted, or the attempts run out, it
// returns a deterministic fallback rather than an error,
// since a parser-derived snippet is always worth keeping even
// unenriched.
func (p *Pool) Enrich(ctx context.Context, documentID string, block EnrichInput) EnrichResult {
	fallback := EnrichResult{
		Title:       fallbackTitle(block.Language),
		Description: "",
		SnippetType: string(classifyFallback(block)),
	}

	if !p.Enabled() {
		return fallback
	}
	if p.alreadyAttempted(documentID, block.CodeHash) {
		return fallback
	}

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return fallback
	}

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return fallback
		}

		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		res, err := p.client.Enrich(callCtx, EnrichRequest{
			Language:      block.Language,
			Code:          block.Code,
			SectionTitle:  block.SectionTitle,
			ContextBefore: block.ContextBefore,
			DocumentURL:   block.DocumentURL,
			Timeout:       p.timeout,
		})
		cancel()
		if err == nil {
			if res.Title == "" {
				res.Title = fallback.Title
			}
			if res.SnippetType == "" {
				res.SnippetType = fallback.SnippetType
			}
			return res
		}

		if ctx.Err() != nil {
			return fallback
		}

		backoff := time.Duration(1<<attempt) * 200 * time.Millisecond
		jitter := time.Duration(rand.Intn(100)) * time.Millisecond
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return fallback
		}
	}

	return fallback
}

// EnrichInput is the subset of a parsed block the enricher needs.
type EnrichInput struct {
	Language      string
	Code          string
	CodeHash      string
	SectionTitle  string
	ContextBefore string
	DocumentURL   string
}

// fallbackTitle is used when enrichment is disabled or exhausted, per
// the "<language> snippet" convention.
func fallbackTitle(language string) string {
	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = "code"
	}
	return fmt.Sprintf("%s snippet", lang)
}

// classifyFallback is a reduced form of the parser's deterministic
// classification (leading class/func/def only; config languages are
// not recognised) so an unenriched snippet still gets a sensible type.
func classifyFallback(block EnrichInput) model.SnippetType {
	lower := strings.ToLower(strings.TrimSpace(block.Code))
	switch {
	case strings.HasPrefix(lower, "class "):
		return model.SnippetTypeClass
	case strings.HasPrefix(lower, "func "), strings.HasPrefix(lower, "def "):
		return model.SnippetTypeFunction
	default:
		return model.SnippetTypeExample
	}
}
