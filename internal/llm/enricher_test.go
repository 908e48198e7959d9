package llm

import (
	"context"
	"testing"

	"codeindex/internal/config"
)

func TestPoolDisabledReturnsFallback(t *testing.T) {
	cfg := &config.LLMConfig{} // no provider configured
	pool := NewPool(cfg)
	if pool.Enabled() {
		t.Fatalf("expected pool to be disabled without credentials")
	}

	res := pool.Enrich(context.Background(), "doc-1", EnrichInput{
		Language: "go",
		Code:     "func main() {}",
		CodeHash: "abc123",
	})
	if res.Title != "go snippet" {
		t.Fatalf("expected fallback title, got %q", res.Title)
	}
}

func TestPoolFallbackTitleDefaultsLanguage(t *testing.T) {
	if got := fallbackTitle(""); got != "code snippet" {
		t.Fatalf("expected 'code snippet', got %q", got)
	}
}

func TestPoolAtMostOnceGuard(t *testing.T) {
	cfg := &config.LLMConfig{}
	pool := NewPool(cfg)

	first := pool.alreadyAttempted("doc-1", "hash-a")
	second := pool.alreadyAttempted("doc-1", "hash-a")
	if first {
		t.Fatalf("expected first attempt to report unseen")
	}
	if !second {
		t.Fatalf("expected second attempt on the same fingerprint to report seen")
	}
}
