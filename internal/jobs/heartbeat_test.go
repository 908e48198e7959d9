package jobs

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEverySpecFormatsCronEntry(t *testing.T) {
	got := everySpec(30 * time.Second)
	want := "@every 30s"
	if got != want {
		t.Fatalf("everySpec(30s) = %q, want %q", got, want)
	}
}

func TestCrawlJobConfigRoundTrip(t *testing.T) {
	cfg := CrawlJobConfig{
		StartURL:        "https://example.com/docs",
		MaxDepth:        3,
		MaxConcurrency:  5,
		URLPatterns:     []string{"/docs/*"},
		DomainFilter:    "example.com",
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded CrawlJobConfig
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.StartURL != cfg.StartURL || decoded.MaxDepth != cfg.MaxDepth || decoded.MaxConcurrency != cfg.MaxConcurrency {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, cfg)
	}
	if len(decoded.URLPatterns) != 1 || decoded.URLPatterns[0] != "/docs/*" {
		t.Fatalf("url patterns not preserved: %+v", decoded.URLPatterns)
	}
	if decoded.DomainFilter != cfg.DomainFilter {
		t.Fatalf("domainFilter not preserved: got %q", decoded.DomainFilter)
	}
}

func TestCrawlJobConfigMissingStartURLIsZeroValue(t *testing.T) {
	var decoded CrawlJobConfig
	if err := json.Unmarshal([]byte(`{}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.StartURL != "" {
		t.Fatalf("expected empty start url, got %q", decoded.StartURL)
	}
}
