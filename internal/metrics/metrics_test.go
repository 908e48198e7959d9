package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	RecordRequest("GET", "/api/search", 200, 42)

	out := Export()
	if !strings.Contains(out, "codeindex_http_requests_total{method=\"GET\",path=\"/api/search\",status=\"200\"}") {
		t.Fatalf("expected HTTP request metric for GET /api/search in export, got:\n%s", out)
	}
	if !strings.Contains(out, "codeindex_http_request_duration_ms_sum") || !strings.Contains(out, "codeindex_http_request_duration_ms_count") {
		t.Fatalf("expected latency metric headers in export, got:\n%s", out)
	}
}

func TestRecordJobCompletion(t *testing.T) {
	RecordJobCompletion("crawl", "completed")
	RecordJobCompletion("upload", "failed")

	out := Export()
	if !strings.Contains(out, "codeindex_jobs_total{kind=\"crawl\",status=\"completed\"}") {
		t.Fatalf("expected jobs_total for crawl/completed, got:\n%s", out)
	}
	if !strings.Contains(out, "codeindex_jobs_total{kind=\"upload\",status=\"failed\"}") {
		t.Fatalf("expected jobs_total for upload/failed, got:\n%s", out)
	}
}

func TestRecordSearchMetrics(t *testing.T) {
	RecordSearch("code", false)
	RecordSearch("enhanced", true)
	RecordSearchResults(5)

	out := Export()
	if !strings.Contains(out, "codeindex_search_requests_total{mode=\"code\"}") {
		t.Fatalf("expected search_requests_total for mode=code, got:\n%s", out)
	}
	if !strings.Contains(out, "codeindex_search_requests_total{mode=\"enhanced\"}") {
		t.Fatalf("expected search_requests_total for mode=enhanced, got:\n%s", out)
	}
	if !strings.Contains(out, "codeindex_search_fallback_total") {
		t.Fatalf("expected search_fallback_total in export, got:\n%s", out)
	}
}

func TestRecordLLMEnrich(t *testing.T) {
	RecordLLMEnrich("openai", true)
	RecordLLMEnrich("openai", false)

	out := Export()
	if !strings.Contains(out, "codeindex_llm_enrich_total{provider=\"openai\",success=\"true\"}") {
		t.Fatalf("expected llm_enrich_total success metric, got:\n%s", out)
	}
	if !strings.Contains(out, "codeindex_llm_enrich_total{provider=\"openai\",success=\"false\"}") {
		t.Fatalf("expected llm_enrich_total failure metric, got:\n%s", out)
	}
}

func TestZeroAndNegativeCountsAreNoops(t *testing.T) {
	before := Export()
	RecordPagesCrawled(0)
	RecordSnippetsExtracted(-1)
	RecordRetentionDeleted(0)
	after := Export()

	if before != after {
		t.Fatalf("expected no-op recordings to leave export unchanged")
	}
}
