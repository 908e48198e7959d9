// Package metrics holds simple in-memory Prometheus-style counters
// for HTTP requests, crawl/ingestion jobs, LLM enrichment, and search.
// This is intentionally minimal and process-local rather than pulling
// in a full client_golang registry for counters this small.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	jobsTotal     = make(map[jobKey]int64)
	pagesCrawled  int64
	snippetsTotal int64

	llmEnrichTotal = make(map[llmKey]int64)

	searchRequestsTotal  = make(map[searchKey]int64)
	searchResultsTotal   = make(map[string]int64)
	fallbackSearchesUsed int64

	retentionJobsDeleted int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type jobKey struct {
	Kind   string
	Status string
}

type llmKey struct {
	Provider string
	Success  string
}

type searchKey struct {
	Mode string
}

// RecordRequest increments the request counter and records latency for
// one HTTP handler invocation.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	requestsTotal[reqKey{Method: method, Path: path, Status: status}]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordJobCompletion increments the counter for one finished job by
// kind (crawl/upload) and terminal status (completed/failed/cancelled).
func RecordJobCompletion(kind, status string) {
	mu.Lock()
	defer mu.Unlock()
	jobsTotal[jobKey{Kind: kind, Status: status}]++
}

// RecordPagesCrawled adds to the running total of pages fetched.
func RecordPagesCrawled(n int64) {
	if n <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	pagesCrawled += n
}

// RecordSnippetsExtracted adds to the running total of snippets
// persisted across all jobs.
func RecordSnippetsExtracted(n int64) {
	if n <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	snippetsTotal += n
}

// RecordLLMEnrich increments the enrichment counter for one snippet,
// keyed by provider and whether enrichment succeeded.
func RecordLLMEnrich(provider string, success bool) {
	mu.Lock()
	defer mu.Unlock()
	s := "false"
	if success {
		s = "true"
	}
	llmEnrichTotal[llmKey{Provider: provider, Success: s}]++
}

// RecordSearch increments the search request counter for a mode
// (code/enhanced) and records whether the markdown fallback stage ran.
func RecordSearch(mode string, usedFallback bool) {
	mu.Lock()
	defer mu.Unlock()
	searchRequestsTotal[searchKey{Mode: mode}]++
	if usedFallback {
		fallbackSearchesUsed++
	}
}

// RecordSearchResults adds to the running total of results returned.
func RecordSearchResults(n int) {
	if n <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	searchResultsTotal["total"] += int64(n)
}

// RecordRetentionDeleted adds to the running total of jobs removed by
// the TTL cleanup sweep.
func RecordRetentionDeleted(n int64) {
	if n <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeleted += n
}

// Export renders all counters in Prometheus text exposition format.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP codeindex_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE codeindex_http_requests_total counter\n")
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})
	for _, k := range reqKeys {
		fmt.Fprintf(&b, "codeindex_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP codeindex_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE codeindex_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP codeindex_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE codeindex_http_request_duration_ms_count counter\n")
	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})
	for _, k := range latKeys {
		fmt.Fprintf(&b, "codeindex_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "codeindex_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP codeindex_jobs_total Total finished jobs by kind and status\n")
	b.WriteString("# TYPE codeindex_jobs_total counter\n")
	var jobKeys []jobKey
	for k := range jobsTotal {
		jobKeys = append(jobKeys, k)
	}
	sort.Slice(jobKeys, func(i, j int) bool {
		if jobKeys[i].Kind != jobKeys[j].Kind {
			return jobKeys[i].Kind < jobKeys[j].Kind
		}
		return jobKeys[i].Status < jobKeys[j].Status
	})
	for _, k := range jobKeys {
		fmt.Fprintf(&b, "codeindex_jobs_total{kind=\"%s\",status=\"%s\"} %d\n", k.Kind, k.Status, jobsTotal[k])
	}

	fmt.Fprintf(&b, "# HELP codeindex_pages_crawled_total Total pages fetched across all crawl jobs\n")
	fmt.Fprintf(&b, "# TYPE codeindex_pages_crawled_total counter\n")
	fmt.Fprintf(&b, "codeindex_pages_crawled_total %d\n", pagesCrawled)

	fmt.Fprintf(&b, "# HELP codeindex_snippets_total Total snippets persisted across all jobs\n")
	fmt.Fprintf(&b, "# TYPE codeindex_snippets_total counter\n")
	fmt.Fprintf(&b, "codeindex_snippets_total %d\n", snippetsTotal)

	b.WriteString("# HELP codeindex_llm_enrich_total Total LLM enrichment attempts by provider and outcome\n")
	b.WriteString("# TYPE codeindex_llm_enrich_total counter\n")
	var llmKeys []llmKey
	for k := range llmEnrichTotal {
		llmKeys = append(llmKeys, k)
	}
	sort.Slice(llmKeys, func(i, j int) bool {
		if llmKeys[i].Provider != llmKeys[j].Provider {
			return llmKeys[i].Provider < llmKeys[j].Provider
		}
		return llmKeys[i].Success < llmKeys[j].Success
	})
	for _, k := range llmKeys {
		fmt.Fprintf(&b, "codeindex_llm_enrich_total{provider=\"%s\",success=\"%s\"} %d\n", k.Provider, k.Success, llmEnrichTotal[k])
	}

	b.WriteString("# HELP codeindex_search_requests_total Total search requests by mode\n")
	b.WriteString("# TYPE codeindex_search_requests_total counter\n")
	var searchKeys []searchKey
	for k := range searchRequestsTotal {
		searchKeys = append(searchKeys, k)
	}
	sort.Slice(searchKeys, func(i, j int) bool { return searchKeys[i].Mode < searchKeys[j].Mode })
	for _, k := range searchKeys {
		fmt.Fprintf(&b, "codeindex_search_requests_total{mode=\"%s\"} %d\n", k.Mode, searchRequestsTotal[k])
	}

	fmt.Fprintf(&b, "# HELP codeindex_search_fallback_total Total search requests that ran the markdown fallback stage\n")
	fmt.Fprintf(&b, "# TYPE codeindex_search_fallback_total counter\n")
	fmt.Fprintf(&b, "codeindex_search_fallback_total %d\n", fallbackSearchesUsed)

	fmt.Fprintf(&b, "# HELP codeindex_search_results_total Total results returned across all searches\n")
	fmt.Fprintf(&b, "# TYPE codeindex_search_results_total counter\n")
	fmt.Fprintf(&b, "codeindex_search_results_total %d\n", searchResultsTotal["total"])

	fmt.Fprintf(&b, "# HELP codeindex_retention_jobs_deleted_total Total jobs deleted by the retention sweep\n")
	fmt.Fprintf(&b, "# TYPE codeindex_retention_jobs_deleted_total counter\n")
	fmt.Fprintf(&b, "codeindex_retention_jobs_deleted_total %d\n", retentionJobsDeleted)

	return b.String()
}
