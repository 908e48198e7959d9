package crawl

import "testing"

func TestMatchesPatternsEmptyAllowsAll(t *testing.T) {
	if !matchesPatterns("https://example.com/docs/intro", nil) {
		t.Fatalf("expected empty pattern list to allow everything")
	}
}

func TestMatchesPatternsFiltersByPath(t *testing.T) {
	if !matchesPatterns("https://example.com/docs/intro", []string{"/docs/*"}) {
		t.Fatalf("expected /docs/* to match /docs/intro")
	}
	if matchesPatterns("https://example.com/blog/post", []string{"/docs/*"}) {
		t.Fatalf("expected /docs/* to reject /blog/post")
	}
}

func TestSameScopeExactHost(t *testing.T) {
	d := &Driver{}
	if !d.sameScope("https://example.com/a", "example.com", "") {
		t.Fatalf("expected exact host match")
	}
	if d.sameScope("https://other.com/a", "example.com", "") {
		t.Fatalf("expected different host to be out of scope")
	}
}

func TestSameScopeSubdomain(t *testing.T) {
	d := &Driver{}
	if d.sameScope("https://docs.example.com/a", "example.com", "other.com") {
		t.Fatalf("expected subdomain to be rejected when the filter names another domain")
	}
	if !d.sameScope("https://docs.example.com/a", "example.com", "example.com") {
		t.Fatalf("expected subdomain to be accepted when the filter names its parent domain")
	}
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("https://example.com/docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "example.com" {
		t.Fatalf("expected example.com, got %q", host)
	}
}
