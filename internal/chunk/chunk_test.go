package chunk

import (
	"strings"
	"testing"
)

func TestSplitNoLimitReturnsWholeBody(t *testing.T) {
	body := strings.Repeat("x", 10000)
	r := Split(body, 0, 0)
	if r.Text != body || r.TotalChunks != 1 {
		t.Fatalf("expected single whole-body chunk, got totalChunks=%d len=%d", r.TotalChunks, len(r.Text))
	}
}

func TestSplitProducesMultipleChunksForLongBody(t *testing.T) {
	body := strings.Repeat("a", 5000)
	r := Split(body, 100, 0) // 100 tokens ~= 400 chars per chunk
	if r.TotalChunks <= 1 {
		t.Fatalf("expected multiple chunks, got %d", r.TotalChunks)
	}
	if r.ChunkIndex != 0 {
		t.Fatalf("expected chunk 0, got %d", r.ChunkIndex)
	}
}

func TestSplitOutOfRangeIndexClamps(t *testing.T) {
	body := strings.Repeat("a", 5000)
	r := Split(body, 100, 9999)
	if !r.Truncated {
		t.Fatal("expected Truncated to be true for out-of-range index")
	}
	if r.ChunkIndex != r.TotalChunks-1 {
		t.Fatalf("expected clamped index to last chunk, got %d of %d", r.ChunkIndex, r.TotalChunks)
	}
}

func TestSplitAdjacentChunksOverlap(t *testing.T) {
	body := strings.Repeat("0123456789", 500)
	first := Split(body, 50, 0)
	second := Split(body, 50, 1)

	if first.TotalChunks < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", first.TotalChunks)
	}

	tail := first.Text[len(first.Text)-overlapChars/2:]
	if !strings.Contains(second.Text, tail) {
		t.Fatalf("expected chunk 1 to overlap with the tail of chunk 0")
	}
}

func TestExcerptFindsAndHighlightsQuery(t *testing.T) {
	body := "the quick brown fox jumps over the lazy dog"
	excerpt, ok := Excerpt(body, "brown fox", 10)
	if !ok {
		t.Fatal("expected query to be found")
	}
	if !strings.Contains(excerpt, "**brown fox**") {
		t.Fatalf("expected highlighted match in excerpt, got %q", excerpt)
	}
}

func TestExcerptCaseInsensitive(t *testing.T) {
	body := "The Quick Brown Fox"
	_, ok := Excerpt(body, "quick brown", 5)
	if !ok {
		t.Fatal("expected case-insensitive match")
	}
}

func TestExcerptNotFoundReturnsFalse(t *testing.T) {
	_, ok := Excerpt("hello world", "missing", 10)
	if ok {
		t.Fatal("expected not-found query to return false")
	}
}

func TestExcerptEmptyQueryReturnsFalse(t *testing.T) {
	_, ok := Excerpt("hello world", "", 10)
	if ok {
		t.Fatal("expected empty query to return false")
	}
}
