package search

import (
	"testing"

	"github.com/google/uuid"

	"codeindex/internal/model"
)

func TestSearchResultOrderingPrimaryBeforeFallback(t *testing.T) {
	a := Result{SnippetID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), IsPrimary: true, Rank: 0.1}
	b := Result{SnippetID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), IsPrimary: false, Rank: 0.9}

	results := orderResults([]Result{b, a})
	if !results[0].IsPrimary {
		t.Fatalf("expected primary result first regardless of rank, got %+v", results)
	}
}

func TestSearchResultOrderingByRankWithinPrimary(t *testing.T) {
	low := Result{SnippetID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), IsPrimary: true, Rank: 0.2}
	high := Result{SnippetID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), IsPrimary: true, Rank: 0.8}

	results := orderResults([]Result{low, high})
	if results[0].Rank != 0.8 {
		t.Fatalf("expected higher rank first, got %+v", results)
	}
}

func TestSearchResultOrderingTieBreaksByID(t *testing.T) {
	first := Result{SnippetID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), IsPrimary: true, Rank: 0.5}
	second := Result{SnippetID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), IsPrimary: true, Rank: 0.5}

	results := orderResults([]Result{second, first})
	if results[0].SnippetID != first.SnippetID {
		t.Fatalf("expected lexicographically smaller id first on tie, got %+v", results)
	}
}

func TestModeConstantsMatchModel(t *testing.T) {
	if model.SearchModeCode != "code" || model.SearchModeEnhanced != "enhanced" {
		t.Fatalf("unexpected search mode constants")
	}
}
