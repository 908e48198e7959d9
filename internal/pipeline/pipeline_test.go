package pipeline

import (
	"testing"

	"codeindex/internal/model"
)

func TestAdjacentRelationship_ExampleFollowsFunction(t *testing.T) {
	prev := &model.CodeSnippet{SnippetType: model.SnippetTypeFunction}
	cur := &model.CodeSnippet{SnippetType: model.SnippetTypeExample}

	rel, sourceIsPrev := adjacentRelationship(prev, cur)
	if rel != model.RelationExampleOf {
		t.Fatalf("expected %q, got %q", model.RelationExampleOf, rel)
	}
	if sourceIsPrev {
		t.Fatal("expected the example snippet to be the edge source")
	}
}

func TestAdjacentRelationship_ConfigPrecedesNonConfig(t *testing.T) {
	prev := &model.CodeSnippet{SnippetType: model.SnippetTypeConfig}
	cur := &model.CodeSnippet{SnippetType: model.SnippetTypeFunction}

	rel, sourceIsPrev := adjacentRelationship(prev, cur)
	if rel != model.RelationConfigurationF {
		t.Fatalf("expected %q, got %q", model.RelationConfigurationF, rel)
	}
	if !sourceIsPrev {
		t.Fatal("expected the config snippet to be the edge source")
	}
}

func TestAdjacentRelationship_NoRelationBetweenUnrelatedTypes(t *testing.T) {
	prev := &model.CodeSnippet{SnippetType: model.SnippetTypeCode}
	cur := &model.CodeSnippet{SnippetType: model.SnippetTypeCode}

	if rel, _ := adjacentRelationship(prev, cur); rel != "" {
		t.Fatalf("expected no relationship, got %q", rel)
	}
}

func TestOrDefaultFallsBackOnBlank(t *testing.T) {
	if got := orDefault("   ", "code"); got != "code" {
		t.Fatalf("expected fallback for blank input, got %q", got)
	}
}

func TestOrDefaultKeepsNonBlank(t *testing.T) {
	if got := orDefault("go", "code"); got != "go" {
		t.Fatalf("expected original value preserved, got %q", got)
	}
}
