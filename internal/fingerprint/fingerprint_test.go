package fingerprint

import "testing"

func TestDocumentIgnoresWhitespaceChanges(t *testing.T) {
	a := Document("# Title\n\nSome   body text.\n")
	b := Document("# Title\nSome body text.")
	if a != b {
		t.Fatalf("expected equal hashes for whitespace-only variation, got %s vs %s", a, b)
	}
}

func TestDocumentChangesOnContent(t *testing.T) {
	a := Document("content one")
	b := Document("content two")
	if a == b {
		t.Fatalf("expected different hashes for different content")
	}
}

func TestSnippetTrimsWhitespaceOnly(t *testing.T) {
	a := Snippet("print(1)\n")
	b := Snippet("  print(1)  ")
	if a != b {
		t.Fatalf("expected equal hashes after trimming, got %s vs %s", a, b)
	}
}

func TestSnippetIgnoresLanguageBySignature(t *testing.T) {
	// The hash function takes only code, not language, by design: callers
	// must not fold a language into the string they pass in.
	a := Snippet("print(1)")
	b := Snippet("print(1)")
	if a != b {
		t.Fatalf("expected identical hashes for identical code regardless of caller-side language bookkeeping")
	}
}
