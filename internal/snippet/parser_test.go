package snippet

import "testing"

func TestParseMarkdownExtractsFencedBlocks(t *testing.T) {
	src := []byte(`# Getting started

Install the client first.

## Usage

Call the constructor like this:

` + "```go\nfunc main() {\n\tfmt.Println(\"hello world, this is long enough\")\n}\n```" + `

That's it.
`)

	blocks := ParseMarkdown(src, DefaultOptions())
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.Language != "go" {
		t.Fatalf("expected language go, got %q", b.Language)
	}
	if b.SectionTitle != "Usage" {
		t.Fatalf("expected section title Usage, got %q", b.SectionTitle)
	}
	if b.LineStart == nil || b.LineEnd == nil {
		t.Fatalf("expected line range to be populated")
	}
	if b.SnippetType != "function" {
		t.Fatalf("expected classification function, got %q", b.SnippetType)
	}
}

func TestParseMarkdownSkipsShortBlocks(t *testing.T) {
	src := []byte("```go\nx\n```\n")
	blocks := ParseMarkdown(src, Options{MinLength: 20, ContextLines: 3})
	if len(blocks) != 0 {
		t.Fatalf("expected short block to be filtered, got %d", len(blocks))
	}
}

func TestParseHTMLExtractsPreCodeBlocks(t *testing.T) {
	src := []byte(`<html><body>
<h2>Example</h2>
<pre><code class="language-python">def greet(name):
    return "hello " + name
</code></pre>
</body></html>`)

	blocks, err := ParseHTML(src, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Language != "python" {
		t.Fatalf("expected language python, got %q", blocks[0].Language)
	}
	if blocks[0].SectionTitle != "Example" {
		t.Fatalf("expected section title Example, got %q", blocks[0].SectionTitle)
	}
}

func TestLanguageFromClassFallsBackToRawClass(t *testing.T) {
	if got := languageFromClass("highlight language-rust"); got != "rust" {
		t.Fatalf("expected rust, got %q", got)
	}
	if got := languageFromClass("plaintext"); got != "plaintext" {
		t.Fatalf("expected plaintext, got %q", got)
	}
}
