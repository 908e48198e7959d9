// Package snippet extracts code blocks from Markdown and HTML
// documents. Extraction is pure and deterministic: no network or
// database access, so the same document always yields the same
// snippets in the same order.
package snippet

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"codeindex/internal/model"
)

// Options controls extraction thresholds shared by both parsers.
type Options struct {
	MinLength    int // minimum trimmed code length to keep a block
	ContextLines int // lines of surrounding prose captured before/after
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{MinLength: 20, ContextLines: 3}
}

// Block is one extracted code block, document order preserved.
type Block struct {
	Language       string
	Code           string
	LineStart      *int
	LineEnd        *int
	SectionTitle   string
	SectionContent string
	ContextBefore  string
	ContextAfter   string
	SnippetType    model.SnippetType
}

// ParseMarkdown walks a goldmark AST, collecting fenced code blocks.
// Each block records the nearest preceding heading as its section and
// up to ContextLines lines of the prose before it as context.
func ParseMarkdown(source []byte, opts Options) []Block {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var blocks []Block
	var currentHeading string
	var currentHeadingBody strings.Builder
	var proseLines []string

	flushHeadingBody := func() {
		currentHeadingBody.Reset()
	}

	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Heading:
				flushHeadingBody()
				currentHeading = textOf(node, source)
			case *ast.FencedCodeBlock:
				var buf bytes.Buffer
				for i := 0; i < node.Lines().Len(); i++ {
					seg := node.Lines().At(i)
					buf.Write(seg.Value(source))
				}
				code := buf.String()
				if len(strings.TrimSpace(code)) < opts.MinLength {
					continue
				}
				lang := string(node.Language(source))

				lineStart, lineEnd := lineRangeFromSegment(source, node)

				before := strings.Join(lastN(proseLines, opts.ContextLines), "\n")

				blocks = append(blocks, Block{
					Language:       lang,
					Code:           code,
					LineStart:      lineStart,
					LineEnd:        lineEnd,
					SectionTitle:   currentHeading,
					SectionContent: strings.TrimSpace(currentHeadingBody.String()),
					ContextBefore:  before,
					SnippetType:    classify(code, lang),
				})
			case *ast.Paragraph:
				txt := textOf(node, source)
				currentHeadingBody.WriteString(txt)
				currentHeadingBody.WriteString("\n")
				proseLines = append(proseLines, strings.Split(txt, "\n")...)
			default:
				walk(c)
			}
		}
	}
	walk(doc)

	// ContextAfter is left blank: only the prose before a block is
	// captured as context, and no later stage fills ContextAfter in.
	return blocks
}

// textOf concatenates the raw text segments under an inline-bearing
// node, since goldmark does not expose a single Text() accessor that
// works uniformly across node kinds.
func textOf(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// lineRangeFromSegment derives 1-based [start,end] line numbers for a
// fenced code block from its byte-offset text segments.
func lineRangeFromSegment(source []byte, node *ast.FencedCodeBlock) (*int, *int) {
	lines := node.Lines()
	if lines.Len() == 0 {
		return nil, nil
	}
	first := lines.At(0)
	last := lines.At(lines.Len() - 1)

	startLine := 1 + bytes.Count(source[:first.Start], []byte("\n"))
	endLine := 1 + bytes.Count(source[:last.Stop], []byte("\n"))
	return &startLine, &endLine
}

func lastN(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// classify makes a best-effort deterministic guess at a snippet's
// role from simple lexical signals, refined later by enrichment.
func classify(code, lang string) model.SnippetType {
	trimmed := strings.TrimSpace(code)
	switch strings.ToLower(lang) {
	case "yaml", "yml", "toml", "ini", "json", "env", "dotenv":
		return model.SnippetTypeConfig
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "class "), strings.Contains(lower, "\nclass "):
		return model.SnippetTypeClass
	case strings.HasPrefix(lower, "func "), strings.HasPrefix(lower, "def "),
		strings.HasPrefix(lower, "function "), strings.Contains(lower, "\nfunc "):
		return model.SnippetTypeFunction
	default:
		return model.SnippetTypeExample
	}
}

// ParseHTML walks an HTML document's <pre><code> blocks via goquery,
// using the nearest preceding heading as the section title and the
// element's class="language-*" attribute for the language, falling
// back to the bare class name.
func ParseHTML(source []byte, opts Options) ([]Block, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var blocks []Block
	currentHeading := ""

	doc.Find("h1, h2, h3, h4, h5, h6, pre code, pre").Each(func(_ int, sel *goquery.Selection) {
		tag := goquery.NodeName(sel)
		switch tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			currentHeading = strings.TrimSpace(sel.Text())
		case "code":
			if sel.Parent().Is("pre") {
				// handled via the "pre" branch below to avoid double counting
				return
			}
		case "pre":
			codeSel := sel.Find("code").First()
			target := sel
			class, _ := sel.Attr("class")
			if codeSel.Length() > 0 {
				target = codeSel
				if c, ok := codeSel.Attr("class"); ok {
					class = c
				}
			}
			raw := html.UnescapeString(target.Text())
			if len(strings.TrimSpace(raw)) < opts.MinLength {
				return
			}
			blocks = append(blocks, Block{
				Language:     languageFromClass(class),
				Code:         raw,
				SectionTitle: currentHeading,
				SnippetType:  classify(raw, languageFromClass(class)),
			})
		}
	})

	return blocks, nil
}

// languageFromClass extracts "go" from "language-go" or "lang-go",
// falling back to the raw class string.
func languageFromClass(class string) string {
	for _, token := range strings.Fields(class) {
		switch {
		case strings.HasPrefix(token, "language-"):
			return strings.TrimPrefix(token, "language-")
		case strings.HasPrefix(token, "lang-"):
			return strings.TrimPrefix(token, "lang-")
		}
	}
	return strings.TrimSpace(class)
}
