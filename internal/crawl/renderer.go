package crawl

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Page is one rendered page: its markdown body, every same-document
// link discovered on it, and the title used for the document row.
type Page struct {
	URL      string
	Title    string
	Markdown string
	Links    []string
	Status   int
}

// Renderer turns one URL into a Page. Two implementations exist: a
// plain HTTP+goquery fetch for static sites, and a go-rod headless
// browser render for pages that require JavaScript execution.
type Renderer interface {
	Render(ctx context.Context, pageURL string, userAgent string) (*Page, error)
}

// HTTPRenderer fetches pages with net/http and converts their body to
// Markdown via html-to-markdown, extracting links with goquery.
type HTTPRenderer struct {
	client *http.Client
}

// NewHTTPRenderer builds an HTTPRenderer with the given per-request timeout.
func NewHTTPRenderer(timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{client: &http.Client{Timeout: timeout}}
}

func (r *HTTPRenderer) Render(ctx context.Context, pageURL string, userAgent string) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	htmlStr, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("serialize html: %w", err)
	}

	converter := htmlmd.NewConverter(u.Hostname(), true, nil)
	markdown, err := converter.ConvertString(htmlStr)
	if err != nil {
		markdown = doc.Text()
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	links := extractLinks(doc, u)

	return &Page{
		URL:      u.String(),
		Title:    title,
		Markdown: markdown,
		Links:    links,
		Status:   resp.StatusCode,
	}, nil
}

func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		if !linkURL.IsAbs() {
			linkURL = base.ResolveReference(linkURL)
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return
		}
		linkURL.Fragment = ""
		final := linkURL.String()
		if _, dup := seen[final]; dup {
			return
		}
		seen[final] = struct{}{}
		links = append(links, final)
	})
	return links
}

// RodRenderer drives a local headless Chromium via go-rod for pages
// whose content only exists after JavaScript execution.
type RodRenderer struct {
	Timeout time.Duration
}

// NewRodRenderer builds a RodRenderer that launches a local browser
// per render call.
func NewRodRenderer(timeout time.Duration) *RodRenderer {
	return &RodRenderer{Timeout: timeout}
}

func (r *RodRenderer) Render(ctx context.Context, pageURL string, userAgent string) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	browser, err := launchLocalBrowser(ctx, r.Timeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: u.String()})
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return nil, err
	}

	htmlStr, err := page.HTML()
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(htmlStr)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	converter := htmlmd.NewConverter(u.Hostname(), true, nil)
	markdown, err := converter.ConvertString(htmlStr)
	if err != nil {
		markdown = doc.Text()
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	links := extractLinks(doc, u)

	return &Page{
		URL:      u.String(),
		Title:    title,
		Markdown: markdown,
		Links:    links,
		Status:   200,
	}, nil
}

func launchLocalBrowser(ctx context.Context, timeout time.Duration) (*rod.Browser, error) {
	var l *launcher.Launcher
	if path, has := launcher.LookPath(); has {
		l = launcher.New().Bin(path)
	} else {
		l = launcher.New()
	}
	l = l.Headless(true).NoSandbox(true)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx).Timeout(timeout)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}
	return browser, nil
}
