// Package webcrawl provides a tool that fetches a web page and returns its
// main content as markdown.
package webcrawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

// Name is the tool name exposed to models.
const Name = "web_crawl"

const (
	// DefaultUserAgent identifies the crawler to web servers.
	DefaultUserAgent = "Mozilla/5.0 (compatible; agentflow-crawler/1.0)"
	defaultAccept    = "text/html,application/xhtml+xml,application/xml;"
)

// Options configure the crawler.
type Options struct {
	UserAgent  string
	MaxBytes   int64 // response bytes read
	MaxChars   int   // markdown characters returned
	HTTPClient *http.Client
}

// Args are the arguments accepted by the tool.
type Args struct {
	URL          string `json:"url" description:"Absolute http(s) URL of the page"`
	IncludeLinks bool   `json:"include_links,omitempty" description:"Keep hyperlinks in the markdown output"`
}

// Page is the crawl result.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content"`
	Truncated   bool   `json:"truncated,omitempty"`
}

var (
	linkPattern      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	blankRunsPattern = regexp.MustCompile(`\n{3,}`)
)

// Crawler fetches and converts pages.
type Crawler struct {
	opts Options
}

// NewCrawler creates a Crawler.
func NewCrawler(optFns ...func(o *Options)) *Crawler {
	opts := Options{
		UserAgent:  DefaultUserAgent,
		MaxBytes:   2 << 20,
		MaxChars:   20_000,
		HTTPClient: http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Crawler{opts: opts}
}

// New returns the web_crawl tool.
func New(optFns ...func(o *Options)) tool.Tool {
	c := NewCrawler(optFns...)
	return tool.NewTypedTool(Name,
		"Fetch a web page and return its main content as markdown.",
		func(tc *core.ToolContext, args Args) (any, error) {
			return c.Crawl(tc.Context(), args.URL, args.IncludeLinks)
		})
}

// Crawl fetches rawURL and extracts its main content.
func (c *Crawler) Crawl(ctx context.Context, rawURL string, includeLinks bool) (*Page, error) {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, tool.NewToolError(Name, fmt.Sprintf("invalid url %q", rawURL), tool.CodeValidation)
	}

	doc, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	page := &Page{URL: rawURL, Title: strings.TrimSpace(doc.Find("head title").First().Text())}
	page.Description, _ = doc.Find("meta[name='description']").Attr("content")

	html := mainContent(doc)
	markdown, err := htmltomarkdown.ConvertString(html, converter.WithDomain(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)))
	if err != nil {
		return nil, fmt.Errorf("failed to convert page: %w", err)
	}

	if !includeLinks {
		markdown = linkPattern.ReplaceAllString(markdown, "$1")
	}
	markdown = strings.TrimSpace(blankRunsPattern.ReplaceAllString(markdown, "\n\n"))

	if c.opts.MaxChars > 0 && len(markdown) > c.opts.MaxChars {
		markdown = markdown[:c.opts.MaxChars]
		page.Truncated = true
	}
	page.Content = markdown

	return page, nil
}

func (c *Crawler) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", defaultAccept)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if c.opts.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, c.opts.MaxBytes)
	}

	return goquery.NewDocumentFromReader(body)
}

// mainContent strips page chrome and returns the most specific content container.
func mainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe").Remove()

	for _, selector := range []string{"article", "main", "[role='main']", "#content", ".content"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if html, err := goquery.OuterHtml(sel); err == nil && strings.TrimSpace(sel.Text()) != "" {
				return html
			}
		}
	}

	html, _ := doc.Find("body").Html()
	return html
}
