// Package websearch provides a web search tool backed by the Google Custom
// Search JSON API.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

// Name is the tool name exposed to models.
const Name = "web_search"

// DefaultEndpoint is the Custom Search JSON API endpoint.
const DefaultEndpoint = "https://www.googleapis.com/customsearch/v1"

// Options configure the search tool.
type Options struct {
	APIKey     string // falls back to GOOGLE_API_KEY
	EngineID   string // falls back to GOOGLE_CSE_ID
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
}

// Args are the arguments accepted by the tool.
type Args struct {
	Query      string `json:"query" description:"Search terms"`
	MaxResults int    `json:"max_results,omitempty" description:"Number of results to return (1-10)"`
}

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Searcher performs Custom Search queries.
type Searcher struct {
	opts Options
}

// NewSearcher creates a Searcher.
func NewSearcher(optFns ...func(o *Options)) *Searcher {
	opts := Options{
		APIKey:     os.Getenv("GOOGLE_API_KEY"),
		EngineID:   os.Getenv("GOOGLE_CSE_ID"),
		Endpoint:   DefaultEndpoint,
		MaxResults: 5,
		HTTPClient: http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Searcher{opts: opts}
}

// New returns the web_search tool.
func New(optFns ...func(o *Options)) tool.Tool {
	s := NewSearcher(optFns...)
	return tool.NewTypedTool(Name,
		"Search the web for up-to-date information. Returns titles, URLs and snippets.",
		func(tc *core.ToolContext, args Args) (any, error) {
			return s.Search(tc.Context(), args.Query, args.MaxResults)
		})
}

// Search runs query and returns up to limit results (the configured default when limit <= 0).
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.opts.APIKey == "" || s.opts.EngineID == "" {
		return nil, tool.NewToolError(Name, "search credentials are not configured", tool.CodeExecution)
	}
	if limit <= 0 {
		limit = s.opts.MaxResults
	}
	if limit > 10 {
		limit = 10
	}

	values := url.Values{}
	values.Set("key", s.opts.APIKey)
	values.Set("cx", s.opts.EngineID)
	values.Set("q", query)
	values.Set("num", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.Endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying search engine: %w", err)
	}
	defer resp.Body.Close()

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if body.Error != nil {
			msg = body.Error.Message
		}
		return nil, fmt.Errorf("non-200 response from search engine: %d %s", resp.StatusCode, msg)
	}

	results := make([]Result, 0, len(body.Items))
	for _, item := range body.Items {
		results = append(results, Result{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}

	return results, nil
}
