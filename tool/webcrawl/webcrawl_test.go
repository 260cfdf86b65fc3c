package webcrawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/tool"
)

const page = `<!doctype html>
<html>
<head>
  <title>Go Generics</title>
  <meta name="description" content="An introduction">
  <script>var tracking = true;</script>
</head>
<body>
  <nav><a href="/">Home</a></nav>
  <article>
    <h1>Type parameters</h1>
    <p>Read the <a href="/doc/tutorial">tutorial</a> for details.</p>
  </article>
  <footer>Copyright</footer>
</body>
</html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
}

func TestCrawl(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c := NewCrawler()

	p, err := c.Crawl(context.Background(), srv.URL+"/generics", false)
	require.NoError(t, err)
	assert.Equal(t, "Go Generics", p.Title)
	assert.Equal(t, "An introduction", p.Description)
	assert.Contains(t, p.Content, "# Type parameters")
	assert.Contains(t, p.Content, "Read the tutorial for details.")
	assert.NotContains(t, p.Content, "Home")
	assert.NotContains(t, p.Content, "Copyright")
	assert.NotContains(t, p.Content, "tracking")

	withLinks, err := c.Crawl(context.Background(), srv.URL+"/generics", true)
	require.NoError(t, err)
	assert.Contains(t, withLinks.Content, "[tutorial](")
}

func TestCrawl_Truncates(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c := NewCrawler(func(o *Options) { o.MaxChars = 10 })
	p, err := c.Crawl(context.Background(), srv.URL, false)
	require.NoError(t, err)
	assert.True(t, p.Truncated)
	assert.Len(t, p.Content, 10)
}

func TestCrawl_Errors(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	c := NewCrawler()

	_, err := c.Crawl(context.Background(), "ftp://example.com", false)
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)

	_, err = c.Crawl(context.Background(), srv.URL+"/missing", false)
	assert.Error(t, err)
}

func TestTool(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	tl := New()
	tc := core.NewToolContext(context.Background(), "run", "Crawler", "fc", logging.NoOpLogger{})
	res, err := tl.Call(tc, map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "Go Generics", res.(*Page).Title)
}
