package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const duckDuckGoPage = `<!DOCTYPE html>
<html><body>
<div class="result">
  <a class="result__a" href="https://example.com/a">Title A</a>
  <a class="result__snippet" href="https://example.com/a">Go 1.25 was <b>released</b> in August.</a>
</div>
<div class="result">
  <a class="result__snippet">Second   snippet
  spans lines.</a>
</div>
<div class="result"><a class="result__snippet"><script>var x = 1;</script>Third</a></div>
</body></html>`

func searchServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSearchTool_ExtractsSnippets(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(duckDuckGoPage))
	}))
	defer srv.Close()

	tool := NewWebSearchTool(WebSearchOptions{Endpoint: srv.URL, UserAgent: "test-agent"})
	out := tool.Run(context.Background(), "  go release & notes ")

	assert.Equal(t, "Go 1.25 was released in August.\nSecond snippet spans lines.\nThird", out)
	assert.Equal(t, "go release & notes", gotQuery)
	assert.Equal(t, "test-agent", gotUA)
}

func TestWebSearchTool_MaxResults(t *testing.T) {
	srv := searchServer(t, http.StatusOK, duckDuckGoPage, nil)

	tool := NewWebSearchTool(WebSearchOptions{Endpoint: srv.URL, MaxResults: 2})
	out := tool.Run(context.Background(), "go")

	assert.Equal(t, 2, len(strings.Split(out, "\n")))
}

func TestWebSearchTool_NoResults(t *testing.T) {
	srv := searchServer(t, http.StatusOK, "<html><body><p>nothing here</p></body></html>", nil)

	out := NewWebSearchTool(WebSearchOptions{Endpoint: srv.URL}).Run(context.Background(), "zzz")
	assert.Equal(t, "No results found.", out)
}

func TestWebSearchTool_BadStatus(t *testing.T) {
	var hits atomic.Int32
	srv := searchServer(t, http.StatusInternalServerError, "oops", &hits)

	out := NewWebSearchTool(WebSearchOptions{Endpoint: srv.URL}).Run(context.Background(), "go")
	assert.Equal(t, "Error: Received status code 500", out)
	assert.Equal(t, int32(1), hits.Load(), "exactly one request per call")
}

func TestWebSearchTool_TransportError(t *testing.T) {
	srv := searchServer(t, http.StatusOK, "", nil)
	endpoint := srv.URL
	srv.Close()

	out := NewWebSearchTool(WebSearchOptions{Endpoint: endpoint}).Run(context.Background(), "go")
	assert.True(t, strings.HasPrefix(out, "Error performing web search: "), out)
}

func TestWebSearchTool_EmptyQuery(t *testing.T) {
	var hits atomic.Int32
	srv := searchServer(t, http.StatusOK, duckDuckGoPage, &hits)

	out := NewWebSearchTool(WebSearchOptions{Endpoint: srv.URL}).Run(context.Background(), "   ")
	assert.Equal(t, "Error: a search query is required", out)
	assert.Equal(t, int32(0), hits.Load())
}

func TestWebSearchTool_RateLimitHonoursContext(t *testing.T) {
	srv := searchServer(t, http.StatusOK, duckDuckGoPage, nil)
	tool := NewWebSearchTool(WebSearchOptions{Endpoint: srv.URL, RatePerSec: 0.01})

	// The first call uses the burst token.
	assert.NotContains(t, tool.Run(context.Background(), "go"), "Error")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	out := tool.Run(ctx, "go")
	assert.True(t, strings.HasPrefix(out, "Error performing web search: "), out)
}

func TestExtractSnippets_Google(t *testing.T) {
	page := `<html><body>
<div class="g"><div class="VwiC3b">ignored</div><span class="BNeawe s3v9rd AP7Wnd">Paris is the capital of France.</span></div>
<div class="vvjwJb">Second</div>
</body></html>`
	doc, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)

	got := extractSnippets(doc, snippetClasses["google"], 5)
	assert.Equal(t, []string{"Paris is the capital of France.", "Second"}, got)
}
