package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/manthysbr/localagent/internal/core/domain"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"
	googleEndpoint     = "https://www.google.com/search"
)

// snippetClasses lists the CSS classes whose text is taken as a result snippet.
var snippetClasses = map[string][]string{
	"duckduckgo": {"result__snippet"},
	"google":     {"BNeawe", "vvjwJb", "AP7Wnd"},
}

// WebSearchOptions configures the web_search tool.
type WebSearchOptions struct {
	Engine     string // "duckduckgo" or "google"
	Endpoint   string // overrides the engine's default URL
	MaxResults int
	Timeout    time.Duration
	RatePerSec float64 // <= 0 disables throttling
	UserAgent  string
}

// NewWebSearchTool creates the web_search tool. Each call issues exactly one
// GET to the search back end and scrapes result snippets from the HTML.
func NewWebSearchTool(opts WebSearchOptions) *domain.Tool {
	if opts.Engine == "" {
		opts.Engine = "duckduckgo"
	}
	if opts.Endpoint == "" {
		opts.Endpoint = duckDuckGoEndpoint
		if opts.Engine == "google" {
			opts.Endpoint = googleEndpoint
		}
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	client := &http.Client{Timeout: opts.Timeout}

	return &domain.Tool{
		Name: "web_search",
		Description: "Useful for searching the web for current information. " +
			"Input should be a search query.",
		ExecutionType: domain.ExecNative,
		Execute: func(ctx context.Context, input string) (string, error) {
			query := strings.TrimSpace(input)
			if query == "" {
				return "", fmt.Errorf("a search query is required")
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return "", fmt.Errorf("Error performing web search: %w", err)
				}
			}
			return search(ctx, client, opts, query)
		},
	}
}

func search(ctx context.Context, client *http.Client, opts WebSearchOptions, query string) (string, error) {
	reqURL := opts.Endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("Error performing web search: %w", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Error performing web search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Error: Received status code %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("Error performing web search: %w", err)
	}

	results := extractSnippets(doc, snippetClasses[opts.Engine], opts.MaxResults)
	if len(results) == 0 {
		return "No results found.", nil
	}
	return strings.Join(results, "\n"), nil
}

// extractSnippets walks the document in order and collects the trimmed text
// of elements carrying any of the given classes, up to limit. Nested matches
// inside an already-collected element are not collected twice.
func extractSnippets(doc *html.Node, classes []string, limit int) []string {
	var results []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode && hasAnyClass(n, classes) {
			if text := collapseSpace(nodeText(n)); text != "" {
				results = append(results, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func hasAnyClass(n *html.Node, classes []string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, have := range strings.Fields(attr.Val) {
			for _, want := range classes {
				if have == want {
					return true
				}
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
