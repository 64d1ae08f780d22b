// Package search queries the DuckDuckGo HTML endpoint and extracts results.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the JavaScript-free DuckDuckGo results page.
	DefaultEndpoint = "https://html.duckduckgo.com/html/"

	requestTimeout = 20 * time.Second
	maxPageSize    = 2 * 1024 * 1024
	userAgent      = "Mozilla/5.0 (compatible; searchchat/1.0)"
)

// Result is a single search hit.
type Result struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// Searcher runs a text search. Implementations return at most limit results;
// zero results with a nil error means the provider found nothing.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// DuckDuckGo scrapes html.duckduckgo.com.
type DuckDuckGo struct {
	endpoint string
	region   string
	client   *http.Client
}

// NewDuckDuckGo creates a searcher. An empty endpoint means DefaultEndpoint;
// region is a DuckDuckGo "kl" value such as "wt-wt" or "cn-zh" (optional).
func NewDuckDuckGo(endpoint, region string) *DuckDuckGo {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &DuckDuckGo{
		endpoint: endpoint,
		region:   region,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	form := url.Values{"q": {query}}
	if d.region != "" {
		form.Set("kl", d.region)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// DuckDuckGo answers rate-limited clients with 202 and an empty page.
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %d", resp.StatusCode)
	}

	results, err := ParseResults(body)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Format renders results the way the web_search tool reports them:
// one "Title/Link/Body" block per result, newline-joined.
func Format(results []Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("Title: %s\nLink: %s\nBody: %s", r.Title, r.Href, r.Body)
	}
	return strings.Join(blocks, "\n")
}
