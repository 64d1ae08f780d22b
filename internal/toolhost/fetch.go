package toolhost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clawplaza/searchchat/internal/search"
)

const (
	fetchTimeout = 20 * time.Second
	maxFetchSize = 512 * 1024 // 512 KB
	maxFetchText = 16 * 1024
)

// FetchPageTool downloads a page and returns its visible text.
type FetchPageTool struct {
	client *http.Client
}

// NewFetchPageTool creates the fetch_page tool with a 20-second timeout.
func NewFetchPageTool() *FetchPageTool {
	return &FetchPageTool{client: &http.Client{Timeout: fetchTimeout}}
}

func (t *FetchPageTool) Def() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "fetch_page",
		Description: "HTTP GET a web page (e.g. a link from web_search) and return its readable text. Max 512KB download.",
		InputSchema: objectSchema([]string{"url"}, map[string]string{
			"url": "Full URL (http:// or https://)",
		}),
	}
}

type fetchPageArgs struct {
	URL string `json:"url"`
}

func (t *FetchPageTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var a fetchPageArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return fmt.Sprintf("error: invalid arguments: %v", err), err
		}
	}
	if !strings.HasPrefix(a.URL, "http://") && !strings.HasPrefix(a.URL, "https://") {
		err := fmt.Errorf("URL must start with http:// or https://")
		return "error: " + err.Error(), err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", a.URL, nil)
	if err != nil {
		return fmt.Sprintf("error: build request: %v", err), err
	}
	req.Header.Set("User-Agent", "searchchat/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("error: request failed: %v", err), err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return fmt.Sprintf("error: read response: %v", err), err
	}

	text := string(body)
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		text = search.HTMLToText(body)
	}
	if runes := []rune(text); len(runes) > maxFetchText {
		text = string(runes[:maxFetchText]) + "\n\n[truncated]"
	}
	return fmt.Sprintf("HTTP %d\n\n%s", resp.StatusCode, text), nil
}
