package toolhost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clawplaza/searchchat/internal/search"
)

// NoResults is returned by web_search when the provider finds nothing.
const NoResults = "未找到结果"

// WebSearchTool searches the web and returns up to maxResults summaries.
type WebSearchTool struct {
	searcher   search.Searcher
	maxResults int
}

// NewWebSearchTool creates the web_search tool.
func NewWebSearchTool(searcher search.Searcher, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &WebSearchTool{searcher: searcher, maxResults: maxResults}
}

func (t *WebSearchTool) Def() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "web_search",
		Description: fmt.Sprintf("Search the web for a query. Returns up to %d results with title, link and snippet.", t.maxResults),
		InputSchema: objectSchema([]string{"query"}, map[string]string{
			"query": "Search keywords",
		}),
	}
}

type webSearchArgs struct {
	Query string `json:"query"`
}

func (t *WebSearchTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var a webSearchArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return fmt.Sprintf("搜索失败: invalid arguments: %v", err), err
		}
	}
	a.Query = strings.TrimSpace(a.Query)
	if a.Query == "" {
		err := fmt.Errorf("query is required")
		return "搜索失败: " + err.Error(), err
	}

	slog.Info("searching", "query", a.Query)
	results, err := t.searcher.Search(ctx, a.Query, t.maxResults)
	if err != nil {
		return fmt.Sprintf("搜索失败: %v", err), err
	}
	if len(results) == 0 {
		return NoResults, nil
	}
	if len(results) > t.maxResults {
		results = results[:t.maxResults]
	}
	return search.Format(results), nil
}
