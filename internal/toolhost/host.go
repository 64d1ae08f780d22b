// Package toolhost is the MCP server that owns and executes the agent's tools.
// It runs as a subprocess ("searchchat toolhost") speaking MCP over stdio.
package toolhost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clawplaza/searchchat/internal/search"
)

// ServerName is the MCP implementation name advertised during initialize.
const ServerName = "searchchat-tools"

// Tool is a callable function exposed over MCP.
type Tool interface {
	// Def returns the tool's name, description and input schema.
	Def() *mcpsdk.Tool
	// Call executes the tool with the raw JSON arguments. On failure the
	// returned text is the message reported back to the caller.
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// Host registers tools on an MCP server.
type Host struct {
	server *mcpsdk.Server
	tools  []Tool
}

// New creates a host serving the given tools.
func New(version string, tools ...Tool) *Host {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: version}, nil)
	h := &Host{server: server, tools: tools}
	for _, t := range tools {
		server.AddTool(t.Def(), h.handler(t))
	}
	return h
}

// Defaults returns the built-in tool set backed by searcher.
func Defaults(searcher search.Searcher, maxResults int) []Tool {
	return []Tool{
		NewWebSearchTool(searcher, maxResults),
		NewFetchPageTool(),
	}
}

// Server exposes the underlying MCP server, e.g. for in-memory transports.
func (h *Host) Server() *mcpsdk.Server { return h.server }

// Run serves MCP on stdin/stdout until the client disconnects or ctx ends.
func (h *Host) Run(ctx context.Context) error {
	slog.Info("tool host serving on stdio", "tools", len(h.tools))
	return h.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// handler adapts a Tool to the MCP handler signature. Failures and panics are
// reported as text content so the caller always receives a result.
func (h *Host) handler(t Tool) mcpsdk.ToolHandler {
	name := t.Def().Name
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (res *mcpsdk.CallToolResult, _ error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("tool panicked", "tool", name, "panic", r)
				res = textResult(fmt.Sprintf("工具执行失败: %v", r), true)
			}
		}()

		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		text, err := t.Call(ctx, args)
		if err != nil {
			slog.Warn("tool failed", "tool", name, "error", err)
			return textResult(text, true), nil
		}
		return textResult(text, false), nil
	}
}

func textResult(text string, isError bool) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		IsError: isError,
	}
}

// objectSchema builds a JSON Schema object with string properties.
func objectSchema(required []string, props map[string]string) map[string]any {
	properties := make(map[string]any, len(props))
	for name, desc := range props {
		properties[name] = map[string]any{"type": "string", "description": desc}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
