// Package mcpclient holds the long-lived MCP session to the tool host
// subprocess and adapts it to the chat.ToolHost interface.
package mcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clawplaza/searchchat/internal/chat"
)

// ClientName is the MCP implementation name sent during initialize.
const ClientName = "searchchat"

// Client is a single MCP session shared by all chat requests.
// Calls are serialized; the stdio transport carries one request at a time.
type Client struct {
	mu      sync.Mutex
	session *mcpsdk.ClientSession
}

// Connect performs the MCP handshake over transport.
func Connect(ctx context.Context, transport mcpsdk.Transport, version string) (*Client, error) {
	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: ClientName, Version: version}, nil)
	session, err := impl.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect tool host: %w", err)
	}
	return &Client{session: session}, nil
}

// Spawn starts command as a subprocess and connects to it over stdin/stdout.
// The subprocess inherits the environment and stderr; it is terminated by Close.
func Spawn(ctx context.Context, command string, args []string, version string) (*Client, error) {
	if command == "" {
		return nil, fmt.Errorf("tool host command is empty")
	}
	// #nosec G204 -- command comes from local config, not request input
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	c, err := Connect(ctx, &mcpsdk.CommandTransport{Command: cmd}, version)
	if err != nil {
		return nil, err
	}
	slog.Info("connected to tool host", "command", command, "args", args)
	return c, nil
}

// ListTools fetches the tool list, following pagination.
func (c *Client) ListTools(ctx context.Context) ([]chat.ToolDescriptor, error) {
	if c == nil {
		return nil, chat.ErrToolHostUnavailable
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, chat.ErrToolHostUnavailable
	}

	var tools []chat.ToolDescriptor
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, err
		}
		tools = append(tools, toDescriptor(tool))
	}
	return tools, nil
}

// CallTool invokes a tool and returns the text of its first content item.
// Tool-level failures (IsError results) are returned as text, not errors.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if c == nil {
		return "", chat.ErrToolHostUnavailable
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return "", chat.ErrToolHostUnavailable
	}

	res, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	return firstText(res), nil
}

// Close ends the session and stops the subprocess. Safe to call twice.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func toDescriptor(t *mcpsdk.Tool) chat.ToolDescriptor {
	if t == nil {
		return chat.ToolDescriptor{}
	}
	return chat.ToolDescriptor{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schemaMap(t.InputSchema),
	}
}

// firstText returns the first content item's text, or "" when the result
// carries no text content.
func firstText(res *mcpsdk.CallToolResult) string {
	if res == nil || len(res.Content) == 0 {
		return ""
	}
	if tc, ok := res.Content[0].(*mcpsdk.TextContent); ok {
		return tc.Text
	}
	return ""
}
