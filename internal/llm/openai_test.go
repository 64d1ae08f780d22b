package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawplaza/searchchat/internal/chat"
	"github.com/clawplaza/searchchat/internal/config"
)

type capturedRequest struct {
	Path   string
	Auth   string
	Body   map[string]any
	Called int
}

func fakeAPI(t *testing.T, status int, reply string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Called++
		captured.Path = r.URL.Path
		captured.Auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

const toolCallReply = `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "deepseek-chat",
  "choices": [{
    "index": 0, "finish_reason": "tool_calls",
    "message": {
      "role": "assistant", "content": null,
      "tool_calls": [
        {"id": "call_1", "type": "function", "function": {"name": "web_search", "arguments": "{\"query\":\"openai\"}"}},
        {"id": "call_2", "type": "function", "function": {"name": "fetch_page", "arguments": "{\"url\":\"https://openai.com\"}"}}
      ]
    }
  }]
}`

const textReply = `{
  "id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "deepseek-chat",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "OpenAI 是一家人工智能公司。"}}]
}`

var searchTool = chat.ToolDescriptor{
	Name:        "web_search",
	Description: "Search the web",
	InputSchema: map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []any{"query"},
	},
}

func TestCompleteParsesToolCalls(t *testing.T) {
	srv, req := fakeAPI(t, http.StatusOK, toolCallReply)
	p := NewOpenAI(srv.URL, "sk-test-key", "deepseek-chat")

	out, err := p.Complete(context.Background(), []chat.Message{
		{Role: chat.RoleSystem, Content: "sys"},
		{Role: chat.RoleUser, Content: "what is openai"},
	}, []chat.ToolDescriptor{searchTool})
	require.NoError(t, err)
	require.Equal(t, "", out.Content)
	require.Equal(t, []chat.ToolCall{
		{ID: "call_1", Name: "web_search", Arguments: `{"query":"openai"}`},
		{ID: "call_2", Name: "fetch_page", Arguments: `{"url":"https://openai.com"}`},
	}, out.ToolCalls)

	require.Equal(t, "/chat/completions", req.Path)
	require.Equal(t, "Bearer sk-test-key", req.Auth)
	require.Equal(t, "deepseek-chat", req.Body["model"])
	require.Equal(t, "auto", req.Body["tool_choice"])

	tools := req.Body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	require.Equal(t, "web_search", fn["name"])
	require.Equal(t, "Search the web", fn["description"])
	require.Equal(t, searchTool.InputSchema["properties"], fn["parameters"].(map[string]any)["properties"])
}

func TestCompleteSendsFullConversation(t *testing.T) {
	srv, req := fakeAPI(t, http.StatusOK, textReply)
	p := NewOpenAI(srv.URL, "sk-test-key", "deepseek-chat")

	out, err := p.Complete(context.Background(), []chat.Message{
		{Role: chat.RoleSystem, Content: "sys"},
		{Role: chat.RoleUser, Content: "q"},
		{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{{ID: "call_1", Name: "web_search", Arguments: `{"query":"q"}`}}},
		{Role: chat.RoleTool, ToolCallID: "call_1", Name: "web_search", Content: "result"},
	}, []chat.ToolDescriptor{searchTool})
	require.NoError(t, err)
	require.Equal(t, "OpenAI 是一家人工智能公司。", out.Content)
	require.Empty(t, out.ToolCalls)

	msgs := req.Body["messages"].([]any)
	require.Len(t, msgs, 4)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.(map[string]any)["role"].(string)
	}
	require.Equal(t, []string{"system", "user", "assistant", "tool"}, roles)

	asst := msgs[2].(map[string]any)
	calls := asst["tool_calls"].([]any)
	require.Len(t, calls, 1)
	call := calls[0].(map[string]any)
	require.Equal(t, "call_1", call["id"])
	require.Equal(t, "function", call["type"])
	require.Equal(t, `{"query":"q"}`, call["function"].(map[string]any)["arguments"])

	tool := msgs[3].(map[string]any)
	require.Equal(t, "call_1", tool["tool_call_id"])
	require.Equal(t, "result", tool["content"])
}

func TestCompleteWithoutToolsOmitsToolChoice(t *testing.T) {
	srv, req := fakeAPI(t, http.StatusOK, textReply)
	p := NewOpenAI(srv.URL, "sk-test-key", "deepseek-chat")

	_, err := p.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	require.NotContains(t, req.Body, "tools")
	require.NotContains(t, req.Body, "tool_choice")
}

func TestCompleteHTTPErrorIsNotRetried(t *testing.T) {
	srv, req := fakeAPI(t, http.StatusInternalServerError, `{"error":{"message":"overloaded","type":"server_error"}}`)
	p := NewOpenAI(srv.URL, "sk-test-key", "deepseek-chat")

	_, err := p.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
	require.Equal(t, 1, req.Called)
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	p := NewOpenAI(srv.URL, "sk-test-key", "m")

	_, err := p.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}}, nil)
	require.ErrorIs(t, err, ErrNoChoices)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(&config.LLMConfig{Provider: "openai", BaseURL: "https://api.deepseek.com", APIKey: "k", Model: "deepseek-chat"})
	require.NoError(t, err)
	require.Equal(t, "openai-compat (deepseek-chat)", p.Name())

	p, err = NewProvider(&config.LLMConfig{Provider: "azure", BaseURL: "https://x.openai.azure.com", APIVersion: "2024-06-01", APIKey: "k", Model: "gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, "azure (gpt-4o)", p.Name())

	_, err = NewProvider(&config.LLMConfig{Provider: "ollama"})
	require.Error(t, err)
}
