package chat

import (
	"errors"
	"fmt"
)

// ErrToolHostUnavailable is returned when no tool host session is connected.
var ErrToolHostUnavailable = errors.New("MCP Server 未连接")

// ToolListError wraps a failure to fetch the tool list.
type ToolListError struct {
	Err error
}

func (e *ToolListError) Error() string {
	return fmt.Sprintf("获取工具列表失败: %v", e.Err)
}

func (e *ToolListError) Unwrap() error { return e.Err }

// ArgumentsError reports a tool call whose arguments are not valid JSON.
// It aborts the whole chat request.
type ArgumentsError struct {
	CallID string
	Tool   string
	Err    error
}

func (e *ArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s (call %s): %v", e.Tool, e.CallID, e.Err)
}

func (e *ArgumentsError) Unwrap() error { return e.Err }
