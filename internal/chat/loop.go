package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for loop spans.
const TracerName = "github.com/clawplaza/searchchat/internal/chat"

const (
	// DefaultMaxRounds bounds model→tool cycles per request.
	DefaultMaxRounds = 5

	// DefaultSystemPrompt seeds every conversation.
	DefaultSystemPrompt = "你是一个联网助手。请回答用户问题。"

	// TooManySteps is the reply when the round budget runs out.
	TooManySteps = "思考超时或步骤过多"

	previewRunes = 100
)

// Event types published through Orchestrator.OnEvent.
const (
	EventRequest    = "request"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventAnswer     = "answer"
	EventModelError = "model_error"
)

type state int

const (
	awaitingModel state = iota
	executingTools
	done
)

func (s state) String() string {
	switch s {
	case awaitingModel:
		return "AWAITING_MODEL"
	case executingTools:
		return "EXECUTING_TOOLS"
	default:
		return "DONE"
	}
}

// Request is one incoming chat message.
type Request struct {
	Message string
	// History is accepted from callers but not merged into the conversation;
	// each request starts from the system prompt and Message only.
	History []json.RawMessage
}

// Orchestrator runs the model/tool loop. It holds no per-request state and
// is safe for concurrent use if Model and Tools are.
type Orchestrator struct {
	Model        Completer
	Tools        ToolHost
	SystemPrompt string
	MaxRounds    int

	// OnEvent receives loop diagnostics. Nil means no listener.
	OnEvent func(eventType, message string, data any)

	// Tracer records one span per request, model call and tool call.
	// Nil means the global provider's tracer.
	Tracer trace.Tracer
}

// New creates an orchestrator with default prompt and round budget.
func New(model Completer, tools ToolHost) *Orchestrator {
	return &Orchestrator{
		Model:        model,
		Tools:        tools,
		SystemPrompt: DefaultSystemPrompt,
		MaxRounds:    DefaultMaxRounds,
	}
}

// Run answers one chat request.
//
// Model failures and tool failures are folded into text (the reply and the
// tool-result content respectively). Errors are returned only when the tool
// host is unavailable, tool listing fails, or the model sends malformed
// tool arguments.
func (o *Orchestrator) Run(ctx context.Context, req Request) (reply string, err error) {
	ctx, span := o.tracer().Start(ctx, "chat.run")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if o.Tools == nil {
		return "", ErrToolHostUnavailable
	}

	prompt := o.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	maxRounds := o.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	msgs := []Message{
		{Role: RoleSystem, Content: prompt},
		{Role: RoleUser, Content: req.Message},
	}

	slog.Info("chat request received", "message", req.Message, "history_len", len(req.History))
	o.emit(EventRequest, req.Message, nil)

	st := awaitingModel
	for round := 0; round < maxRounds; round++ {
		tools, err := o.Tools.ListTools(ctx)
		if err != nil {
			if errors.Is(err, ErrToolHostUnavailable) {
				return "", err
			}
			return "", &ToolListError{Err: err}
		}

		slog.Debug("calling model", "round", round+1, "state", st, "messages", len(msgs), "tools", len(tools))
		span.SetAttributes(attribute.Int("chat.rounds", round+1))
		completion, err := o.complete(ctx, round+1, msgs, tools)
		if err != nil {
			slog.Warn("model call failed", "round", round+1, "error", err)
			o.emit(EventModelError, err.Error(), nil)
			return fmt.Sprintf("模型调用出错: %v", err), nil
		}

		if len(completion.ToolCalls) == 0 {
			st = done
			slog.Debug("model answered", "round", round+1, "state", st)
			o.emit(EventAnswer, completion.Content, map[string]any{"round": round + 1})
			return completion.Content, nil
		}

		msgs = append(msgs, Message{
			Role:      RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		st = executingTools
		for _, call := range completion.ToolCalls {
			result, err := o.execute(ctx, call)
			if err != nil {
				return "", err
			}
			msgs = append(msgs, Message{
				Role:       RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    result,
			})
		}
		st = awaitingModel
	}

	slog.Warn("round budget exhausted", "max_rounds", maxRounds)
	return TooManySteps, nil
}

// execute runs one tool call. Only arguments that are not valid JSON produce
// an error; non-object arguments and tool failures become the result text.
func (o *Orchestrator) execute(ctx context.Context, call ToolCall) (string, error) {
	args, err := decodeArguments(call.Arguments)
	if err != nil && !errors.Is(err, errArgumentsNotObject) {
		return "", &ArgumentsError{CallID: call.ID, Tool: call.Name, Err: err}
	}

	slog.Info("calling tool", "tool", call.Name, "call_id", call.ID)
	o.emit(EventToolCall, call.Name, map[string]any{"id": call.ID, "arguments": args})

	ctx, span := o.tracer().Start(ctx, "chat.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	var result string
	if err == nil {
		result, err = o.Tools.CallTool(ctx, call.Name, args)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		result = fmt.Sprintf("工具调用失败: %v", err)
	}
	span.End()

	preview := Preview(result)
	slog.Info("tool result", "tool", call.Name, "preview", preview)
	o.emit(EventToolResult, preview, map[string]any{"id": call.ID, "tool": call.Name, "failed": err != nil})
	return result, nil
}

func (o *Orchestrator) complete(ctx context.Context, round int, msgs []Message, tools []ToolDescriptor) (*Completion, error) {
	ctx, span := o.tracer().Start(ctx, "chat.model", trace.WithAttributes(
		attribute.Int("chat.round", round),
		attribute.Int("chat.messages", len(msgs)),
		attribute.Int("chat.tools", len(tools)),
	))
	defer span.End()

	completion, err := o.Model.Complete(ctx, msgs, tools)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("chat.tool_calls", len(completion.ToolCalls)))
	return completion, nil
}

func (o *Orchestrator) tracer() trace.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}
	return otel.Tracer(TracerName)
}

// errArgumentsNotObject marks well-formed arguments that are not a JSON object.
var errArgumentsNotObject = errors.New("arguments must be a JSON object")

// decodeArguments parses tool arguments. "null" decodes to an empty map;
// any other non-object value yields errArgumentsNotObject.
func decodeArguments(raw string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	switch args := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return args, nil
	}
	return nil, errArgumentsNotObject
}

// Preview returns the first 100 characters of s, with "..." if cut.
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewRunes {
		return s
	}
	return string(runes[:previewRunes]) + "..."
}

func (o *Orchestrator) emit(eventType, message string, data any) {
	if o.OnEvent != nil {
		o.OnEvent(eventType, message, data)
	}
}
