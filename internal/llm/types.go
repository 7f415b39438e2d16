package llm

import (
	"context"
	"encoding/json"
)

// Provider streams model output events for a request.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Capabilities describe optional provider features.
type Capabilities struct {
	ToolCalls bool
	Reasoning bool // Provider can emit reasoning (thinking) events
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Request represents a single model turn.
type Request struct {
	Model             string
	Messages          []Message
	Tools             []ToolSpec
	ToolChoice        ToolChoice
	ParallelToolCalls bool
	MaxOutputTokens   int
	Temperature       float32
	TopP              float32
	MaxTurns          int // Max agentic turns for tool execution (0 = use default)
}

// Role identifies a message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies a message content part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// Message holds a role with structured parts.
type Message struct {
	Role  Role
	Parts []Part
}

// Part represents a single content part.
type Part struct {
	Type       PartType
	Text       string
	Reasoning  string // Model thinking text carried on assistant text parts
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// ToolSpec describes a callable tool.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolChoiceMode controls tool selection behavior.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceName     ToolChoiceMode = "name"
)

// ToolChoice configures which tool the model should call.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string
}

// ToolCall is a model-requested tool invocation.
//
// Depending on the adapter vintage the argument payload arrives either in
// Arguments or in the legacy Input field. Consumers should go through
// RawArguments rather than reading either field directly.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	Input     json.RawMessage // Legacy field name used by older adapters
}

// RawArguments returns the canonical argument payload, preferring the
// modern Arguments field when both are populated.
func (c ToolCall) RawArguments() json.RawMessage {
	if len(c.Arguments) > 0 {
		return c.Arguments
	}
	return c.Input
}

// ToolResult is the output from executing a tool call.
type ToolResult struct {
	ID      string
	Name    string
	Content string
	IsError bool // True if this result represents a tool execution error
}

// EventType describes streaming events.
type EventType string

const (
	EventTextDelta      EventType = "text_delta"
	EventReasoningStart EventType = "reasoning_start"
	EventReasoningDelta EventType = "reasoning_delta"
	EventReasoningEnd   EventType = "reasoning_end"
	EventToolCall       EventType = "tool_call"        // Complete call, arguments arrived atomically
	EventToolInputStart EventType = "tool_input_start" // Streamed call: name known, arguments follow
	EventToolInputDelta EventType = "tool_input_delta"
	EventToolInputEnd   EventType = "tool_input_end"
	EventToolResult     EventType = "tool_result"
	EventUsage          EventType = "usage"
	EventRetry          EventType = "retry" // Transient failure, retrying
	EventError          EventType = "error"
	EventDone           EventType = "done"
)

// Event represents a streamed output update.
type Event struct {
	Type EventType
	Text string // Text or reasoning delta content

	Tool *ToolCall // For EventToolCall

	// Streamed tool argument fields (EventToolInput*).
	// InputID is a transient identifier correlating start/delta/end chunks;
	// it usually equals the final tool call ID but is not required to.
	InputID   string
	ToolName  string // Set on EventToolInputStart
	InputText string // Argument fragment on EventToolInputDelta

	Result *ToolResult // For EventToolResult

	Use *Usage // For EventUsage, and optionally on EventDone
	Err error  // For EventError

	// Retry fields (EventRetry).
	RetryAttempt     int
	RetryMaxAttempts int
	RetryWaitSecs    float64
}

// Usage captures token usage if available.
type Usage struct {
	InputTokens       int
	OutputTokens      int
	CachedInputTokens int // Tokens read from cache
}

func SystemText(text string) Message {
	return Message{
		Role:  RoleSystem,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func UserText(text string) Message {
	return Message{
		Role:  RoleUser,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func AssistantText(text string) Message {
	return Message{
		Role:  RoleAssistant,
		Parts: []Part{{Type: PartText, Text: text}},
	}
}

func ToolResultMessage(id, name, content string) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type: PartToolResult,
			ToolResult: &ToolResult{
				ID:      id,
				Name:    name,
				Content: content,
			},
		}},
	}
}

// ToolErrorMessage creates a tool result message that indicates an error.
// The error is passed back to the model so it can respond gracefully
// instead of failing the stream.
func ToolErrorMessage(id, name, errorText string) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type: PartToolResult,
			ToolResult: &ToolResult{
				ID:      id,
				Name:    name,
				Content: errorText,
				IsError: true,
			},
		}},
	}
}

// ModelInfo represents a model available from a provider.
type ModelInfo struct {
	ID          string
	DisplayName string
	Created     int64
	OwnedBy     string
}

// ModelLister is an optional interface for providers that can enumerate
// their available models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// chooseModel returns the request model when set, else the provider default.
func chooseModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

// collectTextParts concatenates the text parts of a message.
func collectTextParts(parts []Part) string {
	var out string
	for _, part := range parts {
		if part.Type != PartText || part.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += part.Text
	}
	return out
}
