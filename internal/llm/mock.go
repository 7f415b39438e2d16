package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// MockProvider streams canned responses without any network access.
// It lets every workflow run offline: text prompts stream word by word,
// and prompts that mention an available tool produce a matching tool
// call so agent loops exercise the full request/result cycle.
type MockProvider struct {
	model string
	delay time.Duration

	// Responses maps a lowercase prompt substring to a canned reply.
	// Checked in insertion order before the default reply is used.
	responses []mockResponse
}

type mockResponse struct {
	match string
	reply string
}

// NewMockProvider creates an offline provider. A zero delay streams
// as fast as the consumer can read.
func NewMockProvider(model string, delay time.Duration) *MockProvider {
	return &MockProvider{model: model, delay: delay}
}

// Respond registers a canned reply for prompts containing match
// (case-insensitive). Returns the provider for chaining.
func (p *MockProvider) Respond(match, reply string) *MockProvider {
	p.responses = append(p.responses, mockResponse{
		match: strings.ToLower(match),
		reply: reply,
	})
	return p
}

func (p *MockProvider) Name() string {
	return fmt.Sprintf("Mock (%s)", p.model)
}

func (p *MockProvider) Capabilities() Capabilities {
	return Capabilities{ToolCalls: true}
}

// mockCallID generates unique tool call IDs across all mock providers.
var mockCallID atomic.Uint64

func nextMockCallID() string {
	return fmt.Sprintf("mock-call-%d", mockCallID.Add(1))
}

func (p *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		// After a tool round-trip, wrap up with a short summary.
		if hasToolResults(req.Messages) {
			return p.streamText(ctx, events, p.completionText(req.Messages))
		}

		prompt := lastUserPrompt(req.Messages)

		// A prompt naming an available tool becomes a tool call.
		if call := p.matchToolCall(prompt, req.Tools); call != nil {
			if err := send(ctx, events, Event{
				Type:     EventToolInputStart,
				InputID:  call.ID,
				ToolName: call.Name,
			}); err != nil {
				return err
			}
			if err := send(ctx, events, Event{
				Type:      EventToolInputDelta,
				InputID:   call.ID,
				InputText: string(call.Arguments),
			}); err != nil {
				return err
			}
			if err := send(ctx, events, Event{Type: EventToolInputEnd, InputID: call.ID}); err != nil {
				return err
			}
			if err := send(ctx, events, Event{Type: EventToolCall, Tool: call}); err != nil {
				return err
			}
			usage := &Usage{InputTokens: len(prompt) / 4, OutputTokens: 12}
			if err := send(ctx, events, Event{Type: EventUsage, Use: usage}); err != nil {
				return err
			}
			return send(ctx, events, Event{Type: EventDone, Use: usage})
		}

		return p.streamText(ctx, events, p.replyFor(prompt))
	}), nil
}

// replyFor picks the reply for a prompt: registered responses first,
// then a generic echo.
func (p *MockProvider) replyFor(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, r := range p.responses {
		if strings.Contains(lower, r.match) {
			return r.reply
		}
	}
	summary := prompt
	if len(summary) > 60 {
		summary = summary[:60] + "..."
	}
	return fmt.Sprintf("Here is a response to your request about %q. "+
		"This output comes from the offline mock model, which streams "+
		"deterministic text so the surrounding workflow can be observed "+
		"without network access.", summary)
}

func (p *MockProvider) completionText(messages []Message) string {
	var names []string
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if part.Type == PartToolResult && part.ToolResult != nil {
				names = append(names, part.ToolResult.Name)
			}
		}
	}
	if len(names) == 0 {
		return "All requested tool work is complete."
	}
	return fmt.Sprintf("Based on the %s result, the requested information has been gathered and the task is complete.", strings.Join(names, " and "))
}

// matchToolCall returns a tool call when the prompt mentions an
// available tool by name, with arguments built from the prompt text.
func (p *MockProvider) matchToolCall(prompt string, tools []ToolSpec) *ToolCall {
	lower := strings.ToLower(prompt)
	for _, spec := range tools {
		needle := strings.ReplaceAll(spec.Name, "_", " ")
		if !strings.Contains(lower, spec.Name) && !strings.Contains(lower, needle) {
			continue
		}
		args := map[string]string{}
		for key := range schemaProperties(spec.Schema) {
			args[key] = promptArgument(prompt)
		}
		argsJSON, _ := json.Marshal(args)
		return &ToolCall{
			ID:        nextMockCallID(),
			Name:      spec.Name,
			Arguments: argsJSON,
		}
	}
	return nil
}

func schemaProperties(schema map[string]interface{}) map[string]interface{} {
	props, _ := schema["properties"].(map[string]interface{})
	return props
}

// promptArgument extracts the trailing quoted span of a prompt, or the
// last word, as a plausible tool argument.
func promptArgument(prompt string) string {
	if start := strings.Index(prompt, "\""); start >= 0 {
		if end := strings.Index(prompt[start+1:], "\""); end >= 0 {
			return prompt[start+1 : start+1+end]
		}
	}
	fields := strings.Fields(strings.TrimRight(prompt, ".?!"))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// streamText emits text word by word, then usage and done.
func (p *MockProvider) streamText(ctx context.Context, events chan<- Event, text string) error {
	words := strings.SplitAfter(text, " ")
	for _, word := range words {
		if word == "" {
			continue
		}
		if err := send(ctx, events, Event{Type: EventTextDelta, Text: word}); err != nil {
			return err
		}
		if p.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay):
			}
		}
	}
	usage := &Usage{
		InputTokens:  25,
		OutputTokens: len(text) / 4,
	}
	if err := send(ctx, events, Event{Type: EventUsage, Use: usage}); err != nil {
		return err
	}
	return send(ctx, events, Event{Type: EventDone, Use: usage})
}

func send(ctx context.Context, events chan<- Event, event Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case events <- event:
		return nil
	}
}

// hasToolResults checks if any message contains tool results.
func hasToolResults(msgs []Message) bool {
	for _, msg := range msgs {
		if msg.Role == RoleTool {
			return true
		}
		for _, part := range msg.Parts {
			if part.Type == PartToolResult {
				return true
			}
		}
	}
	return false
}

// lastUserPrompt extracts the text from the last user message.
func lastUserPrompt(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			for _, part := range msgs[i].Parts {
				if part.Type == PartText && part.Text != "" {
					return part.Text
				}
			}
		}
	}
	return ""
}
