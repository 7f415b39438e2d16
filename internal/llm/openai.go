package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client: &client,
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("OpenAI (%s)", p.model)
}

func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{
		ToolCalls: true,
		Reasoning: false,
	}
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var models []ModelInfo
	for _, m := range page.Data {
		models = append(models, ModelInfo{
			ID:      m.ID,
			Created: m.Created,
			OwnedBy: m.OwnedBy,
		})
	}
	return models, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		params := openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(chooseModel(req.Model, p.model)),
			Messages: buildOpenAIMessages(req.Messages),
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}
		if len(req.Tools) > 0 {
			params.Tools = buildOpenAITools(req.Tools)
			if choice, ok := buildOpenAIToolChoice(req.ToolChoice); ok {
				params.ToolChoice = choice
			}
			if req.ParallelToolCalls {
				params.ParallelToolCalls = openai.Bool(true)
			}
		}
		if req.Temperature > 0 {
			params.Temperature = openai.Float(float64(req.Temperature))
		}
		if req.TopP > 0 {
			params.TopP = openai.Float(float64(req.TopP))
		}
		if req.MaxOutputTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
		}

		toolState := newIndexedToolState()
		var lastUsage *Usage

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		for stream.Next() {
			chunk := stream.Current()
			if chunk.Usage.CompletionTokens > 0 || chunk.Usage.PromptTokens > 0 {
				lastUsage = &Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					events <- Event{Type: EventTextDelta, Text: choice.Delta.Content}
				}
				for _, call := range choice.Delta.ToolCalls {
					idx := int(call.Index)
					if !toolState.Has(idx) && call.Function.Name != "" {
						toolState.Start(idx, call.ID, call.Function.Name)
						events <- Event{
							Type:     EventToolInputStart,
							InputID:  call.ID,
							ToolName: call.Function.Name,
						}
					}
					if call.Function.Arguments != "" {
						toolState.Append(idx, call.ID, call.Function.Arguments)
						events <- Event{
							Type:      EventToolInputDelta,
							InputID:   toolState.ID(idx),
							InputText: call.Function.Arguments,
						}
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("openai streaming error: %w", err)
		}

		for _, call := range toolState.Calls() {
			call := call
			events <- Event{Type: EventToolInputEnd, InputID: call.ID}
			events <- Event{Type: EventToolCall, Tool: &call}
		}
		if lastUsage != nil {
			events <- Event{Type: EventUsage, Use: lastUsage}
		}
		events <- Event{Type: EventDone, Use: lastUsage}
		return nil
	}), nil
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if text := collectTextParts(msg.Parts); text != "" {
				out = append(out, openai.SystemMessage(text))
			}
		case RoleUser:
			if text := collectTextParts(msg.Parts); text != "" {
				out = append(out, openai.UserMessage(text))
			}
		case RoleAssistant:
			out = append(out, buildOpenAIAssistantMessage(msg.Parts)...)
		case RoleTool:
			for _, part := range msg.Parts {
				if part.Type != PartToolResult || part.ToolResult == nil {
					continue
				}
				out = append(out, openai.ToolMessage(part.ToolResult.Content, part.ToolResult.ID))
			}
		}
	}
	return out
}

func buildOpenAIAssistantMessage(parts []Part) []openai.ChatCompletionMessageParamUnion {
	text := collectTextParts(parts)
	var toolCalls []openai.ChatCompletionMessageToolCallUnionParam
	for _, part := range parts {
		if part.Type != PartToolCall || part.ToolCall == nil {
			continue
		}
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: part.ToolCall.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      part.ToolCall.Name,
					Arguments: string(part.ToolCall.RawArguments()),
				},
			},
		})
	}
	if len(toolCalls) == 0 {
		if text == "" {
			return nil
		}
		return []openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(text)}
	}
	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
	if text != "" {
		assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text),
		}
	}
	return []openai.ChatCompletionMessageParamUnion{{OfAssistant: &assistant}}
}

func buildOpenAITools(specs []ToolSpec) []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		fn := shared.FunctionDefinitionParam{
			Name:       spec.Name,
			Parameters: shared.FunctionParameters(spec.Schema),
		}
		if spec.Description != "" {
			fn.Description = openai.String(spec.Description)
		}
		tools = append(tools, openai.ChatCompletionFunctionTool(fn))
	}
	return tools
}

func buildOpenAIToolChoice(choice ToolChoice) (openai.ChatCompletionToolChoiceOptionUnionParam, bool) {
	switch choice.Mode {
	case ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}, true
	case ToolChoiceRequired:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}, true
	case ToolChoiceName:
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfFunctionToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice.Name},
			},
		}, true
	case ToolChoiceAuto:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}, true
	}
	return openai.ChatCompletionToolChoiceOptionUnionParam{}, false
}

// indexedToolState accumulates streamed tool calls keyed by choice index.
type indexedToolState struct {
	byIndex map[int]*streamedToolCall
	order   []int
}

type streamedToolCall struct {
	id   string
	name string
	args []byte
}

func newIndexedToolState() *indexedToolState {
	return &indexedToolState{byIndex: make(map[int]*streamedToolCall)}
}

func (s *indexedToolState) Has(index int) bool {
	_, ok := s.byIndex[index]
	return ok
}

func (s *indexedToolState) ID(index int) string {
	if state, ok := s.byIndex[index]; ok {
		return state.id
	}
	return ""
}

func (s *indexedToolState) Start(index int, id, name string) {
	s.byIndex[index] = &streamedToolCall{id: id, name: name}
	s.order = append(s.order, index)
}

func (s *indexedToolState) Append(index int, id, partial string) {
	state, ok := s.byIndex[index]
	if !ok {
		state = &streamedToolCall{id: id}
		s.byIndex[index] = state
		s.order = append(s.order, index)
	}
	if id != "" && state.id == "" {
		state.id = id
	}
	state.args = append(state.args, partial...)
}

func (s *indexedToolState) Calls() []ToolCall {
	calls := make([]ToolCall, 0, len(s.order))
	for _, idx := range s.order {
		state := s.byIndex[idx]
		calls = append(calls, ToolCall{
			ID:        state.id,
			Name:      state.name,
			Arguments: json.RawMessage(state.args),
		})
	}
	return calls
}
