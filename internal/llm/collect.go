package llm

import (
	"context"
	"io"
	"strings"
)

// Response is the fully-drained result of a single model turn.
type Response struct {
	Text      string
	Reasoning string
	ToolCalls []ToolCall
	Usage     Usage
}

// Collect drains a stream into a Response. It closes the stream before
// returning. An in-band error event terminates collection with that error;
// everything accumulated up to that point is discarded.
func Collect(stream Stream) (*Response, error) {
	defer stream.Close()

	var text, reasoning strings.Builder
	var resp Response

	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch event.Type {
		case EventTextDelta:
			text.WriteString(event.Text)
		case EventReasoningDelta:
			reasoning.WriteString(event.Text)
		case EventToolCall:
			if event.Tool != nil {
				resp.ToolCalls = append(resp.ToolCalls, *event.Tool)
			}
		case EventUsage:
			if event.Use != nil {
				resp.Usage.InputTokens += event.Use.InputTokens
				resp.Usage.OutputTokens += event.Use.OutputTokens
				resp.Usage.CachedInputTokens += event.Use.CachedInputTokens
			}
		case EventDone:
			if event.Use != nil {
				resp.Usage = *event.Use
			}
		case EventError:
			if event.Err != nil {
				return nil, event.Err
			}
		}
	}

	resp.Text = text.String()
	resp.Reasoning = reasoning.String()
	return &resp, nil
}

// Generator is implemented by providers that handle non-streaming
// calls natively, such as instrumentation wrappers that distinguish
// generate from stream mode.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Generate runs a full turn against a provider and drains the stream
// into a Response. It is the non-streaming half of the provider
// contract. Providers implementing Generator take the call directly.
func Generate(ctx context.Context, provider Provider, req Request) (*Response, error) {
	if g, ok := provider.(Generator); ok {
		return g.Generate(ctx, req)
	}
	stream, err := provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return Collect(stream)
}
