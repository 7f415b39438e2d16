package llm

import (
	"context"
	"strings"
	"testing"
)

func TestMockProviderEchoesPrompt(t *testing.T) {
	provider := NewMockProvider("mock-1", 0)

	resp, err := Generate(context.Background(), provider, Request{
		Messages: []Message{UserText("tell me about Go")},
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if !strings.Contains(resp.Text, "tell me about Go") {
		t.Errorf("reply does not echo the prompt: %q", resp.Text)
	}
	if resp.Usage.OutputTokens == 0 {
		t.Errorf("expected usage figures, got %+v", resp.Usage)
	}
}

func TestMockProviderCannedResponses(t *testing.T) {
	provider := NewMockProvider("mock-1", 0).
		Respond("capital of france", "Paris.").
		Respond("capital", "It depends on the country.")

	resp, err := Generate(context.Background(), provider, Request{
		Messages: []Message{UserText("What is the Capital of France?")},
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if resp.Text != "Paris." {
		t.Errorf("Text = %q, want first matching canned reply", resp.Text)
	}
}

func TestMockProviderToolCall(t *testing.T) {
	provider := NewMockProvider("mock-1", 0)
	spec := ToolSpec{
		Name: "get_weather",
		Schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"city": map[string]interface{}{"type": "string"}},
		},
	}

	resp, err := Generate(context.Background(), provider, Request{
		Messages: []Message{UserText(`Use get_weather for "Tokyo"`)},
		Tools:    []ToolSpec{spec},
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Name != "get_weather" {
		t.Errorf("Name = %q", call.Name)
	}
	if !strings.Contains(string(call.Arguments), "Tokyo") {
		t.Errorf("Arguments = %s, want quoted span from the prompt", call.Arguments)
	}
	if call.ID == "" {
		t.Error("tool call needs an id for result correlation")
	}
}

func TestMockProviderCompletesAfterToolResults(t *testing.T) {
	provider := NewMockProvider("mock-1", 0)

	resp, err := Generate(context.Background(), provider, Request{
		Messages: []Message{
			UserText("weather please"),
			ToolResultMessage("c1", "get_weather", "sunny"),
		},
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("expected no further tool calls, got %d", len(resp.ToolCalls))
	}
	if !strings.Contains(resp.Text, "get_weather") {
		t.Errorf("completion should reference the tool used: %q", resp.Text)
	}
}

func TestMockProviderWithEngine(t *testing.T) {
	provider := NewMockProvider("mock-1", 0)
	tool := &echoTool{name: "get_weather", result: "rainy, 12C"}
	engine := NewEngine(provider, nil)
	engine.RegisterTool(tool)

	stream, err := engine.Stream(context.Background(), Request{
		Messages: []Message{UserText(`Check get_weather for "London"`)},
	})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	resp, err := Collect(stream)
	if err != nil {
		t.Fatalf("collect error: %v", err)
	}

	if tool.calls != 1 {
		t.Errorf("tool executed %d times, want 1", tool.calls)
	}
	if resp.Text == "" {
		t.Error("expected final text after the tool round-trip")
	}
}
