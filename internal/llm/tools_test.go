package llm

import (
	"context"
	"encoding/json"
	"testing"
)

func TestToolRegistrySpecsInRegistrationOrder(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&echoTool{name: "zeta"})
	registry.Register(&echoTool{name: "alpha"})
	registry.Register(&echoTool{name: "mid"})

	specs := registry.AllSpecs()
	if len(specs) != 3 {
		t.Fatalf("specs = %d, want 3", len(specs))
	}
	for i, want := range []string{"zeta", "alpha", "mid"} {
		if specs[i].Name != want {
			t.Errorf("spec %d = %q, want %q", i, specs[i].Name, want)
		}
	}
}

func TestToolRegistryReplaceOnReRegister(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&echoTool{name: "dup", result: "first"})
	registry.Register(&echoTool{name: "dup", result: "second"})

	result := registry.ExecuteCall(context.Background(), ToolCall{
		ID: "c1", Name: "dup", Arguments: json.RawMessage(`{}`),
	})
	if result.Content != "second" {
		t.Errorf("Content = %q, want the later registration", result.Content)
	}
	if len(registry.AllSpecs()) != 1 {
		t.Errorf("specs = %d, want 1", len(registry.AllSpecs()))
	}
}

func TestExecuteCallUnknownTool(t *testing.T) {
	registry := NewToolRegistry()

	result := registry.ExecuteCall(context.Background(), ToolCall{ID: "c1", Name: "missing"})
	if !result.IsError {
		t.Error("unknown tool should produce an error result")
	}
	if result.ID != "c1" {
		t.Errorf("ID = %q, want the call id", result.ID)
	}
}

func TestRawArgumentsPrefersModernField(t *testing.T) {
	both := ToolCall{
		Arguments: json.RawMessage(`{"modern":true}`),
		Input:     json.RawMessage(`{"legacy":true}`),
	}
	if got := string(both.RawArguments()); got != `{"modern":true}` {
		t.Errorf("RawArguments = %s, want the Arguments field", got)
	}

	legacy := ToolCall{Input: json.RawMessage(`{"legacy":true}`)}
	if got := string(legacy.RawArguments()); got != `{"legacy":true}` {
		t.Errorf("RawArguments = %s, want the Input fallback", got)
	}
}
