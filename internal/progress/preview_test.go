package progress

import (
	"encoding/json"
	"strings"
	"testing"

	"agentflow/internal/llm"
)

func TestPromptPreview(t *testing.T) {
	tests := []struct {
		name     string
		messages []llm.Message
		want     string
		wantTrun bool
		wantOK   bool
	}{
		{
			name:     "single short message",
			messages: []llm.Message{llm.UserText("Hello world")},
			want:     "Hello world",
			wantOK:   true,
		},
		{
			name:     "whitespace normalized",
			messages: []llm.Message{llm.UserText("  Hello\n\n\tworld  ")},
			want:     "Hello world",
			wantOK:   true,
		},
		{
			name: "segments joined with single space",
			messages: []llm.Message{
				llm.SystemText("You are terse."),
				llm.UserText("Hi"),
			},
			want:   "You are terse. Hi",
			wantOK: true,
		},
		{
			name:     "exactly at budget is not truncated",
			messages: []llm.Message{llm.UserText(strings.Repeat("a", 40))},
			want:     strings.Repeat("a", 40),
			wantOK:   true,
		},
		{
			name:     "one past budget is truncated",
			messages: []llm.Message{llm.UserText(strings.Repeat("a", 41))},
			want:     strings.Repeat("a", 40),
			wantTrun: true,
			wantOK:   true,
		},
		{
			name: "multibyte budget counts runes not bytes",
			messages: []llm.Message{
				llm.SystemText(strings.Repeat("日", 13)),
				llm.UserText("hello world"),
			},
			want:   strings.Repeat("日", 13) + " hello world",
			wantOK: true,
		},
		{
			name:     "multibyte under budget is not truncated",
			messages: []llm.Message{llm.UserText(strings.Repeat("日", 20))},
			want:     strings.Repeat("日", 20),
			wantOK:   true,
		},
		{
			name:     "multibyte past budget cut at rune boundary",
			messages: []llm.Message{llm.UserText(strings.Repeat("日", 45))},
			want:     strings.Repeat("日", 40),
			wantTrun: true,
			wantOK:   true,
		},
		{
			name:   "no messages",
			wantOK: false,
		},
		{
			name:     "whitespace only",
			messages: []llm.Message{llm.UserText("   \n\t  ")},
			wantOK:   false,
		},
		{
			name: "tool parts skipped",
			messages: []llm.Message{
				llm.ToolResultMessage("call-1", "search", "big payload"),
			},
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			preview, ok := PromptPreview(tc.messages)
			if ok != tc.wantOK {
				t.Fatalf("ok=%v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if preview.Text != tc.want {
				t.Errorf("Text=%q, want %q", preview.Text, tc.want)
			}
			if preview.Truncated != tc.wantTrun {
				t.Errorf("Truncated=%v, want %v", preview.Truncated, tc.wantTrun)
			}
		})
	}
}

func TestPromptPreviewDeterministic(t *testing.T) {
	messages := []llm.Message{
		llm.SystemText("You are a helpful assistant with many rules."),
		llm.UserText("Summarize this very long document for me please"),
	}
	first, ok := PromptPreview(messages)
	if !ok {
		t.Fatal("expected a preview")
	}
	for i := 0; i < 10; i++ {
		again, _ := PromptPreview(messages)
		if again != first {
			t.Fatalf("preview changed between calls: %+v vs %+v", again, first)
		}
	}
	if len([]rune(first.Text)) > 40 {
		t.Errorf("preview exceeds budget: %d runes", len([]rune(first.Text)))
	}
}

func TestTextPreview(t *testing.T) {
	if got := TextPreview("short answer"); got != "short answer" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("x", 50)
	want := strings.Repeat("x", 40) + "..."
	if got := TextPreview(long); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := TextPreview("a\n\nb\tc"); got != "a b c" {
		t.Errorf("got %q, want %q", got, "a b c")
	}
}

func TestFormatJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
		want string
	}{
		{name: "empty payload", raw: nil, want: "{}"},
		{name: "compacted", raw: json.RawMessage("{\n  \"city\": \"Tokyo\"\n}"), want: `{"city":"Tokyo"}`},
		{name: "invalid json falls back", raw: json.RawMessage(`{"broken`), want: "<unserializable>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatJSON(tc.raw); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
