// Package progress instruments model calls with human-readable console
// output: one start line per call, immediate lines for notable stream
// events (reasoning, tool calls, tool results, errors), and a single
// consolidated completion line. The instrumentation is transparent;
// every stream event is forwarded to the consumer unmodified.
package progress

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"agentflow/internal/llm"
)

const (
	// promptBudget bounds prompt and completion previews.
	promptBudget = 40
	// resultBudget bounds tool-result previews.
	resultBudget = 100
)

// Preview is a truncated, human-readable excerpt used only for logging.
type Preview struct {
	Text      string
	Truncated bool
}

// PromptPreview extracts a short preview from a message list. Text
// parts are whitespace-normalized and joined with single spaces; tool
// calls and results are skipped. Returns ok=false when the messages
// hold no text at all, in which case no preview should be printed.
func PromptPreview(messages []llm.Message) (Preview, bool) {
	var b strings.Builder
	used := 0 // budget consumed, in runes

	for _, msg := range messages {
		for _, part := range msg.Parts {
			if part.Type != llm.PartText || part.Text == "" {
				continue
			}
			segment := normalizeWhitespace(part.Text)
			if segment == "" {
				continue
			}
			if used > 0 {
				// The joining space needs room for at least one rune
				// of the next segment after it.
				if promptBudget-used < 2 {
					return Preview{Text: b.String(), Truncated: true}, true
				}
				b.WriteString(" ")
				used++
			}
			remaining := promptBudget - used
			if utf8.RuneCountInString(segment) > remaining {
				b.WriteString(clipString(segment, remaining))
				return Preview{Text: b.String(), Truncated: true}, true
			}
			b.WriteString(segment)
			used += utf8.RuneCountInString(segment)
		}
	}

	if used == 0 {
		return Preview{}, false
	}
	return Preview{Text: b.String(), Truncated: false}, true
}

// TextPreview normalizes and bounds arbitrary output text to the
// prompt budget, appending an ellipsis when cut.
func TextPreview(text string) string {
	return truncate(normalizeWhitespace(text), promptBudget)
}

// normalizeWhitespace collapses all runs of whitespace to single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate bounds s to max characters, appending "..." when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// clipString cuts s to at most max characters without an ellipsis,
// respecting rune boundaries.
func clipString(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// formatJSON renders a raw JSON payload compactly for log lines. A
// payload that fails to serialize degrades to a fixed placeholder
// rather than aborting the log line.
func formatJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "<unserializable>"
	}
	return buf.String()
}
