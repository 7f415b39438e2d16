package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"

	"agentflow/internal/llm"
)

// sliceStream replays a fixed event sequence, then io.EOF.
type sliceStream struct {
	events []llm.Event
	pos    int
	err    error // Returned after the scripted events instead of io.EOF
	closed bool
}

func (s *sliceStream) Recv() (llm.Event, error) {
	if s.pos >= len(s.events) {
		if s.err != nil {
			return llm.Event{}, s.err
		}
		return llm.Event{}, io.EOF
	}
	event := s.events[s.pos]
	s.pos++
	return event, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type fakeProvider struct {
	events  []llm.Event
	err     error // Returned from Stream itself
	recvErr error // Returned by the stream after the scripted events
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Capabilities() llm.Capabilities { return llm.Capabilities{} }

func (p *fakeProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &sliceStream{events: p.events, err: p.recvErr}, nil
}

func doneEvents(text string, in, out int) []llm.Event {
	var events []llm.Event
	for _, word := range strings.SplitAfter(text, " ") {
		events = append(events, llm.Event{Type: llm.EventTextDelta, Text: word})
	}
	events = append(events, llm.Event{
		Type: llm.EventDone,
		Use:  &llm.Usage{InputTokens: in, OutputTokens: out},
	})
	return events
}

// drain reads a stream to completion, returning every event received.
func drain(t *testing.T, stream llm.Stream) []llm.Event {
	t.Helper()
	var events []llm.Event
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("unexpected recv error: %v", err)
		}
		events = append(events, event)
		if event.Type == llm.EventDone {
			return events
		}
	}
}

func TestMonitorCompletionLine(t *testing.T) {
	var buf bytes.Buffer
	monitor := Wrap(&fakeProvider{events: doneEvents("Hello world", 3, 5)}, WithOutput(&buf))

	req := llm.Request{Messages: []llm.Message{llm.UserText("Say hello")}}
	stream, err := monitor.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	drain(t, stream)

	out := buf.String()
	startLine := regexp.MustCompile(`\[#1\] fake stream "Say hello" \(1 active\)`)
	if !startLine.MatchString(out) {
		t.Errorf("missing start line in output:\n%s", out)
	}
	doneLine := regexp.MustCompile(`\[#1\] done in \d+\.\d\ds \(3 in / 5 out tokens, 0 active\) "Hello world"`)
	if !doneLine.MatchString(out) {
		t.Errorf("missing completion line in output:\n%s", out)
	}
	if monitor.ActiveCalls() != 0 {
		t.Errorf("active calls = %d after completion, want 0", monitor.ActiveCalls())
	}
}

func TestMonitorForwardsEventsUnchanged(t *testing.T) {
	scripted := []llm.Event{
		{Type: llm.EventTextDelta, Text: "a"},
		{Type: llm.EventReasoningDelta, Text: "thinking"},
		{Type: llm.EventReasoningEnd},
		{Type: llm.EventTextDelta, Text: "b"},
		{Type: llm.EventUsage, Use: &llm.Usage{InputTokens: 1}},
		{Type: llm.EventDone},
	}
	monitor := Wrap(&fakeProvider{events: scripted}, WithOutput(io.Discard))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	got := drain(t, stream)

	if len(got) != len(scripted) {
		t.Fatalf("received %d events, want %d", len(got), len(scripted))
	}
	for i := range scripted {
		if got[i].Type != scripted[i].Type || got[i].Text != scripted[i].Text {
			t.Errorf("event %d changed: got %+v, want %+v", i, got[i], scripted[i])
		}
	}
}

func TestMonitorNoPromptPreviewOmitted(t *testing.T) {
	var buf bytes.Buffer
	monitor := Wrap(&fakeProvider{events: doneEvents("hi", 0, 0)}, WithOutput(&buf))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	drain(t, stream)

	first, _, _ := strings.Cut(buf.String(), "\n")
	if strings.Contains(first, `""`) {
		t.Errorf("start line should omit empty preview, got %q", first)
	}
	if want := "[#1] fake stream (1 active)"; first != want {
		t.Errorf("start line = %q, want %q", first, want)
	}
}

func TestMonitorDistinctToolNamesOnce(t *testing.T) {
	var buf bytes.Buffer
	events := []llm.Event{
		{Type: llm.EventToolCall, Tool: &llm.ToolCall{ID: "c1", Name: "search", Arguments: json.RawMessage(`{"q":"go"}`)}},
		{Type: llm.EventToolCall, Tool: &llm.ToolCall{ID: "c2", Name: "fetch", Arguments: json.RawMessage(`{"url":"x"}`)}},
		{Type: llm.EventToolResult, Result: &llm.ToolResult{ID: "c1", Content: "results"}},
		{Type: llm.EventToolCall, Tool: &llm.ToolCall{ID: "c3", Name: "search", Arguments: json.RawMessage(`{"q":"again"}`)}},
		{Type: llm.EventDone},
	}
	monitor := Wrap(&fakeProvider{events: events}, WithOutput(&buf))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	drain(t, stream)

	out := buf.String()
	if got := strings.Count(out, "tool:search"); got != 1 {
		t.Errorf("tool:search appears %d times in completion, want 1\n%s", got, out)
	}
	if got := strings.Count(out, "tool:fetch"); got != 1 {
		t.Errorf("tool:fetch appears %d times in completion, want 1\n%s", got, out)
	}
	if !strings.Contains(out, `"tool:search, tool:fetch"`) {
		t.Errorf("completion preview should list tools in first-use order:\n%s", out)
	}
	// Result correlated back to the calling tool by id
	if !strings.Contains(out, `tool result search "results"`) {
		t.Errorf("missing correlated tool result line:\n%s", out)
	}
}

func TestMonitorStreamedToolInputLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	events := []llm.Event{
		{Type: llm.EventToolInputStart, InputID: "c1", ToolName: "get_weather"},
		{Type: llm.EventToolInputDelta, InputID: "c1", InputText: `{"city":`},
		{Type: llm.EventToolInputDelta, InputID: "c1", InputText: `"Tokyo"}`},
		{Type: llm.EventToolInputEnd, InputID: "c1"},
		{Type: llm.EventToolCall, Tool: &llm.ToolCall{ID: "c1", Name: "get_weather", Arguments: json.RawMessage(`{"city":"Tokyo"}`)}},
		{Type: llm.EventDone},
	}
	monitor := Wrap(&fakeProvider{events: events}, WithOutput(&buf))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	drain(t, stream)

	out := buf.String()
	want := `tool call get_weather({"city":"Tokyo"})`
	if got := strings.Count(out, want); got != 1 {
		t.Errorf("tool call line appears %d times, want 1\n%s", got, out)
	}
}

func TestMonitorLegacyArgumentField(t *testing.T) {
	var buf bytes.Buffer
	events := []llm.Event{
		{Type: llm.EventToolCall, Tool: &llm.ToolCall{ID: "c1", Name: "lookup", Input: json.RawMessage(`{"id":"TCK-1001"}`)}},
		{Type: llm.EventDone},
	}
	monitor := Wrap(&fakeProvider{events: events}, WithOutput(&buf))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	drain(t, stream)

	if !strings.Contains(buf.String(), `tool call lookup({"id":"TCK-1001"})`) {
		t.Errorf("legacy Input field not normalized:\n%s", buf.String())
	}
}

func TestMonitorToolResultPreviewBudget(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("r", 150)
	events := []llm.Event{
		{Type: llm.EventToolResult, Result: &llm.ToolResult{ID: "nope", Content: long}},
		{Type: llm.EventDone},
	}
	monitor := Wrap(&fakeProvider{events: events}, WithOutput(&buf))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	drain(t, stream)

	want := `tool result unknown "` + strings.Repeat("r", 100) + `..."`
	if !strings.Contains(buf.String(), want) {
		t.Errorf("tool result preview not bounded to 100 chars:\n%s", buf.String())
	}
}

func TestMonitorAbnormalCloseDecrementsOnce(t *testing.T) {
	var buf bytes.Buffer
	events := []llm.Event{
		{Type: llm.EventToolCall, Tool: &llm.ToolCall{ID: "c1", Name: "search"}},
		// No finish event: the stream just ends.
	}
	monitor := Wrap(&fakeProvider{events: events}, WithOutput(&buf))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	for {
		if _, err := stream.Recv(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("unexpected recv error: %v", err)
		}
	}
	// Closing after the abnormal end must not decrement again.
	stream.Close()

	out := buf.String()
	if !strings.Contains(out, "warning: stream closed without a finish event") {
		t.Errorf("missing abnormal-termination warning:\n%s", out)
	}
	if strings.Contains(out, "done in") {
		t.Errorf("no completion line expected for abnormal end:\n%s", out)
	}
	if got := strings.Count(out, "warning:"); got != 1 {
		t.Errorf("warning printed %d times, want 1\n%s", got, out)
	}
	if monitor.ActiveCalls() != 0 {
		t.Errorf("active calls = %d, want 0", monitor.ActiveCalls())
	}
}

func TestMonitorEarlyCloseDecrementsOnce(t *testing.T) {
	var buf bytes.Buffer
	monitor := Wrap(&fakeProvider{events: doneEvents("never read", 0, 0)}, WithOutput(&buf))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	stream.Close()
	stream.Close()

	if !strings.Contains(buf.String(), "warning: stream closed before completion") {
		t.Errorf("missing early-close warning:\n%s", buf.String())
	}
	if got := strings.Count(buf.String(), "warning:"); got != 1 {
		t.Errorf("warning printed %d times, want 1\n%s", got, buf.String())
	}
	if monitor.ActiveCalls() != 0 {
		t.Errorf("active calls = %d, want 0", monitor.ActiveCalls())
	}
}

func TestMonitorRecvErrorDecrementsOnce(t *testing.T) {
	var buf bytes.Buffer
	provider := &fakeProvider{
		events:  []llm.Event{{Type: llm.EventTextDelta, Text: "part"}},
		recvErr: io.ErrUnexpectedEOF,
	}
	monitor := Wrap(provider, WithOutput(&buf))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if _, err := stream.Recv(); err != nil {
		t.Fatalf("first recv should succeed: %v", err)
	}
	if _, err := stream.Recv(); err != io.ErrUnexpectedEOF {
		t.Fatalf("recv error = %v, want %v", err, io.ErrUnexpectedEOF)
	}

	if !strings.Contains(buf.String(), "stream failed") {
		t.Errorf("missing failure line:\n%s", buf.String())
	}
	if monitor.ActiveCalls() != 0 {
		t.Errorf("active calls = %d, want 0", monitor.ActiveCalls())
	}
}

func TestMonitorConcurrentCallsCounter(t *testing.T) {
	var buf bytes.Buffer
	monitor := Wrap(&fakeProvider{events: doneEvents("ok", 1, 1)}, WithOutput(&buf))

	const calls = 8
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := monitor.Stream(context.Background(), llm.Request{})
			if err != nil {
				t.Errorf("stream error: %v", err)
				return
			}
			for {
				event, err := stream.Recv()
				if err != nil || event.Type == llm.EventDone {
					return
				}
			}
		}()
	}
	wg.Wait()

	if monitor.ActiveCalls() != 0 {
		t.Errorf("active calls = %d after all streams finished, want 0", monitor.ActiveCalls())
	}
	out := buf.String()
	if got := strings.Count(out, "done in"); got != calls {
		t.Errorf("completion lines = %d, want %d", got, calls)
	}
	// Every call got a distinct id.
	for i := 1; i <= calls; i++ {
		id := fmt.Sprintf("[#%d]", i)
		if !strings.Contains(out, id) {
			t.Errorf("missing call id %s in output", id)
		}
	}
}

func TestMonitorGenerate(t *testing.T) {
	var buf bytes.Buffer
	monitor := Wrap(&fakeProvider{events: doneEvents("Paris is the capital", 10, 4)}, WithOutput(&buf))

	resp, err := monitor.Generate(context.Background(), llm.Request{
		Messages: []llm.Message{llm.UserText("Capital of France?")},
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if resp.Text != "Paris is the capital" {
		t.Errorf("Text = %q", resp.Text)
	}

	out := buf.String()
	if !strings.Contains(out, `[#1] fake generate "Capital of France?" (1 active)`) {
		t.Errorf("missing generate start line:\n%s", out)
	}
	doneLine := regexp.MustCompile(`\[#1\] done in \d+\.\d\ds \(10 in / 4 out tokens, 0 active\) "Paris is the capital"`)
	if !doneLine.MatchString(out) {
		t.Errorf("missing completion line:\n%s", out)
	}
}

func TestGenerateHelperUsesGenerateMode(t *testing.T) {
	var buf bytes.Buffer
	monitor := Wrap(&fakeProvider{events: doneEvents("Oslo", 2, 1)}, WithOutput(&buf))

	// The package-level helper must hand non-streaming calls to the
	// monitor's own Generate so the call is recorded in generate mode.
	resp, err := llm.Generate(context.Background(), monitor, llm.Request{
		Messages: []llm.Message{llm.UserText("Capital of Norway?")},
	})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if resp.Text != "Oslo" {
		t.Errorf("Text = %q", resp.Text)
	}

	out := buf.String()
	if !strings.Contains(out, "fake generate") {
		t.Errorf("start line not in generate mode:\n%s", out)
	}
	if strings.Contains(out, "fake stream") {
		t.Errorf("call logged as stream mode:\n%s", out)
	}
}

func TestMonitorReasoningPreview(t *testing.T) {
	events := []llm.Event{
		{Type: llm.EventReasoningStart},
		{Type: llm.EventReasoningDelta, Text: "Let me think about\nthis carefully"},
		{Type: llm.EventReasoningEnd},
		{Type: llm.EventTextDelta, Text: "answer"},
		{Type: llm.EventDone},
	}

	var on bytes.Buffer
	monitor := Wrap(&fakeProvider{events: events}, WithOutput(&on))
	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	drain(t, stream)
	if !strings.Contains(on.String(), `reasoning "Let me think about this carefully"`) {
		t.Errorf("missing reasoning preview:\n%s", on.String())
	}

	var off bytes.Buffer
	quiet := Wrap(&fakeProvider{events: events}, WithOutput(&off), WithReasoning(false))
	stream, err = quiet.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	drain(t, stream)
	if strings.Contains(off.String(), "reasoning") {
		t.Errorf("reasoning preview printed with reasoning disabled:\n%s", off.String())
	}
}

func TestMonitorUsageEventsSummed(t *testing.T) {
	var buf bytes.Buffer
	events := []llm.Event{
		{Type: llm.EventUsage, Use: &llm.Usage{InputTokens: 2, OutputTokens: 3}},
		{Type: llm.EventUsage, Use: &llm.Usage{InputTokens: 1, OutputTokens: 4}},
		{Type: llm.EventDone}, // No usage on the finish event
	}
	monitor := Wrap(&fakeProvider{events: events}, WithOutput(&buf))

	stream, err := monitor.Stream(context.Background(), llm.Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	drain(t, stream)

	if !strings.Contains(buf.String(), "(3 in / 7 out tokens, 0 active)") {
		t.Errorf("usage events not summed:\n%s", buf.String())
	}
}

func TestMonitorInstanceScopedIDs(t *testing.T) {
	var a, b bytes.Buffer
	first := Wrap(&fakeProvider{events: doneEvents("x", 0, 0)}, WithOutput(&a))
	second := Wrap(&fakeProvider{events: doneEvents("y", 0, 0)}, WithOutput(&b))

	s1, _ := first.Stream(context.Background(), llm.Request{})
	drain(t, s1)
	s2, _ := second.Stream(context.Background(), llm.Request{})
	drain(t, s2)

	if !strings.Contains(a.String(), "[#1]") {
		t.Errorf("first monitor should start at id 1:\n%s", a.String())
	}
	if !strings.Contains(b.String(), "[#1]") {
		t.Errorf("second monitor counters must be independent:\n%s", b.String())
	}
}
