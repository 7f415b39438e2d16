package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"agentflow/internal/llm"
	"agentflow/internal/ui"
)

// Monitor wraps a provider and reports the lifecycle of every model
// call: a start line when the call begins, immediate lines for stream
// events worth surfacing, and one completion line when it finishes.
// Call ids and the active-call counter are scoped to the Monitor
// instance, so independently wrapped providers never share state.
//
// Monitor implements llm.Provider and is safe for concurrent calls;
// log lines from overlapping calls interleave, and the active count
// printed on any line reflects the counter at the instant the line
// was emitted.
type Monitor struct {
	provider llm.Provider
	out      io.Writer
	label    string

	showReasoning bool
	render        func(string) string

	nextID atomic.Uint64
	active atomic.Int64

	// Serializes multi-line writes so lines from concurrent calls do
	// not interleave mid-line.
	mu sync.Mutex
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithOutput redirects progress lines (default os.Stdout). Lines
// written anywhere but the default terminal are left unstyled.
func WithOutput(w io.Writer) Option {
	return func(m *Monitor) {
		m.out = w
		m.render = nil
	}
}

// WithLabel overrides the provider name used in log lines.
func WithLabel(label string) Option {
	return func(m *Monitor) { m.label = label }
}

// WithReasoning controls whether reasoning previews are printed when a
// reasoning block completes (default on).
func WithReasoning(enabled bool) Option {
	return func(m *Monitor) { m.showReasoning = enabled }
}

// Wrap instruments a provider.
func Wrap(provider llm.Provider, opts ...Option) *Monitor {
	m := &Monitor{
		provider:      provider,
		out:           os.Stdout,
		label:         provider.Name(),
		showReasoning: true,
	}
	if ui.IsTerminal() {
		muted := ui.DefaultStyles().Muted
		m.render = func(line string) string { return muted.Render(line) }
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) Name() string {
	return m.provider.Name()
}

func (m *Monitor) Capabilities() llm.Capabilities {
	return m.provider.Capabilities()
}

// ListModels forwards to the wrapped provider when it can enumerate
// models. Model listing is not a tracked call.
func (m *Monitor) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	if lister, ok := m.provider.(llm.ModelLister); ok {
		return lister.ListModels(ctx)
	}
	return nil, fmt.Errorf("%s does not support listing models", m.provider.Name())
}

// ActiveCalls returns the number of calls currently in flight.
func (m *Monitor) ActiveCalls() int {
	return int(m.active.Load())
}

// beginCall assigns the next call id, bumps the active counter, and
// prints the start line.
func (m *Monitor) beginCall(mode string, messages []llm.Message) *callRecord {
	call := &callRecord{
		monitor: m,
		id:      m.nextID.Add(1),
		mode:    mode,
		start:   time.Now(),
	}
	active := m.active.Add(1)

	if preview, ok := PromptPreview(messages); ok {
		m.printf("[#%d] %s %s %s (%d active)", call.id, m.label, mode, quote(preview), active)
	} else {
		m.printf("[#%d] %s %s (%d active)", call.id, m.label, mode, active)
	}
	return call
}

// callRecord tracks one in-flight call. endOnce guarantees the active
// counter is decremented exactly once per beginCall, whether the call
// finishes, fails, or its stream closes without a terminal event.
type callRecord struct {
	monitor *Monitor
	id      uint64
	mode    string
	start   time.Time
	endOnce sync.Once
}

// end decrements the active counter and returns the post-decrement
// count, or -1 if this call already ended.
func (c *callRecord) end() int64 {
	ended := int64(-1)
	c.endOnce.Do(func() {
		ended = c.monitor.active.Add(-1)
	})
	return ended
}

// Generate performs a non-streaming call: the full response is
// collected and a single completion line is printed.
func (m *Monitor) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	call := m.beginCall("generate", req.Messages)

	resp, err := llm.Generate(ctx, m.provider, req)
	if err != nil {
		active := call.end()
		m.printf("[#%d] error after %s: %v (%d active)", call.id, elapsed(call.start), err, active)
		return nil, err
	}

	active := call.end()
	m.logCompletion(call, &resp.Usage, completionPreview(resp.Text, toolCallNames(resp.ToolCalls)), active)
	return resp, nil
}

// Stream begins a streaming call. The returned stream forwards every
// event from the underlying provider unchanged while accumulating the
// state needed for progress lines.
func (m *Monitor) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	call := m.beginCall("stream", req.Messages)

	inner, err := m.provider.Stream(ctx, req)
	if err != nil {
		active := call.end()
		m.printf("[#%d] error starting stream: %v (%d active)", call.id, err, active)
		return nil, err
	}

	return &monitoredStream{
		inner:       inner,
		call:        call,
		toolNames:   make(map[string]string),
		loggedCalls: make(map[string]bool),
		inputs:      make(map[string]*pendingInput),
	}, nil
}

// logCompletion prints the single consolidated line for a finished
// call. active is the counter value after this call's decrement.
func (m *Monitor) logCompletion(call *callRecord, usage *llm.Usage, preview string, active int64) {
	var in, out int
	if usage != nil {
		in = usage.InputTokens
		out = usage.OutputTokens
	}
	if preview != "" {
		m.printf("[#%d] done in %s (%d in / %d out tokens, %d active) %s",
			call.id, elapsed(call.start), in, out, active, quoteText(preview))
	} else {
		m.printf("[#%d] done in %s (%d in / %d out tokens, %d active)",
			call.id, elapsed(call.start), in, out, active)
	}
}

func (m *Monitor) printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if m.render != nil {
		line = m.render(line)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintln(m.out, line)
}

func elapsed(start time.Time) string {
	return fmt.Sprintf("%.2fs", time.Since(start).Seconds())
}

func quote(p Preview) string {
	text := p.Text
	if p.Truncated {
		text += "..."
	}
	return fmt.Sprintf("%q", text)
}

func quoteText(s string) string {
	return fmt.Sprintf("%q", s)
}

// completionPreview combines accumulated text with the distinct tool
// names a call invoked, each marked as a tool reference.
func completionPreview(text string, toolNames []string) string {
	preview := TextPreview(text)
	if len(toolNames) == 0 {
		return preview
	}
	var refs string
	for i, name := range toolNames {
		if i > 0 {
			refs += ", "
		}
		refs += "tool:" + name
	}
	if preview == "" {
		return refs
	}
	return preview + " " + refs
}

func toolCallNames(calls []llm.ToolCall) []string {
	var names []string
	seen := make(map[string]bool)
	for _, call := range calls {
		if seen[call.Name] {
			continue
		}
		seen[call.Name] = true
		names = append(names, call.Name)
	}
	return names
}
