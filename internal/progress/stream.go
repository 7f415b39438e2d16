package progress

import (
	"io"
	"strings"
	"sync"

	"agentflow/internal/llm"
)

// monitoredStream decorates a provider stream. Every event is returned
// to the consumer exactly as received; between receives it updates the
// per-call accumulators and prints immediate lines for notable events.
type monitoredStream struct {
	inner llm.Stream
	call  *callRecord

	mu       sync.Mutex
	finished bool // Terminal bookkeeping done (finish event or abnormal close)

	text      strings.Builder
	reasoning strings.Builder

	// toolNames maps call ids to tool names for result correlation; it
	// survives until the call ends. loggedCalls prevents a second line
	// when a provider emits both streamed input events and the final
	// atomic tool-call for the same id.
	toolNames   map[string]string
	loggedCalls map[string]bool
	toolOrder   []string // Distinct tool names in first-use order

	// inputs holds partially-assembled argument text for streamed tool
	// calls, keyed by the transient input id; released on input end.
	inputs map[string]*pendingInput

	usage *llm.Usage
}

type pendingInput struct {
	name string
	args strings.Builder
}

func (s *monitoredStream) Recv() (llm.Event, error) {
	event, err := s.inner.Recv()
	if err == io.EOF {
		s.abnormalEnd("stream closed without a finish event")
		return event, err
	}
	if err != nil {
		s.streamFailed(err)
		return event, err
	}

	s.observe(event)
	return event, nil
}

func (s *monitoredStream) Close() error {
	s.abnormalEnd("stream closed before completion")
	return s.inner.Close()
}

// observe updates accumulators and prints immediate lines. The event
// itself is never modified.
func (s *monitoredStream) observe(event llm.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Anything after the terminal event is forwarded but not tracked.
	if s.finished {
		return
	}

	m := s.call.monitor
	switch event.Type {
	case llm.EventTextDelta:
		s.text.WriteString(event.Text)

	case llm.EventReasoningDelta:
		s.reasoning.WriteString(event.Text)

	case llm.EventReasoningEnd:
		if m.showReasoning && s.reasoning.Len() > 0 {
			m.printf("[#%d] reasoning %s", s.call.id, quoteText(TextPreview(s.reasoning.String())))
		}

	case llm.EventToolInputStart:
		s.toolNames[event.InputID] = event.ToolName
		s.inputs[event.InputID] = &pendingInput{name: event.ToolName}

	case llm.EventToolInputDelta:
		if input, ok := s.inputs[event.InputID]; ok {
			input.args.WriteString(event.InputText)
		}

	case llm.EventToolInputEnd:
		input, ok := s.inputs[event.InputID]
		if !ok {
			return
		}
		s.recordToolUse(input.name)
		s.loggedCalls[event.InputID] = true
		m.printf("[#%d] tool call %s(%s)", s.call.id, input.name, formatJSON([]byte(input.args.String())))
		delete(s.inputs, event.InputID)

	case llm.EventToolCall:
		if event.Tool == nil {
			return
		}
		// Normalize the dual-named argument payload at the boundary
		call := *event.Tool
		call.Arguments = call.RawArguments()
		s.toolNames[call.ID] = call.Name
		s.recordToolUse(call.Name)
		if !s.loggedCalls[call.ID] {
			s.loggedCalls[call.ID] = true
			m.printf("[#%d] tool call %s(%s)", s.call.id, call.Name, formatJSON(call.Arguments))
		}

	case llm.EventToolResult:
		if event.Result == nil {
			return
		}
		name := s.toolNames[event.Result.ID]
		if name == "" {
			name = event.Result.Name
		}
		if name == "" {
			name = "unknown"
		}
		m.printf("[#%d] tool result %s %s", s.call.id, name,
			quoteText(truncate(normalizeWhitespace(event.Result.Content), resultBudget)))

	case llm.EventUsage:
		if event.Use != nil {
			if s.usage == nil {
				s.usage = &llm.Usage{}
			}
			s.usage.InputTokens += event.Use.InputTokens
			s.usage.OutputTokens += event.Use.OutputTokens
			s.usage.CachedInputTokens += event.Use.CachedInputTokens
		}

	case llm.EventRetry:
		m.printf("[#%d] transient failure, retry %d/%d in %.1fs",
			s.call.id, event.RetryAttempt, event.RetryMaxAttempts, event.RetryWaitSecs)

	case llm.EventError:
		// In-band error: logged and forwarded, not terminal
		m.printf("[#%d] error event: %v", s.call.id, event.Err)

	case llm.EventDone:
		s.finished = true
		usage := s.usage
		if event.Use != nil {
			usage = event.Use
		}
		active := s.call.end()
		m.logCompletion(s.call, usage, completionPreview(s.text.String(), s.toolOrder), active)
		s.clear()
	}
}

// recordToolUse tracks the distinct tools a call invoked, preserving
// first-use order for the completion preview.
func (s *monitoredStream) recordToolUse(name string) {
	for _, existing := range s.toolOrder {
		if existing == name {
			return
		}
	}
	s.toolOrder = append(s.toolOrder, name)
}

// abnormalEnd handles streams that terminate without a finish event:
// the counter is still decremented exactly once and a warning is
// printed instead of a completion line.
func (s *monitoredStream) abnormalEnd(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	active := s.call.end()
	s.call.monitor.printf("[#%d] warning: %s after %s (%d active)",
		s.call.id, reason, elapsed(s.call.start), active)
	s.clear()
}

// streamFailed handles a hard receive error (the caller sees the same
// error unchanged).
func (s *monitoredStream) streamFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	active := s.call.end()
	s.call.monitor.printf("[#%d] stream failed after %s: %v (%d active)",
		s.call.id, elapsed(s.call.start), err, active)
	s.clear()
}

// clear releases the per-call accumulators. Callers hold s.mu.
func (s *monitoredStream) clear() {
	s.text.Reset()
	s.reasoning.Reset()
	s.toolNames = nil
	s.loggedCalls = nil
	s.inputs = nil
	s.toolOrder = nil
	s.usage = nil
}
