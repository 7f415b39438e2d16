package llm

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

// flakyProvider fails n times before succeeding.
type flakyProvider struct {
	failures int
	err      error
	attempts int
}

func (p *flakyProvider) Name() string { return "flaky" }

func (p *flakyProvider) Capabilities() Capabilities { return Capabilities{} }

func (p *flakyProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	p.attempts++
	if p.attempts <= p.failures {
		return nil, p.err
	}
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		events <- Event{Type: EventTextDelta, Text: "recovered"}
		events <- Event{Type: EventDone}
		return nil
	}), nil
}

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	provider := &flakyProvider{failures: 2, err: errors.New("429 too many requests")}
	wrapped := WrapWithRetry(provider, fastRetryConfig(5))

	stream, err := wrapped.Stream(context.Background(), Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}

	var text string
	retries := 0
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("recv error: %v", err)
		}
		switch event.Type {
		case EventTextDelta:
			text += event.Text
		case EventRetry:
			retries++
			if event.RetryMaxAttempts != 5 {
				t.Errorf("RetryMaxAttempts = %d, want 5", event.RetryMaxAttempts)
			}
		}
	}

	if text != "recovered" {
		t.Errorf("text = %q, want recovered", text)
	}
	if retries != 2 {
		t.Errorf("retry events = %d, want 2", retries)
	}
	if provider.attempts != 3 {
		t.Errorf("provider attempts = %d, want 3", provider.attempts)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	cause := errors.New("503 service unavailable")
	provider := &flakyProvider{failures: 100, err: cause}
	wrapped := WrapWithRetry(provider, fastRetryConfig(3))

	stream, err := wrapped.Stream(context.Background(), Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}

	for {
		_, err := stream.Recv()
		if err == io.EOF {
			t.Fatal("expected terminal error, got clean EOF")
		}
		if err != nil {
			if err.Error() != cause.Error() {
				t.Errorf("err = %v, want %v", err, cause)
			}
			break
		}
	}
	if provider.attempts != 3 {
		t.Errorf("provider attempts = %d, want 3", provider.attempts)
	}
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	provider := &flakyProvider{failures: 100, err: errors.New("invalid api key")}
	wrapped := WrapWithRetry(provider, fastRetryConfig(5))

	stream, err := wrapped.Stream(context.Background(), Request{})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	for {
		_, err := stream.Recv()
		if err == io.EOF {
			t.Fatal("expected error, got clean EOF")
		}
		if err != nil {
			break
		}
	}
	if provider.attempts != 1 {
		t.Errorf("provider attempts = %d, want 1 (no retry)", provider.attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{msg: "429 Too Many Requests", want: true},
		{msg: "rate limit exceeded", want: true},
		{msg: "502 Bad Gateway", want: true},
		{msg: "server overloaded", want: true},
		{msg: "connection refused", want: true},
		{msg: "context deadline exceeded", want: true},
		{msg: "invalid request: missing model", want: false},
		{msg: "unauthorized", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.msg, func(t *testing.T) {
			if got := isRetryable(errors.New(tc.msg)); got != tc.want {
				t.Errorf("isRetryable(%q) = %v, want %v", tc.msg, got, tc.want)
			}
		})
	}
	if isRetryable(nil) {
		t.Error("nil error must not be retryable")
	}
}

func TestCalculateBackoffHonorsRetryAfter(t *testing.T) {
	r := &RetryProvider{config: RetryConfig{
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
	}}

	got := r.calculateBackoff(1, errors.New("429: retry-after: 7"))
	if got != 7*time.Second {
		t.Errorf("backoff = %v, want 7s from retry-after", got)
	}

	// Retry-After above the cap is clamped.
	got = r.calculateBackoff(1, errors.New("retry after 120"))
	if got != 30*time.Second {
		t.Errorf("backoff = %v, want capped at 30s", got)
	}
}

func TestCalculateBackoffExponentialWithJitter(t *testing.T) {
	r := &RetryProvider{config: RetryConfig{
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
	}}

	for attempt := 1; attempt <= 4; attempt++ {
		expected := float64(time.Second) * float64(int(1)<<(attempt-1))
		for i := 0; i < 20; i++ {
			got := float64(r.calculateBackoff(attempt, errors.New("overloaded")))
			if got < expected*0.75-1 || got > expected*1.25+1 {
				t.Errorf("attempt %d backoff = %v, want within 25%% of %v",
					attempt, time.Duration(got), time.Duration(expected))
			}
		}
	}

	// Never exceeds the cap regardless of attempt.
	if got := r.calculateBackoff(10, errors.New("overloaded")); got > 30*time.Second {
		t.Errorf("backoff = %v exceeds cap", got)
	}
}
