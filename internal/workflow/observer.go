package workflow

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Observer receives callbacks from a running flow for logging and
// metrics. Callbacks must not mutate flow state; any of them may be
// invoked from the goroutine running the flow.
type Observer interface {
	// OnFlowStart is called once when Run begins.
	OnFlowStart(ctx context.Context, flow string, input any)

	// OnFlowCompleted is called when every step finished successfully.
	OnFlowCompleted(ctx context.Context, flow string, output any, duration time.Duration)

	// OnFlowFailed is called when a step fails or the context is done.
	OnFlowFailed(ctx context.Context, flow string, err error)

	// OnStepStart is called before invoking a step function.
	OnStepStart(ctx context.Context, flow, step string, index int)

	// OnStepCompleted is called after a step function returns, for
	// both success and failure.
	OnStepCompleted(ctx context.Context, flow, step string, index int, err error, duration time.Duration)
}

// NoopObserver is an Observer that does nothing.
type NoopObserver struct{}

func (NoopObserver) OnFlowStart(ctx context.Context, flow string, input any) {}
func (NoopObserver) OnFlowCompleted(ctx context.Context, flow string, output any, d time.Duration) {
}
func (NoopObserver) OnFlowFailed(ctx context.Context, flow string, err error)    {}
func (NoopObserver) OnStepStart(ctx context.Context, flow, step string, idx int) {}
func (NoopObserver) OnStepCompleted(ctx context.Context, flow, step string, idx int, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to
// each non-nil observer in order.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnFlowStart(ctx context.Context, flow string, input any) {
	for _, o := range c.observers {
		o.OnFlowStart(ctx, flow, input)
	}
}

func (c *CompositeObserver) OnFlowCompleted(ctx context.Context, flow string, output any, d time.Duration) {
	for _, o := range c.observers {
		o.OnFlowCompleted(ctx, flow, output, d)
	}
}

func (c *CompositeObserver) OnFlowFailed(ctx context.Context, flow string, err error) {
	for _, o := range c.observers {
		o.OnFlowFailed(ctx, flow, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, flow, step string, idx int) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, flow, step, idx)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, flow, step string, idx int, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, flow, step, idx, err, d)
	}
}

// LogObserver writes step lifecycle lines to w.
type LogObserver struct {
	W io.Writer
}

func (l LogObserver) OnFlowStart(ctx context.Context, flow string, input any) {
	fmt.Fprintf(l.W, "=== %s ===\n", flow)
}

func (l LogObserver) OnFlowCompleted(ctx context.Context, flow string, output any, d time.Duration) {
	fmt.Fprintf(l.W, "=== %s completed in %.2fs ===\n", flow, d.Seconds())
}

func (l LogObserver) OnFlowFailed(ctx context.Context, flow string, err error) {
	fmt.Fprintf(l.W, "=== %s failed: %v ===\n", flow, err)
}

func (l LogObserver) OnStepStart(ctx context.Context, flow, step string, idx int) {
	fmt.Fprintf(l.W, "--> %s\n", step)
}

func (l LogObserver) OnStepCompleted(ctx context.Context, flow, step string, idx int, err error, d time.Duration) {
	if err != nil {
		fmt.Fprintf(l.W, "<-- %s failed after %.2fs: %v\n", step, d.Seconds(), err)
		return
	}
	fmt.Fprintf(l.W, "<-- %s (%.2fs)\n", step, d.Seconds())
}
