// Package workflow provides a small fluent builder for composing the
// orchestration patterns the example commands demonstrate: sequential
// chains, parallel fan-out, conditional routing, and bounded
// evaluator/optimizer loops. Flows run in-process; each step receives
// the previous step's output.
package workflow

import (
	"context"
	"fmt"
	"time"
)

// StepFunc is a single unit of work. It receives the previous step's
// output and returns its own.
type StepFunc func(ctx context.Context, input any) (any, error)

// ConditionFunc decides an If branch.
type ConditionFunc func(input any) bool

// SelectorFunc picks a Switch branch by name.
type SelectorFunc func(ctx context.Context, input any) (string, error)

type stepDef struct {
	name string
	fn   StepFunc
}

// Flow is an ordered list of named steps built fluently:
//
//	out, err := workflow.New("support-router").
//	    Step("classify", classify).
//	    Switch("route", selector, branches, fallback).
//	    Run(ctx, ticket)
type Flow struct {
	name     string
	steps    []stepDef
	observer Observer
}

// New creates a new flow builder with the given name.
func New(name string) *Flow {
	return &Flow{name: name, observer: NoopObserver{}}
}

// Name returns the flow name.
func (f *Flow) Name() string {
	return f.name
}

// Observe sets the observer notified of flow and step lifecycle
// events. Defaults to a no-op.
func (f *Flow) Observe(obs Observer) *Flow {
	if obs == nil {
		obs = NoopObserver{}
	}
	f.observer = obs
	return f
}

// Step appends a basic step.
func (f *Flow) Step(name string, fn StepFunc) *Flow {
	if name == "" {
		panic("workflow: step name must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("workflow: step %q has nil function", name))
	}
	f.steps = append(f.steps, stepDef{name: name, fn: fn})
	return f
}

// Parallel appends a step that runs sub-steps concurrently against the
// same input, producing a []any of their outputs in declaration order.
func (f *Flow) Parallel(name string, steps ...StepFunc) *Flow {
	return f.Step(name, ParallelStep(steps...))
}

// If appends a conditional branching step.
func (f *Flow) If(name string, cond ConditionFunc, thenStep, elseStep StepFunc) *Flow {
	return f.Step(name, IfStep(cond, thenStep, elseStep))
}

// Switch appends a multi-branch step based on a selector and branch map.
func (f *Flow) Switch(name string, selector SelectorFunc, branches map[string]StepFunc, defaultStep StepFunc) *Flow {
	return f.Step(name, SwitchStep(selector, branches, defaultStep))
}

// Loop appends a step that repeats body while cond holds, up to
// maxIterations rounds.
func (f *Flow) Loop(name string, cond ConditionFunc, body StepFunc, maxIterations int) *Flow {
	return f.Step(name, LoopStep(cond, body, maxIterations))
}

// Run executes the flow sequentially. The input feeds the first step;
// each step's output feeds the next; the final output is returned.
// Execution stops at the first failing step.
func (f *Flow) Run(ctx context.Context, input any) (any, error) {
	start := time.Now()
	f.observer.OnFlowStart(ctx, f.name, input)

	current := input
	for i, step := range f.steps {
		if err := ctx.Err(); err != nil {
			f.observer.OnFlowFailed(ctx, f.name, err)
			return nil, err
		}

		f.observer.OnStepStart(ctx, f.name, step.name, i)
		stepStart := time.Now()
		output, err := step.fn(ctx, current)
		f.observer.OnStepCompleted(ctx, f.name, step.name, i, err, time.Since(stepStart))
		if err != nil {
			f.observer.OnFlowFailed(ctx, f.name, err)
			return nil, fmt.Errorf("step %q: %w", step.name, err)
		}
		current = output
	}

	f.observer.OnFlowCompleted(ctx, f.name, current, time.Since(start))
	return current, nil
}
