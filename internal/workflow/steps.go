package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ParallelStep runs all provided step funcs concurrently against the
// same input and returns a []any of their outputs in declaration
// order. The first failure cancels the remaining steps.
func ParallelStep(steps ...StepFunc) StepFunc {
	return func(ctx context.Context, input any) (any, error) {
		outputs := make([]any, len(steps))
		group, ctx := errgroup.WithContext(ctx)
		for i, step := range steps {
			group.Go(func() error {
				out, err := step(ctx, input)
				if err != nil {
					return err
				}
				outputs[i] = out
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
		return outputs, nil
	}
}

// MapStep runs mapper over each element of a []any input concurrently,
// bounded by limit goroutines (0 = unbounded), preserving order.
func MapStep(mapper StepFunc, limit int) StepFunc {
	return func(ctx context.Context, input any) (any, error) {
		items, ok := input.([]any)
		if !ok {
			return nil, fmt.Errorf("map step expects []any input, got %T", input)
		}
		outputs := make([]any, len(items))
		group, ctx := errgroup.WithContext(ctx)
		if limit > 0 {
			group.SetLimit(limit)
		}
		for i, item := range items {
			group.Go(func() error {
				out, err := mapper(ctx, item)
				if err != nil {
					return err
				}
				outputs[i] = out
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
		return outputs, nil
	}
}

// IfStep creates a conditional step composed of then/else branches.
// A nil branch passes the input through unchanged.
func IfStep(cond ConditionFunc, thenStep, elseStep StepFunc) StepFunc {
	return func(ctx context.Context, input any) (any, error) {
		branch := elseStep
		if cond(input) {
			branch = thenStep
		}
		if branch == nil {
			return input, nil
		}
		return branch(ctx, input)
	}
}

// SwitchStep dispatches to a branch based on a selector. An unknown
// branch name falls back to defaultStep; with no default it fails.
func SwitchStep(selector SelectorFunc, branches map[string]StepFunc, defaultStep StepFunc) StepFunc {
	return func(ctx context.Context, input any) (any, error) {
		name, err := selector(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("switch selector: %w", err)
		}
		branch, ok := branches[name]
		if !ok {
			branch = defaultStep
		}
		if branch == nil {
			return nil, fmt.Errorf("no branch for %q and no default", name)
		}
		return branch(ctx, input)
	}
}

// LoopStep repeatedly executes body while cond(input) is true, feeding
// each iteration's output into the next, bounded by maxIterations.
func LoopStep(cond ConditionFunc, body StepFunc, maxIterations int) StepFunc {
	return func(ctx context.Context, input any) (any, error) {
		current := input
		for i := 0; i < maxIterations && cond(current); i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out, err := body(ctx, current)
			if err != nil {
				return nil, err
			}
			current = out
		}
		return current, nil
	}
}

// TypedStep wraps a strongly-typed function into a StepFunc.
// Example:
//
//	workflow.TypedStep(func(ctx context.Context, d Draft) (Review, error) { ... })
func TypedStep[I, O any](fn func(context.Context, I) (O, error)) StepFunc {
	return func(ctx context.Context, input any) (any, error) {
		typed, ok := input.(I)
		if !ok {
			var zero I
			return nil, fmt.Errorf("step expects %T input, got %T", zero, input)
		}
		return fn(ctx, typed)
	}
}
