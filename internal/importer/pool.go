package importer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one pooled task.
type Result[R any] struct {
	Value R
	Err   error
}

func (r Result[R]) OK() bool { return r.Err == nil }

// RunLimited runs task over items with at most limit tasks in flight. A slot
// is refilled as soon as a task returns. Results keep the order of items and
// a failing task never cancels the others. A panicking task is reported as
// that item's error.
func RunLimited[T, R any](ctx context.Context, items []T, limit int, task func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					results[i] = Result[R]{Err: fmt.Errorf("panic: %v", p)}
				}
			}()
			if err := ctx.Err(); err != nil {
				results[i] = Result[R]{Err: err}
				return nil
			}
			v, err := task(ctx, item)
			results[i] = Result[R]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
