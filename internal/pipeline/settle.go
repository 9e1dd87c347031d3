package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// outcome carries one concurrent task's result. Exactly one of val/err is
// meaningful; a captured panic arrives as an error.
type outcome[T any] struct {
	val T
	err error
}

// settle runs fn on its own goroutine and delivers exactly one outcome on
// the returned channel. A panic inside fn becomes an error instead of
// taking down the process, so failure isolation is visible at the type
// level rather than relying on each task catching its own crashes.
func settle[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan outcome[T] {
	out := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				out <- outcome[T]{val: zero, err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		out <- outcome[T]{val: v, err: err}
	}()
	return out
}

// raceStage races fn against its own deadline. ok is false when the
// deadline won or fn failed; the caller substitutes a fallback and the
// late result, if it ever arrives, is discarded.
func raceStage[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, bool) {
	var zero T
	raceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := settle(raceCtx, fn)
	select {
	case out := <-ch:
		if out.err != nil {
			logrus.Warnf("pipeline: raced stage failed: %v", out.err)
			return zero, false
		}
		if raceCtx.Err() != nil {
			return zero, false
		}
		return out.val, true
	case <-raceCtx.Done():
		return zero, false
	}
}
