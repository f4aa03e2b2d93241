package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts tunes Retry. MaxWait <= 0 leaves the backoff uncapped. Jitter
// spreads each wait over [0.5x, 1.5x] so synchronized callers fan out.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// Retry runs f until it succeeds, the attempts run out, or ctx is done. The
// wait doubles between attempts starting from InitialWait. The last failure
// is returned as-is; cancellation during a wait returns ctx.Err instead.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	wait := opts.InitialWait
	for attempt := 1; ; attempt++ {
		res := f(ctx)
		if res.IsOk() || attempt >= opts.MaxAttempts {
			return res
		}
		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(jittered(wait, opts)):
		}
		wait = clampWait(wait*2, opts.MaxWait)
	}
}

func jittered(wait time.Duration, opts RetryOpts) time.Duration {
	if opts.Jitter {
		wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	}
	return clampWait(wait, opts.MaxWait)
}

func clampWait(wait, limit time.Duration) time.Duration {
	if limit > 0 && wait > limit {
		return limit
	}
	return wait
}

// RetryStage lifts Retry over a Stage, re-running it with the same input.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}
