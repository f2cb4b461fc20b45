package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/tilegrid/pkg/sequence"
)

// Concurrent runs the action for each element of the iterator in its own
// goroutine and waits for all of them. The first error encountered is
// returned.
func Concurrent[T any](i *sequence.Iterator[T], action func(T) error) error {
	errGroup := errgroup.Group{}
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		errGroup.Go(func() error {
			return action(value)
		})
	}

	return errGroup.Wait()
}

// ConcurrentLimit runs the action for each element with at most workers
// goroutines in flight. The derived context is cancelled on the first error;
// remaining elements still queued are skipped once cancellation is observed.
// Cancellation of the parent context is reported even when no action failed.
func ConcurrentLimit[T any](parent context.Context, workers int, i *sequence.Iterator[T], action func(context.Context, T) error) error {
	group, ctx := errgroup.WithContext(parent)
	if workers > 0 {
		group.SetLimit(workers)
	}
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		group.Go(func() error {
			return action(ctx, value)
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	return parent.Err()
}
