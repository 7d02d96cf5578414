package utils

import (
	"context"
	"fmt"
	"sync"
)

type CompletedTask[In any, Out any] struct {
	Input  In
	Result Out
	Error  error
}

// RunInPool drains queue with at most maxWorkers goroutines and closes completed
// once every item has been reported. Items still queued when ctx is cancelled
// are reported with the context error without running. A panicking worker is
// reported as an error for that item only.
func RunInPool[In any, Out any](ctx context.Context, worker func(context.Context, In) (Out, error), queue chan In, completed chan CompletedTask[In, Out], maxWorkers int) {
	workers := max(min(len(queue), maxWorkers), 1)

	go func() {
		wg := sync.WaitGroup{}
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()

				for next := range queue {
					if err := ctx.Err(); err != nil {
						completed <- CompletedTask[In, Out]{Input: next, Error: err}
						continue
					}

					res, err := runRecovered(ctx, worker, next)
					if err != nil {
						completed <- CompletedTask[In, Out]{Input: next, Error: err}
					} else {
						completed <- CompletedTask[In, Out]{Input: next, Result: res}
					}
				}
			}()
		}

		wg.Wait()

		close(completed)
	}()
}

func runRecovered[In any, Out any](ctx context.Context, worker func(context.Context, In) (Out, error), in In) (res Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return worker(ctx, in)
}
