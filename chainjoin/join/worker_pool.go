package join

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// WorkerPool runs indexed jobs on a fixed number of goroutines.
// Callers store per-job results by index, which keeps output ordering
// independent of scheduling.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a new worker pool
// workerCount: number of worker goroutines (0 = use NumCPU)
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// Execute calls operation for every job index in [0, jobs).
//
// Once ctx is done, jobs that have not started are skipped. The returned
// error is the failure with the lowest job index, so it does not depend on
// which worker finished first.
func (p *WorkerPool) Execute(ctx context.Context, jobs int, operation func(context.Context, int) error) error {
	if jobs == 0 {
		return nil
	}

	errs := make([]error, jobs)
	queue := make(chan int, jobs)

	workers := p.workerCount
	if workers > jobs {
		workers = jobs
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				errs[idx] = operation(ctx, idx)
			}
		}()
	}

	for i := 0; i < jobs; i++ {
		queue <- i
	}
	close(queue)

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("parallel execution failed at job %d: %w", i, err)
		}
	}
	return nil
}

// WorkerCount returns the number of worker goroutines
func (p *WorkerPool) WorkerCount() int {
	return p.workerCount
}
