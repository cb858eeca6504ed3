package join

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/annotations"
)

// parallelWindow is how many batches per worker may be evaluated ahead of
// the batch currently being emitted.
const parallelWindow = 2

// match is a buffered binding and the driving row that produced it
type match struct {
	row     int
	binding chainjoin.Binding
}

type batchResult struct {
	matches []match
	stats   Stats
	err     error
}

// reorder hands finished batches to the emitting goroutine in batch order
// and holds workers back once they get a full window ahead of it.
type reorder struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    int // lowest batch not yet taken
	window  int
	results []batchResult
	done    []bool
	stopped bool
}

func newReorder(batches, window int) *reorder {
	r := &reorder{
		window:  window,
		results: make([]batchResult, batches),
		done:    make([]bool, batches),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// admit blocks until batch i is inside the window. It returns false once
// the run has stopped and the batch should be skipped.
func (r *reorder) admit(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i >= r.next+r.window && !r.stopped {
		r.cond.Wait()
	}
	return !r.stopped
}

func (r *reorder) finish(i int, res batchResult) {
	r.mu.Lock()
	r.results[i] = res
	r.done[i] = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

// take waits for batch i and releases its slot. ok is false when the run
// stopped before batch i finished.
func (r *reorder) take(i int) (res batchResult, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for !r.done[i] && !r.stopped {
		r.cond.Wait()
	}
	if !r.done[i] {
		return batchResult{}, false
	}
	res = r.results[i]
	r.results[i] = batchResult{}
	r.next = i + 1
	r.cond.Broadcast()
	return res, true
}

func (r *reorder) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

// errBatchFailed marks an emission loop ended by a failed or skipped batch;
// the pool reports the underlying error.
var errBatchFailed = errors.New("batch did not complete")

// runParallel splits the driving relation into contiguous batches. Each
// batch walks its rows with a private execution and binding, reading the
// shared indexes only. Matches are buffered per batch and emitted in batch
// order as soon as every earlier batch has been emitted, so the sink sees
// exactly the sequential order. At most Workers*parallelWindow batches are
// buffered at once.
func (p *Pipeline) runParallel(ctx context.Context, sink chainjoin.Sink) (Stats, error) {
	n := p.stages[0].rel.Len()
	size := p.opts.batchSize()
	batches := (n + size - 1) / size

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := NewWorkerPool(p.opts.Workers)
	order := newReorder(batches, pool.WorkerCount()*parallelWindow)

	job := func(ctx context.Context, i int) error {
		if !order.admit(i) {
			return nil
		}
		start := time.Now()
		from := i * size
		to := min(from+size, n)

		var buf []match
		e := p.newExecution(nil)
		e.sink = chainjoin.SinkFunc(func(b chainjoin.Binding) error {
			buf = append(buf, match{row: e.row, binding: b.Clone()})
			return nil
		})
		if err := e.scan(ctx, from, to); err != nil && !errors.Is(err, errLimitReached) {
			order.finish(i, batchResult{err: err})
			return err
		}
		order.finish(i, batchResult{matches: buf, stats: e.stats})

		p.collector.AddTiming(annotations.BatchComplete, start, map[string]interface{}{
			"batch":         i,
			"rows.start":    from,
			"rows.end":      to - 1,
			"results.count": len(buf),
		})
		return nil
	}

	poolDone := make(chan error, 1)
	go func() {
		err := pool.Execute(ctx, batches, job)
		order.stop()
		poolDone <- err
	}()

	stats := newStats(p)
	// Emission counters reflect what the sink actually received
	var emitted int64
	sent := roaring.New()
	limit := int64(p.opts.Limit)

	emitErr := func() error {
		for i := 0; i < batches; i++ {
			res, ok := order.take(i)
			if !ok || res.err != nil {
				return errBatchFailed
			}
			stats.merge(res.stats)
			for _, m := range res.matches {
				if err := sink.Emit(m.binding); err != nil {
					return err
				}
				emitted++
				sent.Add(uint32(m.row))
				if limit > 0 && emitted >= limit {
					return errLimitReached
				}
			}
		}
		return nil
	}()

	order.stop()
	cancel()
	poolErr := <-poolDone

	stats.Emitted = emitted
	stats.Matched = sent

	switch {
	case errors.Is(emitErr, errBatchFailed):
		if poolErr == nil {
			poolErr = ctx.Err()
		}
		return stats, poolErr
	case emitErr != nil:
		return stats, emitErr
	default:
		return stats, poolErr
	}
}
