package join

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/annotations"
)

// errLimitReached ends a run once Options.Limit bindings have been emitted
var errLimitReached = errors.New("emission limit reached")

// ctxCheckInterval is how many driving rows are scanned between context checks
const ctxCheckInterval = 1024

// execution is the mutable state of one walk over (part of) the driving
// relation. Each recursion level owns its loop cursor; the only shared
// state is the binding, where level i writes position i exclusively.
//
// CONCURRENCY: an execution is NOT thread-safe. Parallel runs create one
// per batch and share only the read-only pipeline.
type execution struct {
	p       *Pipeline
	sink    chainjoin.Sink
	binding chainjoin.Binding
	stats   Stats
	limit   int64
	last    int
	row     int // current driving row
}

func (p *Pipeline) newExecution(sink chainjoin.Sink) *execution {
	return &execution{
		p:       p,
		sink:    sink,
		binding: make(chainjoin.Binding, len(p.stages)),
		stats:   newStats(p),
		limit:   int64(p.opts.Limit),
		last:    len(p.stages) - 1,
	}
}

// scan walks driving rows [from, to)
func (e *execution) scan(ctx context.Context, from, to int) error {
	driving := e.p.stages[0]
	counters := &e.stats.Stages[0]

	for row := from; row < to; row++ {
		if (row-from)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		e.row = row
		e.stats.Driving++
		counters.Candidates++
		e.binding[0] = driving.rel.Tuples[row]
		if !driving.where.Eval(e.binding) {
			continue
		}
		counters.Passed++

		before := e.stats.Emitted
		var err error
		if e.last == 0 {
			err = e.complete()
		} else {
			err = e.descend(1)
		}
		if e.stats.Emitted > before {
			e.stats.Matched.Add(uint32(row))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// descend binds stage depth to every candidate matching the probe key
func (e *execution) descend(depth int) error {
	st := e.p.stages[depth]
	counters := &e.stats.Stages[depth]
	key := e.binding[st.probePos][st.probe.Column]
	counters.Probes++

	var candidates []chainjoin.Tuple
	if st.index != nil {
		candidates = st.index.Lookup(key)
	} else {
		candidates = st.rel.Tuples
	}

	found := false
	for _, t := range candidates {
		if st.index == nil && t[st.keyColumn] != key {
			continue
		}
		found = true
		counters.Candidates++

		e.binding[depth] = t
		if !st.where.Eval(e.binding) {
			continue
		}
		counters.Passed++

		var err error
		if depth == e.last {
			err = e.complete()
		} else {
			err = e.descend(depth + 1)
		}
		if err != nil {
			return err
		}
	}
	if !found {
		counters.Misses++
	}
	return nil
}

// complete applies the global predicate and emits the binding
func (e *execution) complete() error {
	if !e.p.global.Eval(e.binding) {
		e.stats.GlobalRejected++
		return nil
	}
	if err := e.sink.Emit(e.binding); err != nil {
		return err
	}
	e.stats.Emitted++
	if e.limit > 0 && e.stats.Emitted >= e.limit {
		return errLimitReached
	}
	return nil
}

// Run executes the chain to completion, emitting every complete binding to
// sink in discovery order. A sink returning chainjoin.ErrStop, or reaching
// Options.Limit, ends the run without error.
func (p *Pipeline) Run(ctx context.Context, sink chainjoin.Sink) (Stats, error) {
	if sink == nil {
		return Stats{}, fmt.Errorf("join: nil sink")
	}
	start := time.Now()
	p.collector.Add(annotations.Event{
		Name:  annotations.QueryInvoked,
		Start: start,
		End:   start,
		Data:  map[string]interface{}{"chain": p.chain.String()},
	})

	var (
		stats Stats
		err   error
	)
	driving := p.stages[0].rel.Len()
	if p.opts.Workers > 1 && driving > p.opts.batchSize() {
		stats, err = p.runParallel(ctx, sink)
	} else {
		e := p.newExecution(sink)
		err = e.scan(ctx, 0, driving)
		stats = e.stats
	}
	if errors.Is(err, errLimitReached) || errors.Is(err, chainjoin.ErrStop) {
		err = nil
	}
	stats.Duration = time.Since(start)

	p.report(start, stats, err)
	return stats, err
}

// report publishes per-stage counters and the completion event
func (p *Pipeline) report(start time.Time, stats Stats, err error) {
	end := time.Now()
	for _, st := range stats.Stages {
		p.collector.Add(annotations.Event{
			Name:    annotations.StageComplete,
			Start:   start,
			End:     end,
			Latency: end.Sub(start),
			Data: map[string]interface{}{
				"stage":      st.Stage,
				"relation":   st.Name,
				"candidates": st.Candidates,
				"passed":     st.Passed,
				"probes":     st.Probes,
				"misses":     st.Misses,
			},
		})
	}

	data := map[string]interface{}{
		"success":       err == nil,
		"results.count": stats.Emitted,
		"driving.count": stats.Driving,
		"matched.count": stats.MatchedRows(),
	}
	if err != nil {
		data["error"] = err
	}
	p.collector.AddTiming(annotations.QueryComplete, start, data)

	if err != nil {
		p.logger.Debug("join chain failed", zap.String("chain", p.chain.String()), zap.Error(err))
		return
	}
	p.logger.Debug("join chain completed",
		zap.String("chain", p.chain.String()),
		zap.Int64("driving", stats.Driving),
		zap.Int64("emitted", stats.Emitted),
		zap.Duration("elapsed", stats.Duration))
}
