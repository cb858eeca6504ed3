package join

import (
	"go.uber.org/zap"

	"github.com/wbrown/janus-chainjoin/chainjoin/annotations"
)

// Strategy selects how non-driving stages find their candidates
type Strategy int

const (
	// StrategyHash probes a pre-built hash index per stage
	StrategyHash Strategy = iota

	// StrategyNestedLoop scans every stage's relation in full and checks
	// the join key per tuple. It exists as a reference for StrategyHash.
	StrategyNestedLoop
)

func (s Strategy) String() string {
	switch s {
	case StrategyHash:
		return "hash"
	case StrategyNestedLoop:
		return "nested-loop"
	default:
		return "unknown"
	}
}

// Options controls pipeline execution
type Options struct {
	Strategy Strategy

	// Limit stops the run after this many emissions. 0 means no limit.
	Limit int

	// Workers > 1 splits the driving relation into batches evaluated in
	// parallel. Output order is unchanged. Matches of a batch are held in
	// memory until every earlier batch has been emitted; at most Workers*2
	// batches are evaluated ahead of the sink, so memory grows with
	// Workers*2*BatchSize driving rows' worth of results.
	Workers int

	// BatchSize is the number of driving rows per parallel batch. If 0, uses 4096.
	BatchSize int

	// Collector receives execution events. Nil disables annotations.
	Collector *annotations.Collector

	// Logger receives debug logging. Nil uses the global logger.
	Logger *zap.Logger
}

const defaultBatchSize = 4096

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return defaultBatchSize
}
