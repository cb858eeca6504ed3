package join

import (
	"context"

	"github.com/wbrown/janus-chainjoin/chainjoin"
)

// NestedLoop runs chain without hash indexes: every probed stage scans its
// whole relation and compares the key column per tuple. Results and their
// order match a hash run over the same inputs.
func NestedLoop(ctx context.Context, chain Chain, relations map[string]*chainjoin.Relation, sink chainjoin.Sink) (Stats, error) {
	p, err := Compile(chain, relations, Options{Strategy: StrategyNestedLoop})
	if err != nil {
		return Stats{}, err
	}
	return p.Run(ctx, sink)
}

// Execute compiles chain and runs it once
func Execute(ctx context.Context, chain Chain, relations map[string]*chainjoin.Relation, sink chainjoin.Sink, opts Options) (Stats, error) {
	p, err := Compile(chain, relations, opts)
	if err != nil {
		return Stats{}, err
	}
	return p.Run(ctx, sink)
}
