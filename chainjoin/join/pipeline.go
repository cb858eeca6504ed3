package join

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/annotations"
	"github.com/wbrown/janus-chainjoin/chainjoin/expr"
	"github.com/wbrown/janus-chainjoin/chainjoin/index"
	"github.com/wbrown/janus-chainjoin/chainjoin/logutil"
)

// stage is a compiled StageSpec
type stage struct {
	name      string
	rel       *chainjoin.Relation
	index     *index.HashIndex // nil for the driving stage and for nested-loop runs
	keyColumn int
	probe     expr.ColumnRef
	probePos  int // binding position supplying the probe key
	where     expr.Bound
	whereSrc  expr.Predicate
}

// Pipeline is a validated chain with its indexes built. It is read-only
// once compiled and may be run any number of times.
type Pipeline struct {
	chain     Chain
	stages    []*stage
	global    expr.Bound
	opts      Options
	logger    *zap.Logger
	collector *annotations.Collector
}

// Compile validates chain against relations and builds the hash index of
// every probed stage. Every configuration problem is reported here, before
// any tuple is scanned.
func Compile(chain Chain, relations map[string]*chainjoin.Relation, opts Options) (*Pipeline, error) {
	start := time.Now()

	p := &Pipeline{
		chain:     chain,
		opts:      opts,
		logger:    opts.Logger,
		collector: opts.Collector,
	}
	if p.logger == nil {
		p.logger = logutil.GetGlobalLogger()
	}

	if err := p.compile(relations); err != nil {
		p.collector.Add(annotations.Event{
			Name:  annotations.ErrorConfiguration,
			Start: start,
			End:   time.Now(),
			Data:  map[string]interface{}{"error": err},
		})
		return nil, err
	}

	p.collector.AddTiming(annotations.QueryCompiled, start, map[string]interface{}{
		"chain":        chain.String(),
		"stages.count": len(p.stages),
		"strategy":     opts.Strategy.String(),
	})
	p.logger.Debug("compiled join chain",
		zap.String("chain", chain.String()),
		zap.String("strategy", opts.Strategy.String()),
		zap.Duration("elapsed", time.Since(start)))

	return p, nil
}

func (p *Pipeline) compile(relations map[string]*chainjoin.Relation) error {
	specs := p.chain.Stages
	if len(specs) == 0 {
		return chainjoin.Configf(-1, "", "chain has no stages")
	}

	names := expr.Stages{
		Names:  make([]string, len(specs)),
		Widths: make([]int, len(specs)),
	}
	seen := make(map[string]int, len(specs))

	for i, spec := range specs {
		name := spec.StageName()
		if name == "" {
			return chainjoin.Configf(i, "", "stage has no relation")
		}
		if prev, dup := seen[name]; dup {
			return chainjoin.Configf(i, name, "stage name already used by stage %d", prev)
		}
		seen[name] = i

		rel, ok := relations[spec.Relation]
		if !ok || rel == nil {
			return chainjoin.Configf(i, name, "unknown relation %q", spec.Relation)
		}
		names.Names[i] = name
		names.Widths[i] = rel.Width

		p.stages = append(p.stages, &stage{
			name:      name,
			rel:       rel,
			keyColumn: spec.KeyColumn,
			whereSrc:  spec.Where,
		})
	}

	// Indexes are shared between stages probing the same relation on the
	// same column.
	type indexKey struct {
		relation string
		column   int
	}
	built := make(map[indexKey]*index.HashIndex)

	for i, spec := range specs {
		st := p.stages[i]

		if i == 0 {
			if spec.Probe != nil {
				return chainjoin.Configf(i, st.name, "driving stage cannot probe %s", spec.Probe)
			}
		} else {
			if spec.Probe == nil {
				return chainjoin.Configf(i, st.name, "stage needs a probe column from an earlier stage")
			}
			pos, err := names.ResolveColumn(*spec.Probe, i-1)
			if err != nil {
				return chainjoin.Configf(i, st.name, "probe: %v", reason(err))
			}
			if spec.KeyColumn < 0 || spec.KeyColumn >= st.rel.Width {
				return chainjoin.Configf(i, st.name, "key column %d out of range for width %d",
					spec.KeyColumn, st.rel.Width)
			}
			st.probe = *spec.Probe
			st.probePos = pos

			if p.opts.Strategy == StrategyHash {
				key := indexKey{relation: spec.Relation, column: spec.KeyColumn}
				idx, ok := built[key]
				if !ok {
					var err error
					idx, err = p.buildIndex(st.rel, spec.KeyColumn)
					if err != nil {
						return err
					}
					built[key] = idx
				}
				st.index = idx
			}
		}

		if expr.IsTrivial(spec.Where) {
			st.where = expr.Always
			continue
		}
		bound, err := spec.Where.Bind(names, i)
		if err != nil {
			return chainjoin.Configf(i, st.name, "where: %v", reason(err))
		}
		st.where = bound
	}

	p.global = expr.Always
	if !expr.IsTrivial(p.chain.Global) {
		bound, err := p.chain.Global.Bind(names, len(specs)-1)
		if err != nil {
			return chainjoin.Configf(-1, "", "global: %v", reason(err))
		}
		p.global = bound
	}

	return nil
}

func (p *Pipeline) buildIndex(rel *chainjoin.Relation, column int) (*index.HashIndex, error) {
	start := time.Now()
	idx, err := index.Build(rel, column)
	if err != nil {
		return nil, err
	}
	p.collector.AddTiming(annotations.RelationIndexed, start, map[string]interface{}{
		"relation":     rel.Name,
		"key.column":   column,
		"keys.count":   idx.Len(),
		"tuples.count": idx.Size(),
		"bucket.max":   idx.MaxBucket(),
	})
	p.logger.Debug("built hash index",
		zap.String("relation", rel.Name),
		zap.Int("column", column),
		zap.Int("keys", idx.Len()),
		zap.Int("tuples", idx.Size()))
	return idx, nil
}

// reason strips the ConfigurationError prefix so the stage context added by
// the caller is not repeated.
func reason(err error) string {
	var ce *chainjoin.ConfigurationError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return err.Error()
}

// Chain returns the chain the pipeline was compiled from
func (p *Pipeline) Chain() Chain {
	return p.chain
}

// Stages returns the number of stages
func (p *Pipeline) Stages() int {
	return len(p.stages)
}

// Index returns the hash index probed at stage i, or nil
func (p *Pipeline) Index(i int) *index.HashIndex {
	if i < 0 || i >= len(p.stages) {
		return nil
	}
	return p.stages[i].index
}

// Explain describes the compiled plan, one line per stage
func (p *Pipeline) Explain() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "chain %s (%s)\n", p.chain.String(), p.opts.Strategy)
	for i, st := range p.stages {
		if i == 0 {
			fmt.Fprintf(&sb, "  %d scan  %s (%d tuples)", i, st.name, st.rel.Len())
		} else {
			fmt.Fprintf(&sb, "  %d probe %s[%d] = %s (%d tuples", i, st.name, st.keyColumn, st.probe, st.rel.Len())
			if st.index != nil {
				fmt.Fprintf(&sb, ", %d keys", st.index.Len())
			}
			sb.WriteString(")")
		}
		if !expr.IsTrivial(st.whereSrc) {
			fmt.Fprintf(&sb, " where %s", st.whereSrc)
		}
		sb.WriteString("\n")
	}
	if !expr.IsTrivial(p.chain.Global) {
		fmt.Fprintf(&sb, "  global %s\n", p.chain.Global)
	}
	return sb.String()
}
