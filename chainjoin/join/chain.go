// Package join executes conjunctive equi-join chains.
//
// A chain is a declarative list of stages. Stage 0 drives the scan; every
// later stage probes a hash index of its relation with a key taken from an
// earlier stage's tuple, filters the candidates with a local predicate and
// descends. Complete bindings that also satisfy the chain's global
// predicate are emitted to a sink in discovery order.
package join

import (
	"strings"

	"github.com/wbrown/janus-chainjoin/chainjoin/expr"
)

// StageSpec describes one position in a join chain
type StageSpec struct {
	// Name identifies the stage in predicates; defaults to Relation.
	// Distinct names let one relation appear more than once.
	Name string

	// Relation names the relation scanned or probed at this stage
	Relation string

	// KeyColumn is the column of this stage's relation that is indexed and
	// matched against the probe key. Ignored for the driving stage.
	KeyColumn int

	// Probe is the earlier stage column supplying the probe key. Nil for
	// the driving stage, required for every other stage.
	Probe *expr.ColumnRef

	// Where is the local predicate. It may reference this stage and any
	// earlier stage.
	Where expr.Predicate
}

// StageName returns the name predicates use for this stage
func (s StageSpec) StageName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Relation
}

// Chain is an ordered list of stages plus a predicate over complete bindings
type Chain struct {
	Stages []StageSpec
	Global expr.Predicate
}

// String renders the chain as S ⋈ R ⋈ ...
func (c Chain) String() string {
	names := make([]string, len(c.Stages))
	for i, s := range c.Stages {
		names[i] = s.StageName()
	}
	return strings.Join(names, " ⋈ ")
}

// Probe is shorthand for a probe reference
func Probe(stage string, column int) *expr.ColumnRef {
	ref := expr.Col(stage, column)
	return &ref
}

// DefaultChain returns the four-relation chain over S, R, U and T:
//
//	S.0 = R.1, R.0 = U.1, U.0 = T.1
//	where S.1 = 50 and U.1 = 100
//	global T.1 = 100, T.0 = 50, S.1 = T.0
func DefaultChain() Chain {
	return Chain{
		Stages: []StageSpec{
			{
				Relation: "S",
				Where:    expr.Eq(expr.Col("S", 1), expr.Const(50)),
			},
			{
				Relation:  "R",
				KeyColumn: 1,
				Probe:     Probe("S", 0),
			},
			{
				Relation:  "U",
				KeyColumn: 1,
				Probe:     Probe("R", 0),
				Where:     expr.Eq(expr.Col("U", 1), expr.Const(100)),
			},
			{
				Relation:  "T",
				KeyColumn: 1,
				Probe:     Probe("U", 0),
			},
		},
		Global: expr.And{
			expr.Eq(expr.Col("T", 1), expr.Const(100)),
			expr.Eq(expr.Col("T", 0), expr.Const(50)),
			expr.Eq(expr.Col("S", 1), expr.Col("T", 0)),
		},
	}
}
