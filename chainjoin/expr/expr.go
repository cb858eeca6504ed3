// Package expr implements typed predicates over the columns of join stages.
//
// Predicates are written as EDN forms such as (= S.1 50) or
// (and (< 0 R.0 10) (!= R.1 U.0)) and are evaluated against a Binding once
// stage names have been resolved to chain positions with Bind.
package expr

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-chainjoin/chainjoin"
)

// CompareOp represents comparison operators
type CompareOp string

const (
	OpEQ  CompareOp = "="
	OpNE  CompareOp = "!="
	OpLT  CompareOp = "<"
	OpLTE CompareOp = "<="
	OpGT  CompareOp = ">"
	OpGTE CompareOp = ">="
)

func (op CompareOp) apply(a, b int64) bool {
	switch op {
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	case OpLT:
		return a < b
	case OpLTE:
		return a <= b
	case OpGT:
		return a > b
	case OpGTE:
		return a >= b
	}
	return false
}

func (op CompareOp) valid() bool {
	switch op {
	case OpEQ, OpNE, OpLT, OpLTE, OpGT, OpGTE:
		return true
	}
	return false
}

// Term is either a column of a named stage or an integer constant
type Term interface {
	String() string
	bind(r Resolver, limit int) (boundTerm, error)
}

// ColumnRef names a column of a stage, written Stage.Column (S.1)
type ColumnRef struct {
	Stage  string
	Column int
}

func (c ColumnRef) String() string {
	return fmt.Sprintf("%s.%d", c.Stage, c.Column)
}

func (c ColumnRef) bind(r Resolver, limit int) (boundTerm, error) {
	pos, err := r.ResolveColumn(c, limit)
	if err != nil {
		return boundTerm{}, err
	}
	return boundTerm{stage: pos, column: c.Column}, nil
}

// Constant is an integer literal
type Constant struct {
	Value int64
}

func (c Constant) String() string {
	return fmt.Sprintf("%d", c.Value)
}

func (c Constant) bind(Resolver, int) (boundTerm, error) {
	return boundTerm{constant: true, value: c.Value}, nil
}

// Predicate is an unresolved boolean expression over stage columns
type Predicate interface {
	String() string

	// References returns every column the predicate reads
	References() []ColumnRef

	// Bind resolves stage names and validates columns. Only stages at
	// positions <= limit may be referenced.
	Bind(r Resolver, limit int) (Bound, error)
}

// Bound is a predicate ready to be evaluated against a binding
type Bound interface {
	Eval(b chainjoin.Binding) bool
}

// Resolver maps a column reference to a chain position
type Resolver interface {
	ResolveColumn(ref ColumnRef, limit int) (int, error)
}

// Comparison applies Op to each adjacent pair of Terms: (< 0 S.1 100)
type Comparison struct {
	Op    CompareOp
	Terms []Term
}

// Compare builds a two-term comparison
func Compare(op CompareOp, left, right Term) Comparison {
	return Comparison{Op: op, Terms: []Term{left, right}}
}

// Eq is shorthand for an equality comparison
func Eq(left, right Term) Comparison {
	return Compare(OpEQ, left, right)
}

// Col is shorthand for a column reference term
func Col(stage string, column int) ColumnRef {
	return ColumnRef{Stage: stage, Column: column}
}

// Const is shorthand for a constant term
func Const(v int64) Constant {
	return Constant{Value: v}
}

func (c Comparison) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(string(c.Op))
	for _, t := range c.Terms {
		sb.WriteString(" ")
		sb.WriteString(t.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func (c Comparison) References() []ColumnRef {
	var refs []ColumnRef
	for _, t := range c.Terms {
		if ref, ok := t.(ColumnRef); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

func (c Comparison) Bind(r Resolver, limit int) (Bound, error) {
	if !c.Op.valid() {
		return nil, fmt.Errorf("unknown comparison operator: %s", c.Op)
	}
	if len(c.Terms) < 2 {
		return nil, fmt.Errorf("comparison %s requires at least 2 terms", c)
	}
	terms := make([]boundTerm, len(c.Terms))
	for i, t := range c.Terms {
		bt, err := t.bind(r, limit)
		if err != nil {
			return nil, err
		}
		terms[i] = bt
	}
	if len(terms) == 2 {
		return boundComparison{op: c.Op, left: terms[0], right: terms[1]}, nil
	}
	return boundChain{op: c.Op, terms: terms}, nil
}

// And holds when every operand holds; an empty And is true
type And []Predicate

func (a And) String() string {
	if len(a) == 0 {
		return "true"
	}
	return "(and " + joinPredicates(a) + ")"
}

func (a And) References() []ColumnRef {
	return collectRefs(a)
}

func (a And) Bind(r Resolver, limit int) (Bound, error) {
	bound, err := bindAll(a, r, limit)
	if err != nil {
		return nil, err
	}
	switch len(bound) {
	case 0:
		return boundTrue{}, nil
	case 1:
		return bound[0], nil
	}
	return boundAnd(bound), nil
}

// Or holds when any operand holds; an empty Or is false
type Or []Predicate

func (o Or) String() string {
	if len(o) == 0 {
		return "false"
	}
	return "(or " + joinPredicates(o) + ")"
}

func (o Or) References() []ColumnRef {
	return collectRefs(o)
}

func (o Or) Bind(r Resolver, limit int) (Bound, error) {
	bound, err := bindAll(o, r, limit)
	if err != nil {
		return nil, err
	}
	return boundOr(bound), nil
}

// Not negates its operand
type Not struct {
	Operand Predicate
}

func (n Not) String() string {
	return "(not " + n.Operand.String() + ")"
}

func (n Not) References() []ColumnRef {
	return n.Operand.References()
}

func (n Not) Bind(r Resolver, limit int) (Bound, error) {
	inner, err := n.Operand.Bind(r, limit)
	if err != nil {
		return nil, err
	}
	return boundNot{inner: inner}, nil
}

// True is the predicate that always holds
var True Predicate = And(nil)

// IsTrivial reports whether p is nil or an empty conjunction
func IsTrivial(p Predicate) bool {
	if p == nil {
		return true
	}
	a, ok := p.(And)
	return ok && len(a) == 0
}

// Conjoin combines predicates into a single And, dropping trivial operands
// and flattening nested conjunctions.
func Conjoin(preds ...Predicate) Predicate {
	var out And
	for _, p := range preds {
		if IsTrivial(p) {
			continue
		}
		if a, ok := p.(And); ok {
			out = append(out, a...)
			continue
		}
		out = append(out, p)
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func joinPredicates(preds []Predicate) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}

func collectRefs(preds []Predicate) []ColumnRef {
	var refs []ColumnRef
	for _, p := range preds {
		refs = append(refs, p.References()...)
	}
	return refs
}

func bindAll(preds []Predicate, r Resolver, limit int) ([]Bound, error) {
	bound := make([]Bound, 0, len(preds))
	for _, p := range preds {
		if p == nil {
			continue
		}
		b, err := p.Bind(r, limit)
		if err != nil {
			return nil, err
		}
		bound = append(bound, b)
	}
	return bound, nil
}
