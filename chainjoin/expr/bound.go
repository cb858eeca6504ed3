package expr

import "github.com/wbrown/janus-chainjoin/chainjoin"

// boundTerm is a term resolved to a binding position or a constant
type boundTerm struct {
	constant bool
	value    int64
	stage    int
	column   int
}

func (t boundTerm) eval(b chainjoin.Binding) int64 {
	if t.constant {
		return t.value
	}
	return b[t.stage][t.column]
}

type boundComparison struct {
	op    CompareOp
	left  boundTerm
	right boundTerm
}

func (c boundComparison) Eval(b chainjoin.Binding) bool {
	return c.op.apply(c.left.eval(b), c.right.eval(b))
}

type boundChain struct {
	op    CompareOp
	terms []boundTerm
}

func (c boundChain) Eval(b chainjoin.Binding) bool {
	prev := c.terms[0].eval(b)
	for _, t := range c.terms[1:] {
		next := t.eval(b)
		if !c.op.apply(prev, next) {
			return false
		}
		prev = next
	}
	return true
}

type boundAnd []Bound

func (a boundAnd) Eval(b chainjoin.Binding) bool {
	for _, p := range a {
		if !p.Eval(b) {
			return false
		}
	}
	return true
}

type boundOr []Bound

func (o boundOr) Eval(b chainjoin.Binding) bool {
	for _, p := range o {
		if p.Eval(b) {
			return true
		}
	}
	return false
}

type boundNot struct {
	inner Bound
}

func (n boundNot) Eval(b chainjoin.Binding) bool {
	return !n.inner.Eval(b)
}

type boundTrue struct{}

func (boundTrue) Eval(chainjoin.Binding) bool { return true }

// Always is a bound predicate that always holds
var Always Bound = boundTrue{}
