package chainjoin

import (
	"strconv"
	"strings"
)

// Tuple is a fixed-width row of integers. Tuples are immutable once loaded.
type Tuple []int64

// Width returns the number of columns in the tuple
func (t Tuple) Width() int {
	return len(t)
}

// String renders the tuple as (a b ...)
func (t Tuple) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range t {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	}
	sb.WriteByte(')')
	return sb.String()
}

// Relation is an ordered sequence of tuples sharing one width.
// It owns its tuples; indexes and bindings only borrow them.
type Relation struct {
	Name   string
	Width  int
	Tuples []Tuple
}

// NewRelation creates a relation from already materialized tuples
func NewRelation(name string, width int, tuples []Tuple) *Relation {
	return &Relation{
		Name:   name,
		Width:  width,
		Tuples: tuples,
	}
}

// Len returns the number of tuples
func (r *Relation) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Tuples)
}

// IsEmpty reports whether the relation has no tuples
func (r *Relation) IsEmpty() bool {
	return r.Len() == 0
}

// Binding is the combination of tuples accumulated while walking a join
// chain, one tuple per stage bound so far.
type Binding []Tuple

// Clone returns a copy of the binding slice. The tuples themselves are
// shared since they are immutable.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	copy(out, b)
	return out
}

// Flatten concatenates the bound tuples into one row
func (b Binding) Flatten() []int64 {
	n := 0
	for _, t := range b {
		n += len(t)
	}
	row := make([]int64, 0, n)
	for _, t := range b {
		row = append(row, t...)
	}
	return row
}

// String renders every bound tuple separated by spaces
func (b Binding) String() string {
	parts := make([]string, len(b))
	for i, t := range b {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}
