package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/edn"
)

// operatorAliases maps accepted spellings to comparison operators
var operatorAliases = map[string]CompareOp{
	"=":    OpEQ,
	"==":   OpEQ,
	"!=":   OpNE,
	"not=": OpNE,
	"<":    OpLT,
	"<=":   OpLTE,
	">":    OpGT,
	">=":   OpGTE,
}

// Parse reads one predicate form. A vector of forms is a conjunction.
func Parse(src string) (Predicate, error) {
	node, err := edn.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid predicate %q: %w", src, err)
	}
	return ParseNode(*node)
}

// ParseAll parses each source form and conjoins the results
func ParseAll(srcs []string) (Predicate, error) {
	preds := make([]Predicate, 0, len(srcs))
	for _, src := range srcs {
		p, err := Parse(src)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return Conjoin(preds...), nil
}

// ParseNode converts an EDN form into a predicate
func ParseNode(n edn.Node) (Predicate, error) {
	switch n.Type {
	case edn.NodeVector:
		preds := make([]Predicate, 0, len(n.Nodes))
		for _, child := range n.Nodes {
			p, err := ParseNode(child)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		return Conjoin(preds...), nil

	case edn.NodeBool:
		if n.Value == "true" {
			return True, nil
		}
		return Or(nil), nil

	case edn.NodeList:
		return parseList(n)

	default:
		return nil, fmt.Errorf("predicate must be a list at %s, got %s", n.Pos(), n.String())
	}
}

func parseList(n edn.Node) (Predicate, error) {
	if len(n.Nodes) == 0 {
		return nil, fmt.Errorf("empty predicate at %s", n.Pos())
	}
	head, err := n.Nodes[0].AsSymbol()
	if err != nil {
		return nil, fmt.Errorf("predicate operator: %w", err)
	}
	args := n.Nodes[1:]

	switch head {
	case "and", "or":
		preds := make([]Predicate, 0, len(args))
		for _, a := range args {
			p, err := ParseNode(a)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		if head == "and" {
			return And(preds), nil
		}
		return Or(preds), nil

	case "not":
		if len(args) != 1 {
			return nil, fmt.Errorf("not takes exactly one operand at %s", n.Pos())
		}
		p, err := ParseNode(args[0])
		if err != nil {
			return nil, err
		}
		return Not{Operand: p}, nil
	}

	op, ok := operatorAliases[head]
	if !ok {
		return nil, fmt.Errorf("unknown predicate operator %q at %s", head, n.Pos())
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%s requires at least 2 terms at %s", head, n.Pos())
	}

	terms := make([]Term, len(args))
	for i, a := range args {
		t, err := parseTerm(a)
		if err != nil {
			return nil, err
		}
		terms[i] = t
	}
	return Comparison{Op: op, Terms: terms}, nil
}

func parseTerm(n edn.Node) (Term, error) {
	switch n.Type {
	case edn.NodeInt:
		v, err := n.AsInt()
		if err != nil {
			return nil, err
		}
		return Constant{Value: v}, nil
	case edn.NodeSymbol:
		ref, err := ParseColumnRef(n.Value)
		if err != nil {
			return nil, fmt.Errorf("%w at %s", err, n.Pos())
		}
		return ref, nil
	default:
		return nil, fmt.Errorf("term must be an integer or Stage.Column at %s, got %s", n.Pos(), n.String())
	}
}

// ParseColumnRef parses Stage.Column. The column is the text after the
// last dot, so stage names may themselves contain dots.
func ParseColumnRef(s string) (ColumnRef, error) {
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return ColumnRef{}, fmt.Errorf("invalid column reference %q, want Stage.Column", s)
	}
	col, err := strconv.Atoi(s[dot+1:])
	if err != nil || col < 0 {
		return ColumnRef{}, fmt.Errorf("invalid column index in %q", s)
	}
	return ColumnRef{Stage: s[:dot], Column: col}, nil
}

// Stages resolves references against an ordered list of stage names and
// their tuple widths.
type Stages struct {
	Names  []string
	Widths []int
}

// ResolveColumn returns the position of ref's stage, rejecting unknown
// stages, stages after limit and out-of-range columns.
func (s Stages) ResolveColumn(ref ColumnRef, limit int) (int, error) {
	for pos, name := range s.Names {
		if name != ref.Stage {
			continue
		}
		if pos > limit {
			return 0, chainjoin.Configf(limit, ref.Stage,
				"%s references stage %s before it is bound", ref, ref.Stage)
		}
		if ref.Column < 0 || ref.Column >= s.Widths[pos] {
			return 0, chainjoin.Configf(limit, ref.Stage,
				"%s: column %d out of range for width %d", ref, ref.Column, s.Widths[pos])
		}
		return pos, nil
	}
	return 0, chainjoin.Configf(limit, ref.Stage, "%s references unknown stage %s", ref, ref.Stage)
}
