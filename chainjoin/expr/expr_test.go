package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/janus-chainjoin/chainjoin"
)

var testStages = Stages{
	Names:  []string{"S", "R", "U", "T"},
	Widths: []int{2, 2, 2, 2},
}

func TestParseAndEval(t *testing.T) {
	binding := chainjoin.Binding{
		{1, 50},
		{100, 1},
		{100, 100},
		{50, 100},
	}

	tests := []struct {
		src      string
		expected bool
	}{
		{"(= S.1 50)", true},
		{"(== S.1 51)", false},
		{"(!= S.1 51)", true},
		{"(not= S.0 1)", false},
		{"(< S.0 R.0)", true},
		{"(<= R.0 U.0)", true},
		{"(> T.0 S.1)", false},
		{"(>= T.0 S.1)", true},
		{"(< 0 S.0 2 R.0)", true},
		{"(< 0 S.0 0)", false},
		{"(and (= T.1 100) (= T.0 50) (= S.1 T.0))", true},
		{"(and (= T.1 100) (= T.0 51))", false},
		{"(or (= T.0 51) (= T.0 50))", true},
		{"(or)", false},
		{"(and)", true},
		{"(not (= S.0 1))", false},
		{"[(= S.1 50) (= U.1 100)]", true},
		{"[(= S.1 50) (= U.1 99)]", false},
		{"[]", true},
		{"true", true},
		{"false", false},
		{"(= -5 -5)", true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			p, err := Parse(tt.src)
			require.NoError(t, err)

			bound, err := p.Bind(testStages, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, bound.Eval(binding))
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"(= S.1", "invalid predicate"},
		{"()", "empty predicate"},
		{"(foo S.1 2)", "unknown predicate operator"},
		{"(= S.1)", "at least 2 terms"},
		{"(not)", "exactly one operand"},
		{"(= S 1)", "invalid column"},
		{"(= S.x 1)", "invalid column"},
		{`(= S.1 "50")`, "term must be"},
		{"42", "predicate must be a list"},
		{"(1 2 3)", "predicate operator"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestBindValidation(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		limit int
		msg   string
	}{
		{"unknown stage", "(= X.0 1)", 3, "unknown stage X"},
		{"column out of range", "(= S.2 1)", 3, "column 2 out of range"},
		{"stage not yet bound", "(= T.0 1)", 1, "before it is bound"},
		{"nested reference checked", "(and (= S.0 1) (not (= U.5 1)))", 3, "column 5 out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.src)
			require.NoError(t, err)

			_, err = p.Bind(testStages, tt.limit)
			require.Error(t, err)
			assert.True(t, chainjoin.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseColumnRef(t *testing.T) {
	ref, err := ParseColumnRef("S.1")
	require.NoError(t, err)
	assert.Equal(t, Col("S", 1), ref)

	ref, err = ParseColumnRef("edges.in.0")
	require.NoError(t, err)
	assert.Equal(t, ColumnRef{Stage: "edges.in", Column: 0}, ref)

	for _, bad := range []string{"S", ".1", "S.", "S.-1", "S.a"} {
		_, err := ParseColumnRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestConjoinAndString(t *testing.T) {
	p := Conjoin(True, Eq(Col("S", 1), Const(50)), nil, And{Eq(Col("U", 1), Const(100))})
	assert.Equal(t, "(and (= S.1 50) (= U.1 100))", p.String())
	assert.Equal(t, []ColumnRef{Col("S", 1), Col("U", 1)}, p.References())

	single := Conjoin(Eq(Col("S", 1), Const(50)))
	assert.Equal(t, "(= S.1 50)", single.String())

	assert.True(t, IsTrivial(Conjoin()))
	assert.True(t, IsTrivial(nil))
	assert.False(t, IsTrivial(single))
	assert.Equal(t, "true", True.String())
	assert.Equal(t, "false", Or{}.String())

	never, err := Parse("false")
	require.NoError(t, err)
	assert.Equal(t, "false", never.String())

	all, err := ParseAll([]string{"(= T.1 100)", "(= T.0 50)", "(= S.1 T.0)"})
	require.NoError(t, err)
	assert.Equal(t, "(and (= T.1 100) (= T.0 50) (= S.1 T.0))", all.String())
}

func TestUnknownOperatorRejectedAtBind(t *testing.T) {
	_, err := Comparison{Op: "~", Terms: []Term{Const(1), Const(2)}}.Bind(testStages, 3)
	assert.ErrorContains(t, err, "unknown comparison operator")

	_, err = Comparison{Op: OpEQ, Terms: []Term{Const(1)}}.Bind(testStages, 3)
	assert.ErrorContains(t, err, "at least 2 terms")
}
