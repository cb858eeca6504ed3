package edn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAtoms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Node
	}{
		{
			name:     "nil",
			input:    "nil",
			expected: Node{Type: NodeNil, Line: 1, Col: 1},
		},
		{
			name:     "true",
			input:    "true",
			expected: Node{Type: NodeBool, Value: "true", Line: 1, Col: 1},
		},
		{
			name:     "integer",
			input:    "  42",
			expected: Node{Type: NodeInt, Value: "42", Line: 1, Col: 3},
		},
		{
			name:     "negative integer",
			input:    "-42",
			expected: Node{Type: NodeInt, Value: "-42", Line: 1, Col: 1},
		},
		{
			name:     "string with escapes",
			input:    `"a\tb"`,
			expected: Node{Type: NodeString, Value: "a\tb", Line: 1, Col: 1},
		},
		{
			name:     "column reference symbol",
			input:    "S.1",
			expected: Node{Type: NodeSymbol, Value: "S.1", Line: 1, Col: 1},
		},
		{
			name:     "operator symbol",
			input:    "!=",
			expected: Node{Type: NodeSymbol, Value: "!=", Line: 1, Col: 1},
		},
		{
			name:     "minus is a symbol",
			input:    "-",
			expected: Node{Type: NodeSymbol, Value: "-", Line: 1, Col: 1},
		},
		{
			name:     "keyword",
			input:    "\n:relations",
			expected: Node{Type: NodeKeyword, Value: ":relations", Line: 2, Col: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, *node)
		})
	}
}

func TestParseCollections(t *testing.T) {
	node, err := Parse(`{:chain [{:relation "S" :where [(= S.1 50)]}] ; trailing comment
	                    :global []}`)
	require.NoError(t, err)
	require.Equal(t, NodeMap, node.Type)
	assert.Len(t, node.Keys(), 2)

	chain, ok := node.Get(":chain")
	require.True(t, ok)
	require.Equal(t, NodeVector, chain.Type)
	require.Len(t, chain.Nodes, 1)

	stage := chain.Nodes[0]
	rel, ok := stage.Get(":relation")
	require.True(t, ok)
	name, err := rel.AsString()
	require.NoError(t, err)
	assert.Equal(t, "S", name)

	where, ok := stage.Get(":where")
	require.True(t, ok)
	require.Len(t, where.Nodes, 1)
	assert.Equal(t, "(= S.1 50)", where.Nodes[0].String())

	_, ok = node.Get(":missing")
	assert.False(t, ok)
}

func TestParseDiscard(t *testing.T) {
	node, err := Parse(`[1 #_ 2 3]`)
	require.NoError(t, err)
	assert.Equal(t, "[1 3]", node.String())

	nodes, err := ParseAll(`#_ (ignored) (= S.1 50) (> T.0 1)`)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "(> T.0 1)", nodes[1].String())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"unterminated list", "(= S.1 50", "unterminated list"},
		{"unterminated string", `"abc`, "unterminated string"},
		{"odd map", "{:a}", "even number"},
		{"stray close", ")", "unexpected ')'"},
		{"bad symbol", "S@1", "invalid character"},
		{"empty keyword", ":", "empty keyword"},
		{"trailing form", "1 2", "trailing input"},
		{"empty", "  ; nothing\n", "empty input"},
		{"bad escape", `"\q"`, "invalid escape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNodeAccessors(t *testing.T) {
	node, err := Parse(`[42N "s" sym :kw true]`)
	require.NoError(t, err)

	v, err := node.Nodes[0].AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	s, err := node.Nodes[1].AsString()
	require.NoError(t, err)
	assert.Equal(t, "s", s)

	sym, err := node.Nodes[2].AsSymbol()
	require.NoError(t, err)
	assert.Equal(t, "sym", sym)

	kw, err := node.Nodes[3].AsKeyword()
	require.NoError(t, err)
	assert.Equal(t, ":kw", kw)

	b, err := node.Nodes[4].AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	_, err = node.Nodes[1].AsInt()
	assert.ErrorContains(t, err, "expected int at 1:6")

	assert.True(t, node.IsSequence())
	assert.Equal(t, `[42N "s" sym :kw true]`, node.String())
}
