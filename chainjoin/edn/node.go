// Package edn reads the subset of EDN used by chain configurations:
// nil, booleans, integers, strings, symbols, keywords, lists, vectors and maps.
package edn

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeType represents the type of EDN node
type NodeType int

const (
	NodeNil NodeType = iota
	NodeBool
	NodeInt
	NodeString
	NodeSymbol
	NodeKeyword
	NodeList
	NodeVector
	NodeMap
)

var nodeTypeNames = [...]string{
	NodeNil:     "nil",
	NodeBool:    "bool",
	NodeInt:     "int",
	NodeString:  "string",
	NodeSymbol:  "symbol",
	NodeKeyword: "keyword",
	NodeList:    "list",
	NodeVector:  "vector",
	NodeMap:     "map",
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Node represents an EDN value
type Node struct {
	Type  NodeType
	Line  int
	Col   int
	Value string // For atoms
	Nodes []Node // For collections; maps alternate key, value
}

// Pos returns the source position as line:col
func (n Node) Pos() string {
	return fmt.Sprintf("%d:%d", n.Line, n.Col)
}

// String renders the node back to EDN text
func (n Node) String() string {
	switch n.Type {
	case NodeNil:
		return "nil"
	case NodeString:
		return strconv.Quote(n.Value)
	case NodeBool, NodeInt, NodeSymbol, NodeKeyword:
		return n.Value
	case NodeList:
		return "(" + joinNodes(n.Nodes) + ")"
	case NodeVector:
		return "[" + joinNodes(n.Nodes) + "]"
	case NodeMap:
		return "{" + joinNodes(n.Nodes) + "}"
	default:
		return fmt.Sprintf("Unknown[%v]", n.Value)
	}
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, node := range nodes {
		parts[i] = node.String()
	}
	return strings.Join(parts, " ")
}

func (n Node) typeError(want NodeType) error {
	return fmt.Errorf("expected %s at %s, got %s %s", want, n.Pos(), n.Type, n.String())
}

// AsString returns the string value of a string node
func (n Node) AsString() (string, error) {
	if n.Type != NodeString {
		return "", n.typeError(NodeString)
	}
	return n.Value, nil
}

// AsInt returns the value of an int node
func (n Node) AsInt() (int64, error) {
	if n.Type != NodeInt {
		return 0, n.typeError(NodeInt)
	}
	v, err := strconv.ParseInt(strings.TrimSuffix(n.Value, "N"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("integer out of range at %s: %s", n.Pos(), n.Value)
	}
	return v, nil
}

// AsBool returns the value of a bool node
func (n Node) AsBool() (bool, error) {
	if n.Type != NodeBool {
		return false, n.typeError(NodeBool)
	}
	return n.Value == "true", nil
}

// AsSymbol returns the symbol name
func (n Node) AsSymbol() (string, error) {
	if n.Type != NodeSymbol {
		return "", n.typeError(NodeSymbol)
	}
	return n.Value, nil
}

// AsKeyword returns the keyword including its leading colon
func (n Node) AsKeyword() (string, error) {
	if n.Type != NodeKeyword {
		return "", n.typeError(NodeKeyword)
	}
	return n.Value, nil
}

// Get looks up a keyword key in a map node
func (n Node) Get(keyword string) (Node, bool) {
	if n.Type != NodeMap {
		return Node{}, false
	}
	for i := 0; i+1 < len(n.Nodes); i += 2 {
		k := n.Nodes[i]
		if k.Type == NodeKeyword && k.Value == keyword {
			return n.Nodes[i+1], true
		}
	}
	return Node{}, false
}

// Keys returns the keys of a map node in source order
func (n Node) Keys() []Node {
	if n.Type != NodeMap {
		return nil
	}
	keys := make([]Node, 0, len(n.Nodes)/2)
	for i := 0; i < len(n.Nodes); i += 2 {
		keys = append(keys, n.Nodes[i])
	}
	return keys
}

// IsNil returns true if the node is nil
func (n Node) IsNil() bool {
	return n.Type == NodeNil
}

// IsSequence returns true for lists and vectors
func (n Node) IsSequence() bool {
	return n.Type == NodeList || n.Type == NodeVector
}
