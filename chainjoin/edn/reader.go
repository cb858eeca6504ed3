package edn

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	// Character validation for symbols
	symbolChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789.*+!-_?$%&=<>/"

	intPattern = regexp.MustCompile(`^[+-]?\d+N?$`)
)

// Reader turns EDN text into nodes. Tokens are produced on demand, so a
// document can hold several top-level forms read one after another.
type Reader struct {
	input string
	pos   int
	line  int
	col   int
}

// NewReader creates a reader positioned at the start of input
func NewReader(input string) *Reader {
	return &Reader{
		input: input,
		line:  1,
		col:   1,
	}
}

// Parse reads exactly one form from input; trailing forms are an error
func Parse(input string) (*Node, error) {
	r := NewReader(input)
	node, err := r.Read()
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("empty input")
	}
	if r.More() {
		return nil, fmt.Errorf("unexpected trailing input at %d:%d", r.line, r.col)
	}
	return node, nil
}

// ParseAll reads all forms until end of input
func ParseAll(input string) ([]Node, error) {
	r := NewReader(input)
	var nodes []Node
	for r.More() {
		node, err := r.Read()
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, *node)
		}
	}
	return nodes, nil
}

// More reports whether any form remains
func (r *Reader) More() bool {
	r.skipWhitespaceAndComments()
	return r.pos < len(r.input)
}

// Read returns the next form, or nil at end of input
func (r *Reader) Read() (*Node, error) {
	for {
		r.skipWhitespaceAndComments()
		if r.pos >= len(r.input) {
			return nil, nil
		}

		// #_ discards the following form
		if strings.HasPrefix(r.input[r.pos:], "#_") {
			r.advance()
			r.advance()
			if _, err := r.readForm(); err != nil {
				return nil, err
			}
			continue
		}
		return r.readForm()
	}
}

func (r *Reader) readForm() (*Node, error) {
	r.skipWhitespaceAndComments()
	if r.pos >= len(r.input) {
		return nil, fmt.Errorf("unexpected EOF at %d:%d", r.line, r.col)
	}

	line, col := r.line, r.col
	switch ch := r.peek(); ch {
	case '"':
		str, err := r.readString()
		if err != nil {
			return nil, err
		}
		return &Node{Type: NodeString, Value: str, Line: line, Col: col}, nil
	case '(':
		return r.readCollection(NodeList, ')')
	case '[':
		return r.readCollection(NodeVector, ']')
	case '{':
		return r.readCollection(NodeMap, '}')
	case ')', ']', '}':
		return nil, fmt.Errorf("unexpected '%c' at %d:%d", ch, line, col)
	default:
		atom := r.readAtom()
		if atom == "" {
			return nil, fmt.Errorf("unexpected character '%c' at %d:%d", ch, line, col)
		}
		return classifyAtom(atom, line, col)
	}
}

// readCollection reads forms until the closing delimiter
func (r *Reader) readCollection(kind NodeType, closing byte) (*Node, error) {
	line, col := r.line, r.col
	r.advance() // opening delimiter

	var nodes []Node
	for {
		r.skipWhitespaceAndComments()
		if r.pos >= len(r.input) {
			return nil, fmt.Errorf("unterminated %s starting at %d:%d", kind, line, col)
		}
		if r.peek() == closing {
			r.advance()
			break
		}
		if strings.HasPrefix(r.input[r.pos:], "#_") {
			r.advance()
			r.advance()
			if _, err := r.readForm(); err != nil {
				return nil, err
			}
			continue
		}
		node, err := r.readForm()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}

	if kind == NodeMap && len(nodes)%2 != 0 {
		return nil, fmt.Errorf("map must have even number of elements at %d:%d", line, col)
	}

	return &Node{Type: kind, Nodes: nodes, Line: line, Col: col}, nil
}

// classifyAtom decides what an unquoted token denotes
func classifyAtom(value string, line, col int) (*Node, error) {
	switch value {
	case "nil":
		return &Node{Type: NodeNil, Line: line, Col: col}, nil
	case "true", "false":
		return &Node{Type: NodeBool, Value: value, Line: line, Col: col}, nil
	}

	if strings.HasPrefix(value, ":") {
		if len(value) == 1 {
			return nil, fmt.Errorf("empty keyword at %d:%d", line, col)
		}
		if err := validateSymbol(value[1:]); err != nil {
			return nil, fmt.Errorf("%v at %d:%d", err, line, col)
		}
		return &Node{Type: NodeKeyword, Value: value, Line: line, Col: col}, nil
	}

	if intPattern.MatchString(value) {
		return &Node{Type: NodeInt, Value: value, Line: line, Col: col}, nil
	}

	if err := validateSymbol(value); err != nil {
		return nil, fmt.Errorf("%v at %d:%d", err, line, col)
	}
	return &Node{Type: NodeSymbol, Value: value, Line: line, Col: col}, nil
}

func (r *Reader) peek() byte {
	if r.pos >= len(r.input) {
		return 0
	}
	return r.input[r.pos]
}

func (r *Reader) advance() {
	if r.pos < len(r.input) {
		if r.input[r.pos] == '\n' {
			r.line++
			r.col = 1
		} else {
			r.col++
		}
		r.pos++
	}
}

// skipWhitespaceAndComments skips whitespace, commas and ; comments
func (r *Reader) skipWhitespaceAndComments() {
	for r.pos < len(r.input) {
		ch := r.peek()
		if unicode.IsSpace(rune(ch)) || ch == ',' {
			r.advance()
		} else if ch == ';' {
			for r.pos < len(r.input) && r.peek() != '\n' {
				r.advance()
			}
		} else {
			break
		}
	}
}

func (r *Reader) readString() (string, error) {
	var result strings.Builder
	r.advance() // opening quote

	for r.pos < len(r.input) {
		ch := r.peek()
		switch ch {
		case '"':
			r.advance()
			return result.String(), nil
		case '\\':
			r.advance()
			if r.pos >= len(r.input) {
				return "", fmt.Errorf("unexpected end of input in string at %d:%d", r.line, r.col)
			}
			escaped := r.peek()
			switch escaped {
			case 't':
				result.WriteByte('\t')
			case 'r':
				result.WriteByte('\r')
			case 'n':
				result.WriteByte('\n')
			case '\\', '"':
				result.WriteByte(escaped)
			default:
				return "", fmt.Errorf("invalid escape sequence '\\%c' at %d:%d", escaped, r.line, r.col)
			}
			r.advance()
		default:
			result.WriteByte(ch)
			r.advance()
		}
	}

	return "", fmt.Errorf("unterminated string at %d:%d", r.line, r.col)
}

func (r *Reader) readAtom() string {
	start := r.pos
	for r.pos < len(r.input) {
		ch := r.peek()
		if isDelimiter(ch) || unicode.IsSpace(rune(ch)) || ch == ',' {
			break
		}
		r.advance()
	}
	return r.input[start:r.pos]
}

func isDelimiter(ch byte) bool {
	return ch == '(' || ch == ')' || ch == '[' || ch == ']' || ch == '{' || ch == '}' || ch == '"' || ch == ';'
}

func validateSymbol(s string) error {
	if s == "" {
		return fmt.Errorf("empty symbol")
	}
	if unicode.IsDigit(rune(s[0])) {
		return fmt.Errorf("symbol cannot start with digit: %s", s)
	}
	for _, ch := range strings.ToUpper(s) {
		if !strings.ContainsRune(symbolChars, ch) {
			return fmt.Errorf("invalid character '%c' in symbol: %s", ch, s)
		}
	}
	return nil
}
