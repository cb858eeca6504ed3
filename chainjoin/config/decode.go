package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wbrown/janus-chainjoin/chainjoin/edn"
)

// ParseTOML decodes a query from TOML. Unknown keys are rejected.
//
//	global = ["(= T.0 50)"]
//
//	[[relations]]
//	name = "S"
//	width = 2
//
//	[[stages]]
//	relation = "S"
//	where = ["(= S.1 50)"]
//
//	[log]
//	level = "info"
func ParseTOML(src string) (*Query, error) {
	var q Query
	md, err := toml.Decode(src, &q)
	if err != nil {
		return nil, fmt.Errorf("invalid toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := q.normalize(); err != nil {
		return nil, err
	}
	return &q, nil
}

// EncodeTOML writes q in the form ParseTOML reads
func (q *Query) EncodeTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(q)
}

// ParseEDN decodes a query from an EDN map:
//
//	{:relations [{:name "S" :width 2} {:name "R"}]
//	 :chain     [{:relation S :where (= S.1 50)}
//	             {:relation R :key 1 :probe S.0}]
//	 :global    [(= R.0 7)]}
//
// :where and :global take a single form or a vector of forms.
func ParseEDN(src string) (*Query, error) {
	root, err := edn.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid edn: %w", err)
	}
	if root.Type != edn.NodeMap {
		return nil, fmt.Errorf("config must be a map, got %s at %s", root.Type, root.Pos())
	}

	var q Query
	for _, key := range root.Keys() {
		value, _ := root.Get(key.Value)
		switch key.Value {
		case ":relations":
			q.Relations, err = decodeRelations(value)
		case ":chain":
			q.Stages, err = decodeStages(value)
		case ":global":
			q.Global, err = decodeForms(value)
		default:
			err = fmt.Errorf("unknown config key %s at %s", key.String(), key.Pos())
		}
		if err != nil {
			return nil, err
		}
	}

	if err := q.normalize(); err != nil {
		return nil, err
	}
	return &q, nil
}

func decodeRelations(n edn.Node) ([]RelationSpec, error) {
	if !n.IsSequence() {
		return nil, fmt.Errorf(":relations must be a vector at %s", n.Pos())
	}
	specs := make([]RelationSpec, 0, len(n.Nodes))
	for _, item := range n.Nodes {
		// A bare name declares a relation with default path and width
		if name, err := nameOf(item); err == nil {
			specs = append(specs, RelationSpec{Name: name})
			continue
		}
		if item.Type != edn.NodeMap {
			return nil, fmt.Errorf("relation must be a name or map at %s", item.Pos())
		}

		var spec RelationSpec
		for _, key := range item.Keys() {
			value, _ := item.Get(key.Value)
			var err error
			switch key.Value {
			case ":name":
				spec.Name, err = nameOf(value)
			case ":path":
				spec.Path, err = value.AsString()
			case ":width":
				spec.Width, err = intOf(value)
			default:
				err = fmt.Errorf("unknown relation key %s at %s", key.String(), key.Pos())
			}
			if err != nil {
				return nil, err
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func decodeStages(n edn.Node) ([]StageSpec, error) {
	if n.Type != edn.NodeVector {
		return nil, fmt.Errorf(":chain must be a vector at %s", n.Pos())
	}
	stages := make([]StageSpec, 0, len(n.Nodes))
	for _, item := range n.Nodes {
		if item.Type != edn.NodeMap {
			return nil, fmt.Errorf("stage must be a map at %s", item.Pos())
		}

		var st StageSpec
		for _, key := range item.Keys() {
			value, _ := item.Get(key.Value)
			var err error
			switch key.Value {
			case ":relation":
				st.Relation, err = nameOf(value)
			case ":as":
				st.As, err = nameOf(value)
			case ":key":
				st.Key, err = intOf(value)
			case ":probe":
				st.Probe, err = nameOf(value)
			case ":where":
				st.Where, err = decodeForms(value)
			default:
				err = fmt.Errorf("unknown stage key %s at %s", key.String(), key.Pos())
			}
			if err != nil {
				return nil, err
			}
		}
		stages = append(stages, st)
	}
	return stages, nil
}

// decodeForms returns predicate source text for a single form or a vector
// of forms.
func decodeForms(n edn.Node) ([]string, error) {
	switch n.Type {
	case edn.NodeNil:
		return nil, nil
	case edn.NodeVector:
		forms := make([]string, len(n.Nodes))
		for i, f := range n.Nodes {
			forms[i] = f.String()
		}
		return forms, nil
	case edn.NodeList, edn.NodeBool:
		return []string{n.String()}, nil
	default:
		return nil, fmt.Errorf("expected predicate form at %s, got %s", n.Pos(), n.String())
	}
}

func nameOf(n edn.Node) (string, error) {
	switch n.Type {
	case edn.NodeSymbol, edn.NodeString:
		return n.Value, nil
	default:
		return "", fmt.Errorf("expected name at %s, got %s", n.Pos(), n.String())
	}
}

func intOf(n edn.Node) (int, error) {
	v, err := n.AsInt()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// EDN renders q in the form ParseEDN reads
func (q *Query) EDN() string {
	var sb strings.Builder
	sb.WriteString("{:relations [")
	for i, r := range q.Relations {
		if i > 0 {
			sb.WriteString("\n             ")
		}
		fmt.Fprintf(&sb, "{:name %s :path %s :width %d}", strconv.Quote(r.Name), strconv.Quote(r.Path), r.Width)
	}
	sb.WriteString("]\n :chain [")
	for i, s := range q.Stages {
		if i > 0 {
			sb.WriteString("\n         ")
		}
		fmt.Fprintf(&sb, "{:relation %s", strconv.Quote(s.Relation))
		if s.As != "" {
			fmt.Fprintf(&sb, " :as %s", strconv.Quote(s.As))
		}
		if s.Probe != "" {
			fmt.Fprintf(&sb, " :key %d :probe %s", s.Key, s.Probe)
		}
		if len(s.Where) > 0 {
			fmt.Fprintf(&sb, " :where [%s]", strings.Join(s.Where, " "))
		}
		sb.WriteString("}")
	}
	sb.WriteString("]")
	if len(q.Global) > 0 {
		fmt.Fprintf(&sb, "\n :global [%s]", strings.Join(q.Global, " "))
	}
	sb.WriteString("}\n")
	return sb.String()
}
