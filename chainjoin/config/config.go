// Package config describes join queries as data: which relation files to
// load and how the chain over them is built. Queries are read from EDN or
// TOML files; predicates are EDN forms in both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/expr"
	"github.com/wbrown/janus-chainjoin/chainjoin/join"
	"github.com/wbrown/janus-chainjoin/chainjoin/logutil"
)

// DefaultWidth is the tuple width assumed when a relation omits it
const DefaultWidth = 2

// RelationSpec names a relation and the file it is loaded from
type RelationSpec struct {
	Name  string `toml:"name"`
	Path  string `toml:"path"`
	Width int    `toml:"width"`
}

// StageSpec is the declarative form of join.StageSpec
type StageSpec struct {
	Relation string   `toml:"relation"`
	As       string   `toml:"as,omitempty"`
	Key      int      `toml:"key,omitempty"`
	Probe    string   `toml:"probe,omitempty"`
	Where    []string `toml:"where,omitempty"`
}

// Query is a complete chain description
type Query struct {
	Global    []string       `toml:"global,omitempty"`
	Relations []RelationSpec `toml:"relations"`
	Stages    []StageSpec    `toml:"stages"`

	// Log configures the process logger when the query is run from the
	// command line. Only TOML queries carry it.
	Log *logutil.LogConfig `toml:"log,omitempty"`

	// Dir is the directory relative paths are resolved against. Load sets
	// it to the directory of the configuration file.
	Dir string `toml:"-"`
}

// Default returns the S, R, U, T chain reading files named after each
// relation.
func Default() *Query {
	q := &Query{
		Stages: []StageSpec{
			{Relation: "S", Where: []string{"(= S.1 50)"}},
			{Relation: "R", Key: 1, Probe: "S.0"},
			{Relation: "U", Key: 1, Probe: "R.0", Where: []string{"(= U.1 100)"}},
			{Relation: "T", Key: 1, Probe: "U.0"},
		},
		Global: []string{"(= T.1 100)", "(= T.0 50)", "(= S.1 T.0)"},
	}
	for _, name := range []string{"S", "R", "U", "T"} {
		q.Relations = append(q.Relations, RelationSpec{Name: name, Path: name, Width: DefaultWidth})
	}
	return q
}

// Load reads a query from path, choosing the decoder by extension
func Load(path string) (*Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var q *Query
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".edn":
		q, err = ParseEDN(string(data))
	case ".toml":
		q, err = ParseTOML(string(data))
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .edn or .toml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	q.Dir = filepath.Dir(path)
	return q, nil
}

// normalize fills defaults and checks the relation declarations
func (q *Query) normalize() error {
	seen := make(map[string]bool, len(q.Relations))
	for i := range q.Relations {
		r := &q.Relations[i]
		if r.Name == "" {
			return chainjoin.Configf(-1, "", "relation %d has no name", i)
		}
		if seen[r.Name] {
			return chainjoin.Configf(-1, r.Name, "relation declared twice")
		}
		seen[r.Name] = true

		if r.Path == "" {
			r.Path = r.Name
		}
		if r.Width == 0 {
			r.Width = DefaultWidth
		}
		if r.Width < 1 {
			return chainjoin.Configf(-1, r.Name, "width must be at least 1, got %d", r.Width)
		}
	}
	return nil
}

// LogConfig returns a copy of the [log] table, or the logging defaults
// when the query has none.
func (q *Query) LogConfig() *logutil.LogConfig {
	cfg := logutil.DefaultConfig()
	if q.Log != nil {
		*cfg = *q.Log
	}
	if cfg.Filename != "" && cfg.MaxSize == 0 {
		cfg.MaxSize = 64
	}
	return cfg
}

// Relation returns the declaration named name
func (q *Query) Relation(name string) (RelationSpec, bool) {
	for _, r := range q.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationSpec{}, false
}

// ResolvePath returns where spec is read from. Relative paths are joined to
// baseDir, or to q.Dir when baseDir is empty.
func (q *Query) ResolvePath(baseDir string, spec RelationSpec) string {
	path := spec.Path
	if path == "" {
		path = spec.Name
	}
	if filepath.IsAbs(path) {
		return path
	}
	if baseDir == "" {
		baseDir = q.Dir
	}
	return filepath.Join(baseDir, path)
}

// Chain parses probes and predicates into an executable chain. Stage
// indexes and relations are checked later by join.Compile.
func (q *Query) Chain() (join.Chain, error) {
	if err := q.normalize(); err != nil {
		return join.Chain{}, err
	}
	if len(q.Stages) == 0 {
		return join.Chain{}, chainjoin.Configf(-1, "", "chain has no stages")
	}

	chain := join.Chain{Stages: make([]join.StageSpec, len(q.Stages))}
	for i, s := range q.Stages {
		st := join.StageSpec{
			Name:      s.As,
			Relation:  s.Relation,
			KeyColumn: s.Key,
		}

		if s.Probe != "" {
			ref, err := expr.ParseColumnRef(s.Probe)
			if err != nil {
				return join.Chain{}, chainjoin.Configf(i, st.StageName(), "probe: %v", err)
			}
			st.Probe = &ref
		}

		if len(s.Where) > 0 {
			where, err := expr.ParseAll(s.Where)
			if err != nil {
				return join.Chain{}, chainjoin.Configf(i, st.StageName(), "where: %v", err)
			}
			st.Where = where
		}
		chain.Stages[i] = st
	}

	if len(q.Global) > 0 {
		global, err := expr.ParseAll(q.Global)
		if err != nil {
			return join.Chain{}, chainjoin.Configf(-1, "", "global: %v", err)
		}
		chain.Global = global
	}
	return chain, nil
}
