package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/join"
	"github.com/wbrown/janus-chainjoin/chainjoin/logutil"
)

const defaultEDN = `
; the four relation chain
{:relations [S R U {:name "T" :path "data/t.txt" :width 2}]
 :chain [{:relation S :where (= S.1 50)}
         {:relation R :key 1 :probe S.0}
         {:relation U :key 1 :probe R.0 :where [(= U.1 100)]}
         {:relation T :key 1 :probe U.0}]
 :global [(= T.1 100) (= T.0 50) (= S.1 T.0)]}
`

const defaultTOML = `
global = ["(= T.1 100)", "(= T.0 50)", "(= S.1 T.0)"]

[[relations]]
name = "S"

[[relations]]
name = "R"

[[relations]]
name = "U"

[[relations]]
name = "T"
path = "data/t.txt"

[[stages]]
relation = "S"
where = ["(= S.1 50)"]

[[stages]]
relation = "R"
key = 1
probe = "S.0"

[[stages]]
relation = "U"
key = 1
probe = "R.0"
where = ["(= U.1 100)"]

[[stages]]
relation = "T"
key = 1
probe = "U.0"
`

// explain compiles chain over empty relations and returns its plan
func explain(t *testing.T, chain join.Chain) string {
	t.Helper()
	rels := make(map[string]*chainjoin.Relation)
	for _, name := range []string{"S", "R", "U", "T"} {
		rels[name] = chainjoin.NewRelation(name, 2, nil)
	}
	p, err := join.Compile(chain, rels, join.Options{})
	require.NoError(t, err)
	return p.Explain()
}

func TestDecodersMatchDefaultChain(t *testing.T) {
	want := explain(t, join.DefaultChain())

	for name, parse := range map[string]func(string) (*Query, error){
		"edn":  ParseEDN,
		"toml": ParseTOML,
	} {
		src := defaultEDN
		if name == "toml" {
			src = defaultTOML
		}
		t.Run(name, func(t *testing.T) {
			q, err := parse(src)
			require.NoError(t, err)

			require.Len(t, q.Relations, 4)
			assert.Equal(t, RelationSpec{Name: "S", Path: "S", Width: 2}, q.Relations[0])
			assert.Equal(t, "data/t.txt", q.Relations[3].Path)

			chain, err := q.Chain()
			require.NoError(t, err)
			assert.Equal(t, want, explain(t, chain))
		})
	}
}

func TestDefaultQuery(t *testing.T) {
	chain, err := Default().Chain()
	require.NoError(t, err)
	assert.Equal(t, explain(t, join.DefaultChain()), explain(t, chain))
}

func TestEncodersRoundTrip(t *testing.T) {
	q := Default()
	q.Stages[1].As = "r"
	q.Stages[2].Probe = "r.0"

	fromEDN, err := ParseEDN(q.EDN())
	require.NoError(t, err)
	assert.Equal(t, q, fromEDN)

	var buf bytes.Buffer
	require.NoError(t, q.EncodeTOML(&buf))
	fromTOML, err := ParseTOML(buf.String())
	require.NoError(t, err)
	assert.Equal(t, q, fromTOML)
}

func TestLogTable(t *testing.T) {
	assert.Equal(t, logutil.DefaultConfig(), Default().LogConfig())

	q, err := ParseTOML(defaultTOML + `
[log]
level = "debug"
format = "json"
filename = "chainjoin.log"
max-backups = 2
`)
	require.NoError(t, err)
	require.NotNil(t, q.Log)

	cfg := q.LogConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "chainjoin.log", cfg.Filename)
	assert.Equal(t, 64, cfg.MaxSize, "rotation size defaults when logging to a file")
	assert.Equal(t, 2, cfg.MaxBackups)

	cfg.Level = "error"
	assert.Equal(t, "debug", q.Log.Level, "LogConfig returns a copy")

	var buf bytes.Buffer
	require.NoError(t, q.EncodeTOML(&buf))
	again, err := ParseTOML(buf.String())
	require.NoError(t, err)
	assert.Equal(t, q.Log, again.Log)

	_, err = ParseTOML(defaultTOML + "\n[log]\nlevel = \"info\"\nsyslog = true\n")
	assert.ErrorContains(t, err, "unknown config keys: log.syslog")
}

func TestLoadResolvesPaths(t *testing.T) {
	dir := t.TempDir()

	ednPath := filepath.Join(dir, "chain.edn")
	require.NoError(t, os.WriteFile(ednPath, []byte(defaultEDN), 0o644))
	q, err := Load(ednPath)
	require.NoError(t, err)
	assert.Equal(t, dir, q.Dir)

	s, ok := q.Relation("S")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "S"), q.ResolvePath("", s))
	assert.Equal(t, filepath.Join("/data", "S"), q.ResolvePath("/data", s))

	abs := RelationSpec{Name: "X", Path: "/abs/x"}
	assert.Equal(t, "/abs/x", q.ResolvePath("/data", abs))

	_, ok = q.Relation("missing")
	assert.False(t, ok)

	tomlPath := filepath.Join(dir, "chain.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(defaultTOML), 0o644))
	_, err = Load(tomlPath)
	require.NoError(t, err)

	_, err = Load(filepath.Join(dir, "chain.yaml"))
	assert.Error(t, err)

	yamlPath := filepath.Join(dir, "chain.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("a: 1"), 0o644))
	_, err = Load(yamlPath)
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		edn  string
		msg  string
	}{
		{"not a map", `[S R]`, "config must be a map"},
		{"unknown key", `{:relations [S] :joins []}`, "unknown config key :joins"},
		{"unknown stage key", `{:chain [{:relation S :index 1}]}`, "unknown stage key :index"},
		{"unknown relation key", `{:relations [{:name S :size 3}]}`, "unknown relation key :size"},
		{"relation name type", `{:relations [1]}`, "relation must be a name or map"},
		{"chain not vector", `{:chain {:relation S}}`, ":chain must be a vector"},
		{"bad key", `{:chain [{:relation S :key "1"}]}`, "expected int"},
		{"duplicate relation", `{:relations [S S]}`, "relation declared twice"},
		{"negative width", `{:relations [{:name S :width -1}]}`, "width must be at least 1"},
		{"bad where", `{:chain [{:relation S :where 5}]}`, "expected predicate form"},
		{"syntax", `{:chain [`, "invalid edn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEDN(tt.edn)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	_, err := ParseTOML("[[relations]]\nname = \"S\"\ncolour = \"red\"\n")
	assert.ErrorContains(t, err, "unknown config keys: relations.colour")

	_, err = ParseTOML("global = [")
	assert.ErrorContains(t, err, "invalid toml")
}

func TestChainErrors(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		msg  string
	}{
		{"no stages", Query{}, "chain has no stages"},
		{"bad probe", Query{Stages: []StageSpec{{Relation: "S"}, {Relation: "R", Probe: "S"}}}, "invalid column reference"},
		{"bad where", Query{Stages: []StageSpec{{Relation: "S", Where: []string{"(= S.1"}}}}, "where:"},
		{"bad global", Query{Stages: []StageSpec{{Relation: "S"}}, Global: []string{"(~ S.1 2)"}}, "global:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.q.Chain()
			require.Error(t, err)
			assert.True(t, chainjoin.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
