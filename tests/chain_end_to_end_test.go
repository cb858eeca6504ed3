package tests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/annotations"
	"github.com/wbrown/janus-chainjoin/chainjoin/config"
	"github.com/wbrown/janus-chainjoin/chainjoin/join"
	"github.com/wbrown/janus-chainjoin/chainjoin/loader"
	"github.com/wbrown/janus-chainjoin/chainjoin/runner"
	"github.com/wbrown/janus-chainjoin/chainjoin/sink"
)

// generated writes a synthetic dataset plus both config files into a temp dir
func generated(t *testing.T, cfg loader.GenerateConfig) (string, map[string]*chainjoin.Relation) {
	t.Helper()
	dir := t.TempDir()

	rels, err := loader.GenerateFiles(dir, cfg)
	require.NoError(t, err)

	q := config.Default()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chain.edn"), []byte(q.EDN()), 0o644))
	var buf bytes.Buffer
	require.NoError(t, q.EncodeTOML(&buf))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chain.toml"), buf.Bytes(), 0o644))

	byName := make(map[string]*chainjoin.Relation, len(rels))
	for _, r := range rels {
		byName[r.Name] = r
	}
	return dir, byName
}

func reference(t *testing.T, rels map[string]*chainjoin.Relation) []chainjoin.Binding {
	t.Helper()
	collect := sink.NewCollect()
	_, err := join.NestedLoop(context.Background(), join.DefaultChain(), rels, collect)
	require.NoError(t, err)
	return collect.Bindings
}

func TestGeneratedChainMatchesReference(t *testing.T) {
	dir, rels := generated(t, loader.GenerateConfig{Rows: 2000, Keys: 200, Planted: 4, Seed: 11})
	want := reference(t, rels)
	require.GreaterOrEqual(t, len(want), 64)

	for _, file := range []string{"chain.edn", "chain.toml"} {
		t.Run(file, func(t *testing.T) {
			q, err := config.Load(filepath.Join(dir, file))
			require.NoError(t, err)

			got := sink.NewCollect()
			stats, err := runner.Run(context.Background(), q, "", got, join.Options{})
			require.NoError(t, err)
			assert.Equal(t, want, got.Bindings)
			assert.Equal(t, int64(len(want)), stats.Emitted)
		})
	}
}

func TestParallelRunnerMatchesSequential(t *testing.T) {
	dir, rels := generated(t, loader.GenerateConfig{Rows: 5000, Keys: 300, Planted: 5, Seed: 3})
	want := reference(t, rels)

	for _, workers := range []int{2, 4, 8} {
		got := sink.NewCollect()
		collector := annotations.NewCollector(nil)
		_, err := runner.Run(context.Background(), config.Default(), dir, got, join.Options{
			Workers:   workers,
			BatchSize: 256,
			Collector: collector,
		})
		require.NoError(t, err)
		assert.Equal(t, want, got.Bindings, "workers=%d", workers)
		assert.NotEmpty(t, collector.Find(annotations.BatchComplete))
	}
}

func TestTextOutputAndBadgerStoreAgree(t *testing.T) {
	dir, rels := generated(t, loader.GenerateConfig{Rows: 1000, Keys: 100, Planted: 3, Seed: 5})
	want := reference(t, rels)

	outPath := filepath.Join(t.TempDir(), "results.txt")
	storePath := filepath.Join(t.TempDir(), "store")

	text, err := sink.CreateFile(outPath)
	require.NoError(t, err)
	store, err := sink.OpenBadger(storePath)
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), config.Default(), dir, sink.Tee{text, store}, join.Options{Workers: 4, BatchSize: 100})
	require.NoError(t, err)
	require.NoError(t, text.Close())
	require.NoError(t, store.Close())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, len(want))
	for i, b := range want {
		assert.Equal(t, b.String(), lines[i])
	}

	stored, err := sink.ReadBadger(storePath)
	require.NoError(t, err)
	assert.Equal(t, want, stored)
}

func TestTableOutput(t *testing.T) {
	dir, _ := generated(t, loader.GenerateConfig{Rows: 10, Keys: 1000, Planted: 1, Seed: 1})

	var buf bytes.Buffer
	table := sink.NewTable(&buf, sink.Columns([]string{"S", "R", "U", "T"}, []int{2, 2, 2, 2}))
	_, err := runner.Run(context.Background(), config.Default(), dir, table, join.Options{Limit: 1})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "S.0")
	assert.Contains(t, out, "1000")
	assert.Contains(t, out, "_1 results_")
}

func TestMalformedRelationStopsBeforeJoin(t *testing.T) {
	dir, _ := generated(t, loader.GenerateConfig{Rows: 20, Keys: 10, Seed: 2})
	f, err := os.OpenFile(filepath.Join(dir, "T"), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("42\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	collector := annotations.NewCollector(nil)
	_, err = runner.Run(context.Background(), config.Default(), dir, &sink.Count{}, join.Options{Collector: collector})
	require.Error(t, err)
	assert.True(t, chainjoin.IsInputFormatError(err))
	assert.Contains(t, err.Error(), "41 integers is not a multiple of tuple width 2")
	assert.Empty(t, collector.Find(annotations.QueryCompiled))
}
