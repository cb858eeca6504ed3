package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/join"
)

func TestGeneratePlantsMatches(t *testing.T) {
	cfg := GenerateConfig{Rows: 300, Keys: 1000, Planted: 3, Seed: 42}
	rels, err := Generate(cfg)
	require.NoError(t, err)
	require.Len(t, rels, 4)

	byName := make(map[string]*chainjoin.Relation)
	for _, r := range rels {
		assert.Equal(t, 300, r.Len())
		assert.Equal(t, 2, r.Width)
		byName[r.Name] = r
	}
	assert.Equal(t, chainjoin.Tuple{1000, 50}, byName["S"].Tuples[0])
	assert.Equal(t, chainjoin.Tuple{100, 1002}, byName["R"].Tuples[2])

	var hashed, reference int
	count := func(n *int) chainjoin.Sink {
		return chainjoin.SinkFunc(func(chainjoin.Binding) error {
			*n++
			return nil
		})
	}
	_, err = join.Execute(context.Background(), join.DefaultChain(), byName, count(&hashed), join.Options{})
	require.NoError(t, err)
	_, err = join.NestedLoop(context.Background(), join.DefaultChain(), byName, count(&reference))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, hashed, 27)
	assert.Equal(t, reference, hashed)
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := GenerateConfig{Rows: 50, Keys: 10, Seed: 7}
	a, err := Generate(cfg)
	require.NoError(t, err)
	b, err := Generate(cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	cfg.Seed = 8
	c, err := Generate(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	_, err := Generate(GenerateConfig{Rows: 10, Keys: 0})
	assert.Error(t, err)

	_, err = Generate(GenerateConfig{Rows: 2, Keys: 5, Planted: 3})
	assert.ErrorContains(t, err, "cannot plant")
}

func TestGenerateFilesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultGenerateConfig()
	cfg.Rows = 100

	rels, err := GenerateFiles(dir, cfg)
	require.NoError(t, err)

	for _, rel := range rels {
		loaded, err := LoadFile(rel.Name, filepath.Join(dir, rel.Name), 2)
		require.NoError(t, err)
		assert.Equal(t, rel.Tuples, loaded.Tuples)
	}
}
