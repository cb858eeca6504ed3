package loader

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/wbrown/janus-chainjoin/chainjoin"
)

// GenerateConfig controls synthetic S, R, U, T relations
type GenerateConfig struct {
	Rows    int   // tuples per relation, planted ones included
	Keys    int   // random values are drawn from [0, Keys)
	Planted int   // chains guaranteed to satisfy the default query
	Seed    int64 // rand seed; equal seeds give equal relations
}

// DefaultGenerateConfig returns a small dataset with a handful of matches
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Rows:    10000,
		Keys:    1000,
		Planted: 10,
		Seed:    1,
	}
}

// Generate builds width-2 relations S, R, U and T. Most tuples are random;
// the first Planted tuples of each relation form complete chains
// S(a 50), R(100 a), U(100 100), T(50 100), so the default query returns
// at least Planted cubed results.
func Generate(cfg GenerateConfig) ([]*chainjoin.Relation, error) {
	if cfg.Rows < 0 || cfg.Keys < 1 {
		return nil, fmt.Errorf("invalid generator config: rows=%d keys=%d", cfg.Rows, cfg.Keys)
	}
	if cfg.Planted > cfg.Rows {
		return nil, fmt.Errorf("cannot plant %d chains in %d rows", cfg.Planted, cfg.Rows)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	random := func() int64 { return int64(rng.Intn(cfg.Keys)) }

	planted := map[string]func(i int) chainjoin.Tuple{
		"S": func(i int) chainjoin.Tuple { return chainjoin.Tuple{plantedKey(cfg, i), 50} },
		"R": func(i int) chainjoin.Tuple { return chainjoin.Tuple{100, plantedKey(cfg, i)} },
		"U": func(int) chainjoin.Tuple { return chainjoin.Tuple{100, 100} },
		"T": func(int) chainjoin.Tuple { return chainjoin.Tuple{50, 100} },
	}

	var rels []*chainjoin.Relation
	for _, name := range []string{"S", "R", "U", "T"} {
		tuples := make([]chainjoin.Tuple, cfg.Rows)
		for i := range tuples {
			if i < cfg.Planted {
				tuples[i] = planted[name](i)
				continue
			}
			tuples[i] = chainjoin.Tuple{random(), random()}
		}
		rels = append(rels, chainjoin.NewRelation(name, 2, tuples))
	}
	return rels, nil
}

// plantedKey keeps planted join keys outside the random range
func plantedKey(cfg GenerateConfig, i int) int64 {
	return int64(cfg.Keys + i)
}

// GenerateFiles writes Generate's relations into dir, one file per relation
func GenerateFiles(dir string, cfg GenerateConfig) ([]*chainjoin.Relation, error) {
	rels, err := Generate(cfg)
	if err != nil {
		return nil, err
	}
	for _, rel := range rels {
		if err := WriteFile(filepath.Join(dir, rel.Name), rel); err != nil {
			return nil, err
		}
	}
	return rels, nil
}
