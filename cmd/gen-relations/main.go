package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wbrown/janus-chainjoin/chainjoin/config"
	"github.com/wbrown/janus-chainjoin/chainjoin/loader"
)

func main() {
	defaults := loader.DefaultGenerateConfig()

	dir := flag.String("dir", "data", "output directory")
	rows := flag.Int("rows", defaults.Rows, "tuples per relation")
	keys := flag.Int("keys", defaults.Keys, "random values are drawn from [0, keys)")
	planted := flag.Int("planted", defaults.Planted, "chains guaranteed to match the default query")
	seed := flag.Int64("seed", defaults.Seed, "random seed")
	flag.Parse()

	cfg := loader.GenerateConfig{
		Rows:    *rows,
		Keys:    *keys,
		Planted: *planted,
		Seed:    *seed,
	}

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *dir, err)
		os.Exit(1)
	}

	fmt.Printf("Generating relations in %s\n", *dir)
	fmt.Printf("  Rows: %d\n", cfg.Rows)
	fmt.Printf("  Keys: %d\n", cfg.Keys)
	fmt.Printf("  Planted: %d\n", cfg.Planted)
	fmt.Printf("  Seed: %d\n", cfg.Seed)
	fmt.Println()

	rels, err := loader.GenerateFiles(*dir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate relations: %v\n", err)
		os.Exit(1)
	}
	for _, rel := range rels {
		fmt.Printf("  wrote %s (%d tuples)\n", filepath.Join(*dir, rel.Name), rel.Len())
	}

	q := config.Default()
	ednPath := filepath.Join(*dir, "chain.edn")
	if err := os.WriteFile(ednPath, []byte(q.EDN()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", ednPath, err)
		os.Exit(1)
	}

	tomlPath := filepath.Join(*dir, "chain.toml")
	f, err := os.Create(tomlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", tomlPath, err)
		os.Exit(1)
	}
	if err := q.EncodeTOML(f); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", tomlPath, err)
		os.Exit(1)
	}
	f.Close()

	fmt.Println("\n✅ Done! Run the chain with:")
	fmt.Printf("   chainjoin -config %s\n", ednPath)
}
