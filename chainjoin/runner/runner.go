// Package runner turns a configured query into results: it loads every
// relation, compiles the chain and drives it into a sink.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wbrown/janus-chainjoin/chainjoin"
	"github.com/wbrown/janus-chainjoin/chainjoin/annotations"
	"github.com/wbrown/janus-chainjoin/chainjoin/config"
	"github.com/wbrown/janus-chainjoin/chainjoin/join"
	"github.com/wbrown/janus-chainjoin/chainjoin/loader"
	"github.com/wbrown/janus-chainjoin/chainjoin/logutil"
)

// Run loads the relations of q, compiles its chain and emits every result
// to sink. Relative relation paths are resolved against baseDir, or the
// config file's directory when baseDir is empty. Malformed input fails
// before any join work starts. A sink that buffers is flushed once the run
// succeeds.
func Run(ctx context.Context, q *config.Query, baseDir string, sink chainjoin.Sink, opts join.Options) (join.Stats, error) {
	p, err := Prepare(ctx, q, baseDir, opts)
	if err != nil {
		return join.Stats{}, err
	}

	stats, err := p.Run(ctx, sink)
	if err != nil {
		return stats, err
	}
	if f, ok := sink.(chainjoin.Flusher); ok {
		if err := f.Flush(); err != nil {
			return stats, fmt.Errorf("failed to flush results: %w", err)
		}
	}
	return stats, nil
}

// Prepare loads and compiles q without running it
func Prepare(ctx context.Context, q *config.Query, baseDir string, opts join.Options) (*join.Pipeline, error) {
	chain, err := q.Chain()
	if err != nil {
		now := time.Now()
		opts.Collector.Add(annotations.Event{
			Name:  annotations.ErrorConfiguration,
			Start: now,
			End:   now,
			Data:  map[string]interface{}{"error": err},
		})
		return nil, err
	}

	relations, err := LoadRelations(ctx, q, baseDir, opts)
	if err != nil {
		return nil, err
	}
	return join.Compile(chain, relations, opts)
}

// LoadRelations reads every relation q declares, in declaration order
func LoadRelations(ctx context.Context, q *config.Query, baseDir string, opts join.Options) (map[string]*chainjoin.Relation, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logutil.GetGlobalLogger()
	}

	relations := make(map[string]*chainjoin.Relation, len(q.Relations))
	for _, spec := range q.Relations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		path := q.ResolvePath(baseDir, spec)
		width := spec.Width
		if width == 0 {
			width = config.DefaultWidth
		}

		rel, err := loader.LoadFile(spec.Name, path, width)
		if err != nil {
			var inputErr *chainjoin.InputFormatError
			if errors.As(err, &inputErr) {
				opts.Collector.AddTiming(annotations.ErrorInput, start, map[string]interface{}{
					"relation": spec.Name,
					"path":     path,
					"error":    err,
				})
			}
			logger.Debug("failed to load relation",
				zap.String("relation", spec.Name),
				zap.String("path", path),
				zap.Error(err))
			return nil, err
		}

		opts.Collector.AddTiming(annotations.RelationLoaded, start, map[string]interface{}{
			"relation":     spec.Name,
			"path":         path,
			"width":        width,
			"tuples.count": rel.Len(),
		})
		logger.Debug("loaded relation",
			zap.String("relation", spec.Name),
			zap.String("path", path),
			zap.Int("tuples", rel.Len()))
		relations[spec.Name] = rel
	}
	return relations, nil
}
