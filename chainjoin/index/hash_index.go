// Package index builds hash indexes over relation key columns.
package index

import (
	"github.com/wbrown/janus-chainjoin/chainjoin"
)

// HashIndex maps a key column value to the tuples carrying it.
//
// Buckets hold tuples in relation order, so repeated probes of the same key
// always enumerate matches identically. Tuples are borrowed from the
// relation and must not outlive it.
//
// CONCURRENCY: a built index is read-only and safe for concurrent Lookup.
type HashIndex struct {
	relation  string
	keyColumn int
	buckets   map[int64][]chainjoin.Tuple
	keys      []int64 // first-seen order
	size      int
}

// Build indexes rel on keyColumn in one pass over the relation
func Build(rel *chainjoin.Relation, keyColumn int) (*HashIndex, error) {
	if rel == nil {
		return nil, chainjoin.Configf(-1, "", "cannot index a nil relation")
	}
	if keyColumn < 0 || keyColumn >= rel.Width {
		return nil, chainjoin.Configf(-1, rel.Name, "key column %d out of range for width %d", keyColumn, rel.Width)
	}

	// Pre-size for the worst case of all-distinct keys
	idx := &HashIndex{
		relation:  rel.Name,
		keyColumn: keyColumn,
		buckets:   make(map[int64][]chainjoin.Tuple, len(rel.Tuples)),
	}

	for _, t := range rel.Tuples {
		key := t[keyColumn]
		bucket, ok := idx.buckets[key]
		if !ok {
			idx.keys = append(idx.keys, key)
		}
		idx.buckets[key] = append(bucket, t)
	}
	idx.size = len(rel.Tuples)

	return idx, nil
}

// Lookup returns the bucket for key, or nil when no tuple carries it.
// A missing key is an ordinary empty result.
func (h *HashIndex) Lookup(key int64) []chainjoin.Tuple {
	return h.buckets[key]
}

// Contains reports whether any tuple carries key
func (h *HashIndex) Contains(key int64) bool {
	_, ok := h.buckets[key]
	return ok
}

// Keys returns the distinct keys in the order they were first seen
func (h *HashIndex) Keys() []int64 {
	out := make([]int64, len(h.keys))
	copy(out, h.keys)
	return out
}

// Len returns the number of distinct keys
func (h *HashIndex) Len() int {
	return len(h.buckets)
}

// Size returns the number of indexed tuples
func (h *HashIndex) Size() int {
	return h.size
}

// KeyColumn returns the indexed column
func (h *HashIndex) KeyColumn() int {
	return h.keyColumn
}

// Relation returns the name of the indexed relation
func (h *HashIndex) Relation() string {
	return h.relation
}

// MaxBucket returns the size of the largest bucket, a quick skew indicator
func (h *HashIndex) MaxBucket() int {
	largest := 0
	for _, b := range h.buckets {
		if len(b) > largest {
			largest = len(b)
		}
	}
	return largest
}
