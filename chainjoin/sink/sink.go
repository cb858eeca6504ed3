// Package sink provides result sinks for join pipelines.
package sink

import (
	"sync/atomic"

	"github.com/wbrown/janus-chainjoin/chainjoin"
)

// Func adapts a function to chainjoin.Sink
type Func = chainjoin.SinkFunc

// Collect retains a copy of every binding
type Collect struct {
	Bindings []chainjoin.Binding
}

// NewCollect creates an empty collecting sink
func NewCollect() *Collect {
	return &Collect{}
}

// Emit stores a clone of b
func (c *Collect) Emit(b chainjoin.Binding) error {
	c.Bindings = append(c.Bindings, b.Clone())
	return nil
}

// Len returns the number of bindings collected
func (c *Collect) Len() int {
	return len(c.Bindings)
}

// Count only counts bindings. It is safe to share between goroutines.
type Count struct {
	n atomic.Int64
}

// Emit increments the counter
func (c *Count) Emit(chainjoin.Binding) error {
	c.n.Add(1)
	return nil
}

// N returns the number of bindings seen
func (c *Count) N() int64 {
	return c.n.Load()
}

// Limit forwards at most N bindings to Next, then stops the run
type Limit struct {
	N    int
	Next chainjoin.Sink

	seen int
}

// NewLimit wraps next so the run ends after n bindings
func NewLimit(n int, next chainjoin.Sink) *Limit {
	return &Limit{N: n, Next: next}
}

// Emit forwards b, returning chainjoin.ErrStop once the limit is reached
func (l *Limit) Emit(b chainjoin.Binding) error {
	if l.seen >= l.N {
		return chainjoin.ErrStop
	}
	l.seen++
	return l.Next.Emit(b)
}

// Flush flushes Next when it buffers
func (l *Limit) Flush() error {
	return Flush(l.Next)
}

// Flush calls s.Flush if s is a chainjoin.Flusher
func Flush(s chainjoin.Sink) error {
	if f, ok := s.(chainjoin.Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Tee sends every binding to each sink in turn
type Tee []chainjoin.Sink

// Emit forwards b to every sink, stopping at the first error
func (t Tee) Emit(b chainjoin.Binding) error {
	for _, s := range t {
		if err := s.Emit(b); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes every buffering sink
func (t Tee) Flush() error {
	for _, s := range t {
		if err := Flush(s); err != nil {
			return err
		}
	}
	return nil
}
