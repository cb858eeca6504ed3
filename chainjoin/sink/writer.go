package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/wbrown/janus-chainjoin/chainjoin"
)

// Writer prints one line per binding, its tuples separated by spaces:
//
//	(1 50) (100 1) (100 100) (50 100)
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	lines  int64
}

// NewWriter writes bindings to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Console writes bindings to standard output
func Console() *Writer {
	return NewWriter(os.Stdout)
}

// CreateFile writes bindings to a new file at path
func CreateFile(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Emit writes b as one line
func (w *Writer) Emit(b chainjoin.Binding) error {
	for i, t := range b {
		if i > 0 {
			if err := w.w.WriteByte(' '); err != nil {
				return err
			}
		}
		if _, err := w.w.WriteString(t.String()); err != nil {
			return err
		}
	}
	w.lines++
	return w.w.WriteByte('\n')
}

// Lines returns the number of bindings written
func (w *Writer) Lines() int64 {
	return w.lines
}

// Flush writes buffered lines to the underlying writer
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes and closes the file opened by CreateFile
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
