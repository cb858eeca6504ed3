package sink

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-chainjoin/chainjoin"
)

// Table buffers bindings and renders them as a markdown table on Flush.
// Each column of each bound tuple becomes one table column.
type Table struct {
	w      io.Writer
	header []string
	rows   [][]string
}

// NewTable renders to w. header names the flattened columns; when nil the
// columns are named stage.column by position.
func NewTable(w io.Writer, header []string) *Table {
	return &Table{w: w, header: header}
}

// Columns builds a header from stage names and tuple widths
func Columns(stages []string, widths []int) []string {
	var cols []string
	for i, name := range stages {
		for c := 0; c < widths[i]; c++ {
			cols = append(cols, fmt.Sprintf("%s.%d", name, c))
		}
	}
	return cols
}

// Emit appends b as a row
func (t *Table) Emit(b chainjoin.Binding) error {
	if t.header == nil {
		names := make([]string, len(b))
		widths := make([]int, len(b))
		for i, tuple := range b {
			names[i] = strconv.Itoa(i)
			widths[i] = len(tuple)
		}
		t.header = Columns(names, widths)
	}

	flat := b.Flatten()
	row := make([]string, len(flat))
	for i, v := range flat {
		row[i] = strconv.FormatInt(v, 10)
	}
	t.rows = append(t.rows, row)
	return nil
}

// Rows returns the number of buffered rows
func (t *Table) Rows() int {
	return len(t.rows)
}

// Flush renders the buffered rows and resets the buffer
func (t *Table) Flush() error {
	if len(t.rows) == 0 {
		_, err := io.WriteString(t.w, "_No results_\n")
		return err
	}

	alignment := make([]tw.Align, len(t.header))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(t.w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(t.header)
	for _, row := range t.rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	_, err := fmt.Fprintf(t.w, "\n_%d results_\n", len(t.rows))
	t.rows = nil
	return err
}
