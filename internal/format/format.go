// Package format renders terminal tables for the CLI commands.
package format

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// Table accumulates rows and renders them in the Mode set at creation.
type Table struct {
	writer table.Writer
	mode   Mode
}

// NewTable returns an empty table rendering in the given Mode.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{writer: w, mode: m}
}

// Header sets the column headers.
func (t *Table) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	t.writer.AppendHeader(row)
}

// Row appends a data row. Values are converted to strings via fmt Sprint.
func (t *Table) Row(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendRow(row)
}

// Footer appends a footer row (e.g. totals).
func (t *Table) Footer(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendFooter(row)
}

// AlignRight right-aligns the given 1-based columns.
func (t *Table) AlignRight(cols ...int) {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, n := range cols {
		cfgs[i] = table.ColumnConfig{Number: n, Align: text.AlignRight}
	}
	t.writer.SetColumnConfigs(cfgs)
}

// String renders the table.
func (t *Table) String() string {
	if t.mode == Markdown {
		return t.writer.RenderMarkdown()
	}
	return t.writer.Render()
}
