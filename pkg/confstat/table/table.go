package table

import (
	"fmt"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

// Table is a flattened, row-oriented dataset with dotted column names
// such as "content.primary_area.value". Cells are kept as strings; an
// empty cell is a null value.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// Row is a read-only view of one table row.
type Row struct {
	table *Table
	cells []string
	// Index is the zero-based position of the row in its table.
	Index int
}

// New creates an empty table with the given columns.
func New(columns []string) (*Table, error) {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if _, dup := t.index[c]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", internalerr.ErrInvalidInput, c)
		}
		t.index[c] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// Append adds a row. Short rows are padded with null cells; long rows
// are rejected.
func (t *Table) Append(cells []string) error {
	if len(cells) > len(t.columns) {
		return fmt.Errorf("%w: row has %d cells, table has %d columns", internalerr.ErrInvalidInput, len(cells), len(t.columns))
	}
	row := make([]string, len(t.columns))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return nil
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether name is a column of t.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Require returns ErrInvalidInput naming the first missing column.
func (t *Table) Require(columns ...string) error {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return fmt.Errorf("%w: missing column %q", internalerr.ErrInvalidInput, c)
		}
	}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns row i.
func (t *Table) Row(i int) Row {
	return Row{table: t, cells: t.rows[i], Index: i}
}

// Rows returns every row in table order.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Value returns the cell in column name and whether it is non-null.
func (r Row) Value(name string) (string, bool) {
	i, ok := r.table.index[name]
	if !ok {
		return "", false
	}
	v := r.cells[i]
	return v, v != ""
}

// String returns the cell in column name, or fallback when it is null.
func (r Row) String(name, fallback string) string {
	if v, ok := r.Value(name); ok {
		return v
	}
	return fallback
}
