// Package table holds the schema-less tabular value exchanged with record
// stores, and its CSV encoding.
package table

import (
	"slices"
	"sort"
)

// Table is an ordered sequence of rows sharing one column schema. Every row
// has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has neither columns nor rows.
func (t *Table) Empty() bool {
	return t == nil || (len(t.Columns) == 0 && len(t.Rows) == 0)
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	return slices.Index(t.Columns, name)
}

// Value returns the cell at row i in the named column, or "" when the column
// does not exist.
func (t *Table) Value(i int, column string) string {
	idx := t.ColumnIndex(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) || idx >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][idx]
}

// Record returns row i keyed by column name.
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.Columns))
	for c, name := range t.Columns {
		if c < len(t.Rows[i]) {
			rec[name] = t.Rows[i][c]
		}
	}
	return rec
}

// AppendRecord appends rec as a new row. Keys that are not yet columns are
// added to the schema in sorted order and existing rows are padded with "".
func (t *Table) AppendRecord(rec map[string]string) {
	var missing []string
	for k := range rec {
		if !slices.Contains(t.Columns, k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		t.addColumns(missing)
	}

	row := make([]string, len(t.Columns))
	for c, name := range t.Columns {
		row[c] = rec[name]
	}
	t.Rows = append(t.Rows, row)
}

// AppendTable appends every row of other, matching columns by name.
func (t *Table) AppendTable(other *Table) {
	if other == nil {
		return
	}
	if len(t.Columns) == 0 && len(t.Rows) == 0 {
		t.Columns = slices.Clone(other.Columns)
	}
	for i := range other.Rows {
		t.AppendRecord(other.Record(i))
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{Columns: slices.Clone(t.Columns), Rows: make([][]string, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = slices.Clone(r)
	}
	return out
}

func (t *Table) addColumns(names []string) {
	t.Columns = append(t.Columns, names...)
	for i := range t.Rows {
		for len(t.Rows[i]) < len(t.Columns) {
			t.Rows[i] = append(t.Rows[i], "")
		}
	}
}
