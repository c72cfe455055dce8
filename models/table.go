package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CellKind tells which representation a Cell currently holds.
type CellKind int

const (
	// CellMissing marks an absent value (the record lacked the field).
	CellMissing CellKind = iota
	// CellString is raw scraped text.
	CellString
	// CellNumber is a parsed numeric value.
	CellNumber
)

// Cell is one value of a Table.
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
}

// StringCell wraps raw text.
func StringCell(s string) Cell { return Cell{Kind: CellString, Str: s} }

// NumberCell wraps a parsed number.
func NumberCell(v float64) Cell { return Cell{Kind: CellNumber, Num: v} }

// MissingCell is the absent value.
func MissingCell() Cell { return Cell{Kind: CellMissing} }

// IsMissing reports whether the cell holds no value.
func (c Cell) IsMissing() bool { return c.Kind == CellMissing }

// String renders the cell for delimited output. Missing cells render empty.
func (c Cell) String() string {
	switch c.Kind {
	case CellString:
		return c.Str
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes missing cells as null and numbers as JSON numbers.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellString:
		return json.Marshal(c.Str)
	case CellNumber:
		return json.Marshal(c.Num)
	default:
		return []byte("null"), nil
	}
}

// Table is the in-memory tabular form of scraped products. Row order matches
// the order of the records it was built from.
type Table struct {
	columns []string
	colIdx  map[string]int
	rows    [][]Cell
	index   string
}

// NewTable builds a table from raw records. Columns appear in order of first
// occurrence across the records; absent fields become missing cells.
func NewTable(products []*RawProduct) *Table {
	t := &Table{colIdx: make(map[string]int)}
	for _, p := range products {
		for _, key := range p.Keys() {
			if _, ok := t.colIdx[key]; !ok {
				t.colIdx[key] = len(t.columns)
				t.columns = append(t.columns, key)
			}
		}
	}
	t.rows = make([][]Cell, 0, len(products))
	for _, p := range products {
		row := make([]Cell, len(t.columns))
		for i, col := range t.columns {
			if v, ok := p.Get(col); ok {
				row[i] = StringCell(v)
			}
		}
		t.rows = append(t.rows, row)
	}
	return t
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len reports the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.rows) == 0 }

// HasColumn reports whether name is a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIdx[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]Cell, bool) {
	i, ok := t.colIdx[name]
	if !ok {
		return nil, false
	}
	out := make([]Cell, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, true
}

// SetColumn replaces the named column, appending it when it does not exist.
func (t *Table) SetColumn(name string, cells []Cell) error {
	if len(cells) != len(t.rows) {
		return fmt.Errorf("column %q has %d cells, table has %d rows", name, len(cells), len(t.rows))
	}
	i, ok := t.colIdx[name]
	if !ok {
		if t.colIdx == nil {
			t.colIdx = make(map[string]int)
		}
		i = len(t.columns)
		t.colIdx[name] = i
		t.columns = append(t.columns, name)
		for r := range t.rows {
			t.rows[r] = append(t.rows[r], MissingCell())
		}
	}
	for r := range t.rows {
		t.rows[r][i] = cells[r]
	}
	return nil
}

// Row returns a copy of row r.
func (t *Table) Row(r int) []Cell {
	out := make([]Cell, len(t.rows[r]))
	copy(out, t.rows[r])
	return out
}

// Get returns the cell at row r in the named column.
func (t *Table) Get(r int, name string) (Cell, bool) {
	i, ok := t.colIdx[name]
	if !ok || r < 0 || r >= len(t.rows) {
		return Cell{}, false
	}
	return t.rows[r][i], true
}

// SetIndex marks name as the index column and moves it to the front.
func (t *Table) SetIndex(name string) error {
	i, ok := t.colIdx[name]
	if !ok {
		return fmt.Errorf("index column %q does not exist", name)
	}
	if i != 0 {
		t.columns = append([]string{name}, append(t.columns[:i:i], t.columns[i+1:]...)...)
		for r, row := range t.rows {
			cell := row[i]
			rest := append(row[:i:i], row[i+1:]...)
			t.rows[r] = append([]Cell{cell}, rest...)
		}
		for c, col := range t.columns {
			t.colIdx[col] = c
		}
	}
	t.index = name
	return nil
}

// Index returns the index column name, empty when none is set.
func (t *Table) Index() string { return t.index }
