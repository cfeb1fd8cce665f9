// Package analytics provides the shared series and table types used by the
// segmentation, duration and forecasting packages.
package analytics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Series is an ordered sequence of values. NaN marks a missing entry.
type Series []float64

// Missing reports whether the value at i is missing
func (s Series) Missing(i int) bool {
	return math.IsNaN(s[i])
}

// HasMissing reports whether any entry is missing
func (s Series) HasMissing() bool {
	return floats.HasNaN(s)
}

// Present returns the non-missing values in order
func (s Series) Present() []float64 {
	out := make([]float64, 0, len(s))
	for _, v := range s {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the mean of the non-missing values, NaN when there are none
func (s Series) Mean() float64 {
	present := s.Present()
	if len(present) == 0 {
		return math.NaN()
	}
	return stat.Mean(present, nil)
}

// Tail returns the last n entries (the whole series when shorter)
func (s Series) Tail(n int) Series {
	if n >= len(s) || n < 0 {
		return s
	}
	return s[len(s)-n:]
}

// Clone returns a copy that shares no storage with s
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Column is a named column of a Table. Numeric columns hold Floats with NaN
// for missing cells; text columns hold Texts with Valid marking present cells.
type Column struct {
	Name    string
	Numeric bool
	Floats  []float64
	Texts   []string
	Valid   []bool
}

// NewNumericColumn creates a numeric column
func NewNumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Numeric: true, Floats: values}
}

// NewTextColumn creates a text column. A nil valid mask marks every cell present.
func NewTextColumn(name string, values []string, valid []bool) *Column {
	if valid == nil {
		valid = make([]bool, len(values))
		for i := range valid {
			valid[i] = true
		}
	}
	return &Column{Name: name, Texts: values, Valid: valid}
}

// Len returns the number of cells
func (c *Column) Len() int {
	if c.Numeric {
		return len(c.Floats)
	}
	return len(c.Texts)
}

// IsMissing reports whether cell i is missing
func (c *Column) IsMissing(i int) bool {
	if c.Numeric {
		return math.IsNaN(c.Floats[i])
	}
	return !c.Valid[i]
}

// MissingCount returns the number of missing cells
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Series returns the numeric values of the column
func (c *Column) Series() Series {
	return Series(c.Floats)
}

// Value returns cell i as a JSON-friendly value (nil when missing)
func (c *Column) Value(i int) interface{} {
	if c.IsMissing(i) {
		return nil
	}
	if c.Numeric {
		return c.Floats[i]
	}
	return c.Texts[i]
}

func (c *Column) slice(start, end int) *Column {
	out := &Column{Name: c.Name, Numeric: c.Numeric}
	if c.Numeric {
		out.Floats = append([]float64(nil), c.Floats[start:end]...)
		return out
	}
	out.Texts = append([]string(nil), c.Texts[start:end]...)
	out.Valid = append([]bool(nil), c.Valid[start:end]...)
	return out
}

func (c *Column) clone() *Column {
	return c.slice(0, c.Len())
}

// Table is a column-oriented row set; all columns share one row index.
type Table struct {
	Columns []*Column
}

// NewTable builds a table and checks that every column has the same length
func NewTable(columns ...*Column) (*Table, error) {
	for _, c := range columns {
		if c.Len() != columns[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), columns[0].Len())
		}
	}
	return &Table{Columns: columns}, nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Names returns the column names in order
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Slice returns a copy of the rows in [start, end)
func (t *Table) Slice(start, end int) *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.slice(start, end)
	}
	return out
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.clone()
	}
	return out
}

// Select returns a table restricted to the named columns, skipping unknown names
func (t *Table) Select(names ...string) *Table {
	out := &Table{}
	for _, name := range names {
		if c, ok := t.Column(name); ok {
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}

// Records returns the rows as maps keyed by column name
func (t *Table) Records() []map[string]interface{} {
	records := make([]map[string]interface{}, t.Len())
	for i := range records {
		row := make(map[string]interface{}, len(t.Columns))
		for _, c := range t.Columns {
			row[c.Name] = c.Value(i)
		}
		records[i] = row
	}
	return records
}
