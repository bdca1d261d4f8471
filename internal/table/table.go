// Package table is the in-memory columnar structure that flows between the
// pipeline stages (loader, transformers, sink).
//
// A Table is an ordered list of named columns of equal length. Row identity is
// positional: row i is the i-th value of every column, and indices are always
// contiguous from zero. Stages treat their input as read-only and return a new
// Table; columns that a stage does not touch may be shared between input and
// output, so callers must not mutate Values in place.
package table

import (
	"fmt"

	"breachetl/internal/etlerr"
)

// Kind is the inferred value domain of a column.
type Kind int

const (
	// KindString holds string values (or nil).
	KindString Kind = iota
	// KindInt holds int64 values (or nil).
	KindInt
	// KindFloat holds float64 and int64 values (or nil).
	KindFloat
	// KindMixed holds heterogeneous values.
	KindMixed
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindMixed:
		return "mixed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is a named, typed sequence of values.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewColumn builds a column and infers its kind from values.
func NewColumn(name string, values []any) Column {
	return Column{Name: name, Kind: InferKind(values), Values: values}
}

// InferKind classifies values. nil entries are ignored; a column with no
// non-nil values is a string column.
func InferKind(values []any) Kind {
	var strs, ints, floats, other int
	for _, v := range values {
		switch v.(type) {
		case nil:
		case string:
			strs++
		case int64:
			ints++
		case float64:
			floats++
		default:
			other++
		}
	}
	switch {
	case other > 0:
		return KindMixed
	case strs > 0 && ints+floats == 0:
		return KindString
	case strs > 0:
		return KindMixed
	case floats > 0:
		return KindFloat
	case ints > 0:
		return KindInt
	default:
		return KindString
	}
}

// Table is an ordered set of equal-length columns.
type Table struct {
	cols []Column
	rows int
}

// New assembles a table. Column names must be unique and all columns must
// have the same length.
func New(cols ...Column) (*Table, error) {
	t := &Table{cols: make([]Column, 0, len(cols))}
	seen := make(map[string]struct{}, len(cols))
	for i, c := range cols {
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if i == 0 {
			t.rows = len(c.Values)
		} else if len(c.Values) != t.rows {
			return nil, fmt.Errorf("table: column %q has %d values, want %d", c.Name, len(c.Values), t.rows)
		}
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New for tests and literals; it panics on error.
func MustNew(cols ...Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order. The slice is a copy; the Values
// backing arrays are shared.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.cols...)
}

// Index returns the position of the named column.
func (t *Table) Index(name string) (int, bool) {
	for i, c := range t.cols {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns the named column or an ErrColumnNotFound error.
func (t *Table) Column(name string) (Column, error) {
	i, ok := t.Index(name)
	if !ok {
		return Column{}, etlerr.Column(etlerr.ErrColumnNotFound, "table", name, nil)
	}
	return t.cols[i], nil
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.Values[i]
	}
	return out
}

// Rows materializes every row in column order.
func (t *Table) Rows() [][]any {
	out := make([][]any, t.rows)
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// Clone deep-copies the column value slices.
func (t *Table) Clone() *Table {
	out := &Table{cols: make([]Column, len(t.cols)), rows: t.rows}
	for i, c := range t.cols {
		out.cols[i] = Column{Name: c.Name, Kind: c.Kind, Values: append([]any(nil), c.Values...)}
	}
	return out
}

// WithColumn returns a new table where col replaces the same-named column.
// Other columns are shared with t.
func (t *Table) WithColumn(col Column) (*Table, error) {
	i, ok := t.Index(col.Name)
	if !ok {
		return nil, etlerr.Column(etlerr.ErrColumnNotFound, "table", col.Name, nil)
	}
	if len(col.Values) != t.rows {
		return nil, fmt.Errorf("table: column %q has %d values, want %d", col.Name, len(col.Values), t.rows)
	}
	out := &Table{cols: append([]Column(nil), t.cols...), rows: t.rows}
	out.cols[i] = col
	return out, nil
}

// Drop returns a table without the named columns. Names that are not present
// are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	out := &Table{cols: make([]Column, 0, len(t.cols)), rows: t.rows}
	for _, c := range t.cols {
		if _, ok := skip[c.Name]; ok {
			continue
		}
		out.cols = append(out.cols, c)
	}
	return out
}

// Take builds a new table from the given row indices, in order. Indices may
// repeat; that is how rows are duplicated when exploding.
func (t *Table) Take(idx []int) *Table {
	out := &Table{cols: make([]Column, len(t.cols)), rows: len(idx)}
	for j, c := range t.cols {
		vals := make([]any, len(idx))
		for i, src := range idx {
			vals[i] = c.Values[src]
		}
		out.cols[j] = Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	return out
}
