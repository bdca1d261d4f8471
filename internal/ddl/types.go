package ddl

import (
	"strings"

	"breachetl/internal/table"
)

// ColumnDef describes a single column of a destination table.
//
// Name is unquoted; quoting happens at render time. SQLType is the dialect
// type (e.g. TEXT, BIGINT). Default is a raw SQL expression.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name (optionally schema-qualified, dotted) and the
// ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Names returns the column names in order.
func (t TableDef) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// TypeMapper maps a table column kind to a dialect SQL type.
type TypeMapper func(k table.Kind) string

// FromTable derives a table definition from tbl. Every column is nullable;
// the loader produces nil for empty cells in any column.
func FromTable(fqn string, tbl *table.Table, mapType TypeMapper) TableDef {
	cols := tbl.Columns()
	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(cols))}
	for i, c := range cols {
		def.Columns[i] = ColumnDef{Name: c.Name, SQLType: mapType(c.Kind), Nullable: true}
	}
	return def
}

// Family groups SQL types that accept the same Go values.
type Family int

const (
	FamilyOther Family = iota
	FamilyText
	FamilyInteger
	FamilyNumeric
	// FamilyAny is a column declared without a type (SQLite), which stores
	// whatever it is given.
	FamilyAny
)

func (f Family) String() string {
	switch f {
	case FamilyText:
		return "text"
	case FamilyInteger:
		return "integer"
	case FamilyNumeric:
		return "numeric"
	case FamilyAny:
		return "any"
	default:
		return "other"
	}
}

var integerWords = map[string]struct{}{
	"int": {}, "integer": {}, "bigint": {}, "smallint": {}, "tinyint": {}, "mediumint": {},
	"serial": {}, "bigserial": {}, "smallserial": {},
}

var numericWords = map[string]struct{}{
	"numeric": {}, "decimal": {}, "real": {}, "double": {}, "float": {},
	"money": {}, "smallmoney": {}, "number": {},
}

// FamilyOf classifies a SQL type name from any of the supported dialects
// (e.g. "character varying", "NVARCHAR(MAX)", "bigint", "double precision",
// "int8"). The name is split into letter runs and each word is matched whole,
// so "interval" or "point" stay FamilyOther. An empty name is FamilyAny.
func FamilyOf(sqlType string) Family {
	words := strings.FieldsFunc(strings.ToLower(sqlType), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	if len(words) == 0 {
		return FamilyAny
	}
	for _, w := range words {
		switch {
		case strings.Contains(w, "char"), strings.HasSuffix(w, "text"), w == "clob", w == "string":
			return FamilyText
		}
		if _, ok := integerWords[w]; ok {
			return FamilyInteger
		}
		if _, ok := numericWords[w]; ok {
			return FamilyNumeric
		}
	}
	return FamilyOther
}

// Accepts reports whether a column of family existing can store values
// written for a column of family incoming. Untyped columns take anything and
// integers fit numeric columns; otherwise the families must match.
func Accepts(existing, incoming Family) bool {
	if existing == FamilyAny {
		return true
	}
	if existing == FamilyOther || incoming == FamilyOther {
		return false
	}
	if existing == incoming {
		return true
	}
	return existing == FamilyNumeric && incoming == FamilyInteger
}
