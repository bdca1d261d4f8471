package sqlite

import (
	"strings"

	"breachetl/internal/table"
)

// MapType maps a column kind to a SQLite type affinity. Mixed columns are
// rendered to text before insert, so they map to TEXT.
func MapType(k table.Kind) string {
	switch k {
	case table.KindInt:
		return "INTEGER"
	case table.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// quoteIdent double-quotes an identifier, doubling embedded quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
