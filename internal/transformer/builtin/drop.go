package builtin

import (
	"context"

	"breachetl/internal/table"
)

// Drop removes columns. Names that are not present are ignored.
type Drop struct {
	Columns []string
}

// Apply returns in without the configured columns.
func (d Drop) Apply(_ context.Context, in *table.Table) (*table.Table, error) {
	return in.Drop(d.Columns...), nil
}
