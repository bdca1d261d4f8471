package builtin

import (
	"context"
	"strings"

	"breachetl/internal/table"
)

// Normalize trims surrounding whitespace in string columns and repairs the
// "Â " sequence left behind when a non-breaking space was decoded as
// latin-1. Values that become empty are set to nil. With no Columns every
// string column is normalized.
type Normalize struct {
	Columns []string
}

// Apply returns a table with the selected string columns normalized.
func (n Normalize) Apply(_ context.Context, in *table.Table) (*table.Table, error) {
	names := n.Columns
	if len(names) == 0 {
		for _, c := range in.Columns() {
			if c.Kind == table.KindString {
				names = append(names, c.Name)
			}
		}
	}

	out := in
	for _, name := range names {
		col, err := out.Column(name)
		if err != nil {
			return nil, err
		}
		vals := make([]any, len(col.Values))
		for i, v := range col.Values {
			s, ok := v.(string)
			if !ok {
				vals[i] = v
				continue
			}
			s = strings.TrimSpace(strings.ReplaceAll(s, "Â ", " "))
			if s == "" {
				vals[i] = nil
				continue
			}
			vals[i] = s
		}
		if out, err = out.WithColumn(table.NewColumn(name, vals)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
