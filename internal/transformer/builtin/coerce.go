package builtin

import (
	"context"

	"github.com/rs/zerolog/log"

	"breachetl/internal/etlerr"
	"breachetl/internal/parser/numeric"
	"breachetl/internal/table"
)

// Coerce converts the named columns to int64. Values without an integer
// reading (words, ranges, blanks, nil, non-finite or out-of-range numbers)
// become 0. Decimals are truncated toward zero.
type Coerce struct {
	Columns []string
}

// Apply coerces and logs how many values fell back to 0 per column.
func (c Coerce) Apply(ctx context.Context, in *table.Table) (*table.Table, error) {
	out, zeroed, err := coerceInt(in, c.Columns)
	if err != nil {
		return nil, err
	}
	for name, n := range zeroed {
		if n > 0 {
			log.Ctx(ctx).Debug().
				Str("component", "coerce").
				Str("column", name).
				Int("zeroed", n).
				Msg("non-numeric values set to 0")
		}
	}
	return out, nil
}

// CoerceInt is Coerce without logging. Every column must exist.
func CoerceInt(in *table.Table, columns ...string) (*table.Table, error) {
	out, _, err := coerceInt(in, columns)
	return out, err
}

func coerceInt(in *table.Table, columns []string) (*table.Table, map[string]int, error) {
	for _, name := range columns {
		if _, ok := in.Index(name); !ok {
			return nil, nil, etlerr.Column(etlerr.ErrColumnNotFound, "coerce", name, nil)
		}
	}

	zeroed := make(map[string]int, len(columns))
	out := in
	for _, name := range columns {
		if _, done := zeroed[name]; done {
			continue
		}
		col, err := out.Column(name)
		if err != nil {
			return nil, nil, err
		}
		vals := make([]any, len(col.Values))
		fallback := 0
		for i, v := range col.Values {
			n, ok := numeric.ToInt(v)
			if !ok {
				fallback++
			}
			vals[i] = n
		}
		zeroed[name] = fallback
		if out, err = out.WithColumn(table.Column{Name: name, Kind: table.KindInt, Values: vals}); err != nil {
			return nil, nil, err
		}
	}
	return out, zeroed, nil
}
