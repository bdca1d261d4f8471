package builtin

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"breachetl/internal/etlerr"
	"breachetl/internal/table"
)

// Explode splits string values on a delimiter and emits one row per token.
// Splits run in order, each on the previous result, so several entries
// produce the cartesian expansion across their columns.
type Explode struct {
	Splits table.SplitMap
}

// Apply explodes and logs the resulting row growth.
func (e Explode) Apply(ctx context.Context, in *table.Table) (*table.Table, error) {
	out, err := ExplodeColumns(in, e.Splits)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().
		Str("component", "explode").
		Strs("columns", e.Splits.Columns()).
		Int("rows_in", in.Len()).
		Int("rows_out", out.Len()).
		Msg("rows exploded")
	return out, nil
}

// ExplodeColumns applies splits to in. Every split column must exist and
// hold strings; both are checked before any row is touched.
func ExplodeColumns(in *table.Table, splits table.SplitMap) (*table.Table, error) {
	for _, s := range splits {
		col, err := in.Column(s.Column)
		if err != nil {
			return nil, etlerr.Column(etlerr.ErrColumnNotFound, "explode", s.Column, nil)
		}
		if col.Kind != table.KindString {
			return nil, etlerr.Column(etlerr.ErrType, "explode", s.Column,
				errors.New("column holds "+col.Kind.String()+" values, want string"))
		}
		if s.Delimiter == "" {
			return nil, etlerr.Column(etlerr.ErrConfig, "explode", s.Column, errors.New("empty delimiter"))
		}
	}

	out := in
	for _, s := range splits {
		out = explodeOne(out, s)
	}
	return out, nil
}

// explodeOne splits a single column. The column was validated by the caller
// and keeps its string kind, so later splits see it unchanged.
func explodeOne(in *table.Table, s table.Split) *table.Table {
	col, _ := in.Column(s.Column)

	idx := make([]int, 0, in.Len())
	tokens := make([]any, 0, in.Len())
	for i, v := range col.Values {
		str, ok := v.(string)
		if !ok {
			idx = append(idx, i)
			tokens = append(tokens, v)
			continue
		}
		for _, tok := range strings.Split(str, s.Delimiter) {
			idx = append(idx, i)
			tokens = append(tokens, tok)
		}
	}

	out := in.Take(idx)
	out, _ = out.WithColumn(table.Column{Name: s.Column, Kind: table.KindString, Values: tokens})
	return out
}
