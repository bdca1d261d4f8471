// Package transformer defines the table-to-table stage interface and the
// ordered chain that runs between the loader and the sink.
package transformer

import (
	"context"

	"breachetl/internal/table"
)

// Transformer turns one table into another. Implementations must treat the
// input as read-only and return a new table.
type Transformer interface {
	Apply(ctx context.Context, in *table.Table) (*table.Table, error)
}

// Func adapts a function to the Transformer interface.
type Func func(ctx context.Context, in *table.Table) (*table.Table, error)

// Apply calls f.
func (f Func) Apply(ctx context.Context, in *table.Table) (*table.Table, error) { return f(ctx, in) }

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs every transformer in order and stops at the first error.
func (c Chain) Apply(ctx context.Context, in *table.Table) (*table.Table, error) {
	out := in
	for _, t := range c {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		if out, err = t.Apply(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
