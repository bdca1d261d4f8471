package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"breachetl/internal/ddl"
	"breachetl/internal/etlerr"
	"breachetl/internal/table"
)

// newRepo is a test hook; tests replace it to capture what Write sends to
// the backend.
var newRepo = New

// Write persists tbl to cfg.Table in cfg.Mode and returns the rows written.
// The repository is opened right before use and closed on every path.
func Write(ctx context.Context, cfg Config, tbl *table.Table) (int64, error) {
	if tbl.Width() == 0 {
		return 0, etlerr.New(etlerr.ErrConfig, "storage write", fmt.Errorf("table has no columns"))
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return 0, err
	}
	kind, err := ResolveKind(cfg)
	if err != nil {
		return 0, err
	}
	dialect, err := DialectFor(kind)
	if err != nil {
		return 0, err
	}
	cfg.Kind, cfg.Mode = kind, mode

	def := ddl.FromTable(cfg.Table, tbl, dialect.MapType)
	rows := RowsForWrite(tbl)

	logger := log.Ctx(ctx).With().
		Str("component", "storage").
		Str("kind", kind).
		Str("table", cfg.Table).
		Str("mode", string(mode)).
		Logger()

	repo, err := newRepo(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	start := time.Now()
	var n int64
	switch mode {
	case ModeAppend:
		n, err = repo.AppendTable(ctx, def, rows)
	default:
		n, err = repo.ReplaceTable(ctx, def, rows)
	}
	if err != nil {
		logger.Error().Err(err).Int64("rows", n).Msg("write failed")
		return n, err
	}
	logger.Info().Int64("rows", n).Dur("took", time.Since(start)).Msg("table written")
	return n, nil
}

// RowsForWrite materializes tbl row-major with values the drivers accept:
// mixed columns are rendered to text, and int64 values inside float columns
// are widened to float64. nil stays nil.
func RowsForWrite(tbl *table.Table) [][]any {
	cols := tbl.Columns()
	rows := make([][]any, tbl.Len())
	for i := range rows {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = writeValue(c.Kind, c.Values[i])
		}
		rows[i] = row
	}
	return rows
}

func writeValue(k table.Kind, v any) any {
	if v == nil {
		return nil
	}
	switch k {
	case table.KindMixed:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	case table.KindFloat:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	}
	return v
}
