// Package etl runs pipelines end to end: open the source, load the CSV into
// a table, apply the transform chain and write the result to the sink.
package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"breachetl/internal/config"
	"breachetl/internal/datasource"
	"breachetl/internal/metrics"
	csvparser "breachetl/internal/parser/csv"
	"breachetl/internal/storage"
	"breachetl/internal/table"
	"breachetl/internal/transformer"
)

// Summary reports one run.
type Summary struct {
	RunID       string
	Job         string
	Loaded      int
	Transformed int
	Written     int64
	Duration    time.Duration
}

// Function variables used as test seams.
var (
	openSourceFn = datasource.FromConfig
	writeFn      = storage.Write
)

// Run executes one pipeline. Every step is timed into metrics; the first
// failing step ends the run and its error is returned unchanged, so callers
// can match etlerr kinds.
func Run(ctx context.Context, p config.Pipeline) (sum Summary, err error) {
	sum = Summary{RunID: uuid.NewString(), Job: p.Job}
	logger := log.Ctx(ctx).With().Str("job", p.Job).Str("run_id", sum.RunID).Logger()
	ctx = logger.WithContext(ctx)
	start := time.Now()
	defer func() { sum.Duration = time.Since(start) }()

	// Config errors surface before any I/O.
	chain, err := transformer.Build(p.Transform)
	if err != nil {
		return sum, err
	}
	src, err := openSourceFn(p.Source)
	if err != nil {
		return sum, err
	}
	sinkCfg, err := storageConfig(p)
	if err != nil {
		return sum, err
	}

	logger.Info().
		Str("source", fmt.Sprint(src)).
		Str("table", p.Storage.DB.Table).
		Str("mode", string(sinkCfg.Mode)).
		Msg("run started")

	var loaded *table.Table
	err = step(p.Job, "load", func() error {
		rc, err := src.Open(ctx)
		if err != nil {
			return err
		}
		defer rc.Close()
		loaded, err = csvparser.Load(ctx, rc, csvparser.OptionsFrom(p.Parser.Options))
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("load failed")
		return sum, err
	}
	sum.Loaded = loaded.Len()
	metrics.RecordRows(p.Job, "loaded", int64(sum.Loaded))

	var out *table.Table
	err = step(p.Job, "transform", func() error {
		out, err = chain.Apply(ctx, loaded)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("transform failed")
		return sum, err
	}
	sum.Transformed = out.Len()
	metrics.RecordRows(p.Job, "transformed", int64(sum.Transformed))

	err = step(p.Job, "write", func() error {
		sum.Written, err = writeFn(ctx, sinkCfg, out)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("write failed")
		return sum, err
	}
	metrics.RecordRows(p.Job, "written", sum.Written)

	logger.Info().
		Int("loaded", sum.Loaded).
		Int("transformed", sum.Transformed).
		Int64("written", sum.Written).
		Dur("took", time.Since(start)).
		Msg("run finished")
	return sum, nil
}

// RunAll runs pipelines concurrently with at most parallel in flight (all at
// once when parallel <= 0). Every pipeline runs to completion; summaries
// are returned in input order and the first error in input order is
// returned.
func RunAll(ctx context.Context, pipelines []config.Pipeline, parallel int) ([]Summary, error) {
	sums := make([]Summary, len(pipelines))
	errs := make([]error, len(pipelines))

	var g errgroup.Group
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i := range pipelines {
		i := i
		g.Go(func() error {
			sums[i], errs[i] = Run(ctx, pipelines[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			return sums, fmt.Errorf("pipeline %q: %w", pipelines[i].Job, err)
		}
	}
	return sums, nil
}

func storageConfig(p config.Pipeline) (storage.Config, error) {
	mode, err := storage.ParseMode(p.Storage.DB.Mode)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Kind:      p.Storage.Kind,
		DSN:       p.Storage.DB.DSN,
		Table:     p.Storage.DB.Table,
		Mode:      mode,
		BatchSize: p.Storage.DB.BatchSize,
		Job:       p.Job,
	}, nil
}

func step(job, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(job, name, err, time.Since(start))
	return err
}
