package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"breachetl/internal/metrics"
)

// CopyFn inserts one batch of rows (aligned to columns) and returns the
// number of rows written. Backends close over their open transaction.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// InsertBatches slices rows into batches of batchSize and calls copyFn for
// each. It returns the running total and the first error. A progress line is
// logged per batch and the batch count is recorded for job.
func InsertBatches(
	ctx context.Context,
	job string,
	columns []string,
	rows [][]any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	logger := log.Ctx(ctx)
	var (
		total   int64
		batches int64
		start   = time.Now()
	)
	defer func() { metrics.RecordBatches(job, batches) }()

	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := lo + batchSize
		if hi > len(rows) {
			hi = len(rows)
		}
		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			logger.Error().Err(err).Int64("batch", batches+1).Int64("total", total).Msg("batch insert failed")
			return total, err
		}
		batches++

		elapsed := time.Since(start)
		rps := float64(0)
		if elapsed > 0 {
			rps = float64(total) / elapsed.Seconds()
		}
		logger.Debug().
			Int64("batch", batches).
			Int64("inserted", n).
			Int64("total", total).
			Float64("rps", rps).
			Dur("elapsed", elapsed).
			Msg("batch inserted")
	}
	return total, nil
}
