// Package postgres implements a Postgres repository using pgx v5. Rows are
// loaded with COPY inside the same transaction that (re)creates the table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"breachetl/internal/ddl"
	"breachetl/internal/etlerr"
	"breachetl/internal/storage"
	"breachetl/internal/table"
)

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  storage.Config
}

// NewRepository constructs a Repository and returns a Close function for
// cleanup. The pool is pinged so bad DSNs fail here rather than mid-write.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, etlerr.New(etlerr.ErrConnection, "postgres open", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, etlerr.New(etlerr.ErrConnection, "postgres open", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, etlerr.New(etlerr.ErrConnection, "postgres ping", err)
	}
	return &Repository{pool: pool, cfg: cfg}, func() { pool.Close() }, nil
}

// MapType maps a column kind to a Postgres type.
func MapType(k table.Kind) string {
	switch k {
	case table.KindInt:
		return "BIGINT"
	case table.KindFloat:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// ReplaceTable drops, recreates and fills def.FQN in one transaction.
func (r *Repository) ReplaceTable(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	create, err := ddl.BuildCreateTableSQL(def, pgIdent)
	if err != nil {
		return 0, etlerr.New(etlerr.ErrConfig, "postgres replace", err)
	}
	return r.inTx(ctx, "replace", func(tx pgx.Tx) (int64, error) {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgFQN(def.FQN)); err != nil {
			return 0, fmt.Errorf("drop %s: %w", def.FQN, err)
		}
		if _, err := tx.Exec(ctx, create); err != nil {
			return 0, fmt.Errorf("create %s: %w", def.FQN, err)
		}
		return r.copyRows(ctx, tx, def, rows)
	})
}

// AppendTable creates def.FQN when missing, otherwise checks the existing
// columns accept def, then COPYs rows into the existing column names. The
// check and the COPY share one transaction.
func (r *Repository) AppendTable(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	create, err := ddl.BuildCreateTableSQL(def, pgIdent)
	if err != nil {
		return 0, etlerr.New(etlerr.ErrConfig, "postgres append", err)
	}

	return r.inTx(ctx, "append", func(tx pgx.Tx) (int64, error) {
		existing, err := columns(ctx, tx, def.FQN)
		if err != nil {
			return 0, etlerr.New(etlerr.ErrConnection, "postgres introspect", err)
		}
		target := def
		if len(existing) == 0 {
			log.Ctx(ctx).Info().Str("table", def.FQN).Msg("append target missing; creating")
			if _, err := tx.Exec(ctx, create); err != nil {
				return 0, fmt.Errorf("create %s: %w", def.FQN, err)
			}
		} else if target, err = storage.CheckAppend(def, existing); err != nil {
			return 0, err
		}
		return r.copyRows(ctx, tx, target, rows)
	})
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

func (r *Repository) inTx(ctx context.Context, op string, fn func(pgx.Tx) (int64, error)) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, etlerr.New(etlerr.ErrConnection, "postgres "+op, fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := fn(tx)
	if err != nil {
		return 0, fmt.Errorf("postgres %s: %w", op, pgError(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres %s: commit: %w", op, pgError(err))
	}
	return n, nil
}

func (r *Repository) copyRows(ctx context.Context, tx pgx.Tx, def ddl.TableDef, rows [][]any) (int64, error) {
	ident := splitFQN(def.FQN)
	return storage.InsertBatches(ctx, r.cfg.Job, def.Names(), rows, r.cfg.Batch(),
		func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
			return tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(batch))
		})
}

// querier is the read side shared by the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// columns lists the existing columns of fqn. An unqualified name resolves
// against current_schema().
func columns(ctx context.Context, q querier, fqn string) ([]ddl.ColumnDef, error) {
	var schema, name string
	if id := splitFQN(fqn); len(id) > 1 {
		schema, name = id[len(id)-2], id[len(id)-1]
	} else {
		name = fqn
	}
	rows, err := q.Query(ctx, `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
  AND table_name = $2
ORDER BY ordinal_position`, schema, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ddl.ColumnDef
	for rows.Next() {
		var c ddl.ColumnDef
		if err := rows.Scan(&c.Name, &c.SQLType); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// pgError surfaces the server's detail message when there is one.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w: %s (%s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.breaches" to
// "public"."breaches".
func pgFQN(name string) string { return ddl.QuoteFQN(name, pgIdent) }

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
