// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc.org/sqlite driver. SQLite has no bulk
// load API, so rows go through a prepared INSERT inside the write
// transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"breachetl/internal/ddl"
	"breachetl/internal/etlerr"
	"breachetl/internal/storage"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
	tbl storage.SQLTable
}

// NewRepository opens the database named by cfg.DSN and returns a Repository
// plus a Close function for cleanup.
//
// DSN is passed directly to the driver, for example:
//
//	"file:breach.db?cache=shared"
//	"breach.db"
//	":memory:"
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, etlerr.New(etlerr.ErrConnection, "sqlite open", fmt.Errorf("dsn must not be empty"))
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, etlerr.New(etlerr.ErrConnection, "sqlite open", err)
	}
	// One connection: SQLite serializes writers, and ":memory:" databases are
	// per connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, etlerr.New(etlerr.ErrConnection, "sqlite ping", err)
	}

	r := &Repository{db: db, cfg: cfg}
	r.tbl = storage.SQLTable{
		DB:      db,
		Kind:    "sqlite",
		Dialect: dialect,
		Columns: existingColumns,
		Insert:  r.insert,
	}
	return r, func() { db.Close() }, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	return r.tbl.Replace(ctx, def, rows)
}

// AppendTable implements storage.Repository.
func (r *Repository) AppendTable(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	return r.tbl.Append(ctx, def, rows)
}

// Exec executes a single statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	return r.tbl.Exec(ctx, sql)
}

func (r *Repository) insert(ctx context.Context, tx *sql.Tx, def ddl.TableDef, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := def.Names()
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		ddl.QuoteFQN(def.FQN, quoteIdent),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	return storage.InsertBatches(ctx, r.cfg.Job, cols, rows, r.cfg.Batch(),
		func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
			var n int64
			for _, row := range batch {
				if len(row) != len(columns) {
					return n, fmt.Errorf("row length %d != columns length %d", len(row), len(columns))
				}
				if _, err := stmt.ExecContext(ctx, row...); err != nil {
					return n, fmt.Errorf("insert: %w", err)
				}
				n++
			}
			return n, nil
		})
}

// existingColumns lists fqn's columns via pragma_table_info. A "schema.table"
// name is split so attached databases work.
func existingColumns(ctx context.Context, q storage.Querier, fqn string) ([]ddl.ColumnDef, error) {
	schema, name := "main", fqn
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		schema, name = fqn[:i], fqn[i+1:]
	}
	rows, err := q.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?, ?)`, name, schema)
	if err != nil {
		return nil, err
	}
	return storage.ScanColumns(rows)
}
