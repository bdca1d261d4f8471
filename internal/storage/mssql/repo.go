// Package mssql implements a SQL Server repository on database/sql with the
// go-mssqldb driver. Rows are loaded with the driver's bulk copy (CopyIn)
// inside the write transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"breachetl/internal/ddl"
	"breachetl/internal/etlerr"
	"breachetl/internal/storage"
	"breachetl/internal/table"
)

// Repository implements storage.Repository for SQL Server.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
	tbl storage.SQLTable
}

// NewRepository validates the DSN, opens a pool and pings it.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, etlerr.New(etlerr.ErrConnection, "mssql open", fmt.Errorf("invalid dsn: %w", err))
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, etlerr.New(etlerr.ErrConnection, "mssql open", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, etlerr.New(etlerr.ErrConnection, "mssql ping", err)
	}

	r := &Repository{db: db, cfg: cfg}
	r.tbl = storage.SQLTable{
		DB:      db,
		Kind:    "mssql",
		Dialect: dialect,
		Columns: existingColumns,
		Insert:  r.bulkInsert,
	}
	return r, func() { _ = db.Close() }, nil
}

// MapType maps a column kind to a SQL Server type.
func MapType(k table.Kind) string {
	switch k {
	case table.KindInt:
		return "BIGINT"
	case table.KindFloat:
		return "FLOAT"
	default:
		return "NVARCHAR(MAX)"
	}
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	return r.tbl.Replace(ctx, def, rows)
}

// AppendTable implements storage.Repository.
func (r *Repository) AppendTable(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	return r.tbl.Append(ctx, def, rows)
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	return r.tbl.Exec(ctx, sqlText)
}

// bulkInsert streams each batch through one CopyIn statement. The final
// argument-less Exec flushes the batch and reports the rows copied.
func (r *Repository) bulkInsert(ctx context.Context, tx *sql.Tx, def ddl.TableDef, rows [][]any) (int64, error) {
	target := msFQN(def.FQN)
	return storage.InsertBatches(ctx, r.cfg.Job, def.Names(), rows, r.cfg.Batch(),
		func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
			stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(target, mssql.BulkOptions{}, columns...))
			if err != nil {
				return 0, fmt.Errorf("prepare bulk: %w", err)
			}
			for i := range batch {
				if _, err := stmt.ExecContext(ctx, batch[i]...); err != nil {
					_ = stmt.Close()
					return 0, fmt.Errorf("bulk row %d: %w", i, err)
				}
			}
			res, err := stmt.ExecContext(ctx)
			if cerr := stmt.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if err != nil {
				return 0, fmt.Errorf("bulk finalize: %w", err)
			}
			return res.RowsAffected()
		})
}

// existingColumns reads INFORMATION_SCHEMA.COLUMNS; an unqualified name
// resolves against the caller's default schema.
func existingColumns(ctx context.Context, q storage.Querier, fqn string) ([]ddl.ColumnDef, error) {
	schema, name := "", fqn
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		schema, name = fqn[:i], fqn[i+1:]
	}
	rows, err := q.QueryContext(ctx, `
SELECT COLUMN_NAME, DATA_TYPE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME())
  AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION`, schema, name)
	if err != nil {
		return nil, err
	}
	return storage.ScanColumns(rows)
}

// msIdent quotes a single identifier for SQL Server using brackets.
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.breaches".
func msFQN(name string) string { return ddl.QuoteFQN(name, msIdent) }
