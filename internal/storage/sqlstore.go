package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"breachetl/internal/ddl"
	"breachetl/internal/etlerr"
)

// SQLTable drives ReplaceTable and AppendTable for database/sql backends.
// A backend supplies the dialect-specific pieces; the transaction handling
// and the append schema check live here.
type SQLTable struct {
	DB      *sql.DB
	Kind    string
	Dialect Dialect

	// Columns lists the existing columns of fqn with their catalog type
	// names. It returns an empty slice when the table does not exist.
	Columns func(ctx context.Context, q Querier, fqn string) ([]ddl.ColumnDef, error)

	// Insert writes rows inside tx.
	Insert func(ctx context.Context, tx *sql.Tx, def ddl.TableDef, rows [][]any) (int64, error)
}

// Querier is the read side shared by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Replace drops, creates and fills def.FQN in one transaction.
func (s SQLTable) Replace(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	create, err := ddl.BuildCreateTableSQL(def, s.Dialect.Quote)
	if err != nil {
		return 0, etlerr.New(etlerr.ErrConfig, s.Kind+" replace", err)
	}
	drop := "DROP TABLE IF EXISTS " + ddl.QuoteFQN(def.FQN, s.Dialect.Quote)

	return s.inTx(ctx, "replace", func(tx *sql.Tx) (int64, error) {
		if _, err := tx.ExecContext(ctx, drop); err != nil {
			return 0, fmt.Errorf("drop %s: %w", def.FQN, err)
		}
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return 0, fmt.Errorf("create %s: %w", def.FQN, err)
		}
		return s.Insert(ctx, tx, def, rows)
	})
}

// Append creates def.FQN when missing, checks the existing columns otherwise,
// and inserts rows. Introspection runs in the same transaction as the insert,
// so the checked schema is the one written to. Inserts name the existing
// spelling of each column.
func (s SQLTable) Append(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error) {
	create, err := ddl.BuildCreateTableSQL(def, s.Dialect.Quote)
	if err != nil {
		return 0, etlerr.New(etlerr.ErrConfig, s.Kind+" append", err)
	}

	return s.inTx(ctx, "append", func(tx *sql.Tx) (int64, error) {
		existing, err := s.Columns(ctx, tx, def.FQN)
		if err != nil {
			return 0, etlerr.New(etlerr.ErrConnection, s.Kind+" introspect", err)
		}
		target := def
		if len(existing) == 0 {
			log.Ctx(ctx).Info().Str("table", def.FQN).Msg("append target missing; creating")
			if _, err := tx.ExecContext(ctx, create); err != nil {
				return 0, fmt.Errorf("create %s: %w", def.FQN, err)
			}
		} else if target, err = CheckAppend(def, existing); err != nil {
			return 0, err
		}
		return s.Insert(ctx, tx, target, rows)
	})
}

// Exec runs one statement outside any transaction.
func (s SQLTable) Exec(ctx context.Context, stmt string) error {
	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: exec: %w", s.Kind, err)
	}
	return nil
}

func (s SQLTable) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) (int64, error)) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, etlerr.New(etlerr.ErrConnection, s.Kind+" "+op, fmt.Errorf("begin tx: %w", err))
	}
	n, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%s %s: %w", s.Kind, op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s %s: commit: %w", s.Kind, op, err)
	}
	return n, nil
}

// ScanColumns reads (name, type) pairs from rows into column definitions and
// closes rows.
func ScanColumns(rows *sql.Rows) ([]ddl.ColumnDef, error) {
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
