package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"breachetl/internal/etlerr"
	"breachetl/internal/storage"
	"breachetl/internal/table"
)

/*
Package-level test helpers
*/

func tempDSN(t *testing.T) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "breach.db")
}

func queryRows(t *testing.T, dsn, q string) [][]any {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(q)
	if err != nil {
		t.Fatalf("query %q: %v", q, err)
	}
	defer rows.Close()
	cols, _ := rows.Columns()
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, vals)
	}
	return out
}

func breaches(entities []any, records []any) *table.Table {
	return table.MustNew(
		table.NewColumn("Entity", entities),
		table.NewColumn("Records", records),
	)
}

/*
Unit tests
*/

// TestWrite_ReplaceTwiceKeepsOnlySecond checks replace mode drops the old
// table contents.
func TestWrite_ReplaceTwiceKeepsOnlySecond(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := storage.Config{Kind: "sqlite", DSN: tempDSN(t), Table: "breaches", Mode: storage.ModeReplace}

	if _, err := storage.Write(ctx, cfg, breaches([]any{"Acme", "Globex"}, []any{int64(1), int64(2)})); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	n, err := storage.Write(ctx, cfg, breaches([]any{"Initech"}, []any{int64(3)}))
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows written = %d, want 1", n)
	}

	got := queryRows(t, cfg.DSN, `SELECT "Entity", "Records" FROM breaches`)
	if want := [][]any{{"Initech", int64(3)}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %#v, want %#v", got, want)
	}
}

func TestWrite_AppendCreatesThenAppends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := storage.Config{DSN: tempDSN(t), Table: "breaches", Mode: storage.ModeAppend}

	for i := 0; i < 2; i++ {
		if _, err := storage.Write(ctx, cfg, breaches([]any{"Acme"}, []any{int64(i)})); err != nil {
			t.Fatalf("Write #%d: %v", i, err)
		}
	}
	got := queryRows(t, cfg.DSN, `SELECT "Records" FROM breaches ORDER BY "Records"`)
	if want := [][]any{{int64(0)}, {int64(1)}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %#v, want %#v", got, want)
	}
}

func TestWrite_AppendSchemaMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := storage.Config{Kind: "sqlite", DSN: tempDSN(t), Table: "breaches", Mode: storage.ModeAppend}

	if _, err := storage.Write(ctx, cfg, breaches([]any{"Acme"}, []any{int64(1)})); err != nil {
		t.Fatalf("seed Write: %v", err)
	}

	// Text into an INTEGER column.
	_, err := storage.Write(ctx, cfg, breaches([]any{"Acme"}, []any{"many"}))
	if !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("text into int error = %v, want ErrSchema", err)
	}

	// Column absent from the existing table.
	extra := table.MustNew(table.NewColumn("Method", []any{"hacked"}))
	if _, err := storage.Write(ctx, cfg, extra); !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("missing column error = %v, want ErrSchema", err)
	}

	got := queryRows(t, cfg.DSN, `SELECT COUNT(*) FROM breaches`)
	if got[0][0] != int64(1) {
		t.Fatalf("rows after failed appends = %v, want 1", got[0][0])
	}
}

// A table made elsewhere with lower-case names and an untyped column takes
// appends from the CSV's mixed-case headers.
func TestWrite_AppendToForeignTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := tempDSN(t)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE breaches (id INTEGER PRIMARY KEY, entity TEXT, records)`); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	cfg := storage.Config{Kind: "sqlite", DSN: dsn, Table: "breaches", Mode: storage.ModeAppend}
	if n, err := storage.Write(ctx, cfg, breaches([]any{"Acme", "Globex"}, []any{int64(1000), int64(0)})); err != nil || n != 2 {
		t.Fatalf("append = %d, %v", n, err)
	}

	got := queryRows(t, dsn, `SELECT entity, records FROM breaches ORDER BY id`)
	want := [][]any{{"Acme", int64(1000)}, {"Globex", int64(0)}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %#v, want %#v", got, want)
	}
	cols := queryRows(t, dsn, `SELECT COUNT(*) FROM pragma_table_info('breaches')`)
	if cols[0][0] != int64(3) {
		t.Fatalf("column count = %v, want 3 (no columns added)", cols[0][0])
	}
}

func TestWrite_NullsAndFloats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := storage.Config{Kind: "sqlite", DSN: tempDSN(t), Table: "t", BatchSize: 1}
	tbl := table.MustNew(
		table.NewColumn("Year.1", []any{nil, int64(2020)}),
		table.NewColumn("Score", []any{1.5, nil}),
	)
	if _, err := storage.Write(ctx, cfg, tbl); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := queryRows(t, cfg.DSN, `SELECT "Year.1", "Score" FROM t`)
	if want := [][]any{{nil, 1.5}, {int64(2020), nil}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %#v, want %#v", got, want)
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), storage.Config{}); !errors.Is(err, etlerr.ErrConnection) {
		t.Fatalf("empty DSN error = %v, want ErrConnection", err)
	}
	dsn := "file:" + filepath.Join(t.TempDir(), "missing", "dir", "x.db") + "?mode=ro"
	if _, _, err := NewRepository(context.Background(), storage.Config{DSN: dsn}); !errors.Is(err, etlerr.ErrConnection) {
		t.Fatalf("unreachable DSN error = %v, want ErrConnection", err)
	}
}

// TestRegistrationUsesNewRepositoryHook verifies that the "sqlite" backend
// registered in init() uses the newRepository hook and that wrappedRepo
// delegates Close.
func TestRegistrationUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var (
		gotCfg storage.Config
		closed bool
	)
	newRepository = func(_ context.Context, cfg storage.Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{DSN: "breach.db", Table: "breaches"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotCfg.Kind != "sqlite" || gotCfg.Table != "breaches" {
		t.Fatalf("cfg = %+v", gotCfg)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close did not call closeFn")
	}
}
