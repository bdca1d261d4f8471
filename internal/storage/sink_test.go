package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"breachetl/internal/etlerr"
	"breachetl/internal/table"
)

func init() {
	RegisterDialect("fake", Dialect{
		MapType: func(k table.Kind) string {
			switch k {
			case table.KindInt:
				return "BIGINT"
			case table.KindFloat:
				return "DOUBLE"
			default:
				return "TEXT"
			}
		},
		Quote: func(s string) string { return `"` + s + `"` },
	})
}

// withRepo swaps the repository constructor for the duration of a test. Tests
// using it must not run in parallel.
func withRepo(t *testing.T, repo *fakeRepo, openErr error) {
	t.Helper()
	orig := newRepo
	newRepo = func(context.Context, Config) (Repository, error) {
		if openErr != nil {
			return nil, openErr
		}
		return repo, nil
	}
	t.Cleanup(func() { newRepo = orig })
}

func breachTable() *table.Table {
	return table.MustNew(
		table.NewColumn("Entity", []any{"Acme", "Globex"}),
		table.NewColumn("Records", []any{int64(1000), int64(0)}),
		table.NewColumn("Score", []any{1.5, int64(2)}),
		table.NewColumn("Note", []any{"x", int64(7)}),
	)
}

func TestWrite_ReplaceByDefault(t *testing.T) {
	repo := &fakeRepo{}
	withRepo(t, repo, nil)

	n, err := Write(context.Background(), Config{Kind: "fake", DSN: "x", Table: "breaches"}, breachTable())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 2 || repo.mode != ModeReplace || !repo.closed {
		t.Fatalf("n=%d mode=%q closed=%v", n, repo.mode, repo.closed)
	}

	var types []string
	for _, c := range repo.def.Columns {
		types = append(types, c.SQLType)
	}
	if want := []string{"TEXT", "BIGINT", "DOUBLE", "TEXT"}; !reflect.DeepEqual(types, want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
	// Floats widen ints; mixed columns render as text.
	if want := []any{"Globex", int64(0), float64(2), "7"}; !reflect.DeepEqual(repo.rows[1], want) {
		t.Fatalf("row[1] = %#v, want %#v", repo.rows[1], want)
	}
}

func TestWrite_Append(t *testing.T) {
	repo := &fakeRepo{}
	withRepo(t, repo, nil)

	if _, err := Write(context.Background(), Config{Kind: "fake", Table: "breaches", Mode: ModeAppend}, breachTable()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if repo.mode != ModeAppend {
		t.Fatalf("mode = %q, want append", repo.mode)
	}
}

func TestWrite_Errors(t *testing.T) {
	t.Run("open failure", func(t *testing.T) {
		withRepo(t, nil, etlerr.New(etlerr.ErrConnection, "open", errors.New("refused")))
		_, err := Write(context.Background(), Config{Kind: "fake", Table: "t"}, breachTable())
		if !errors.Is(err, etlerr.ErrConnection) {
			t.Fatalf("err = %v, want ErrConnection", err)
		}
	})

	t.Run("write failure closes", func(t *testing.T) {
		repo := &fakeRepo{writeErr: etlerr.New(etlerr.ErrSchema, "append", errors.New("mismatch"))}
		withRepo(t, repo, nil)
		_, err := Write(context.Background(), Config{Kind: "fake", Table: "t", Mode: ModeAppend}, breachTable())
		if !errors.Is(err, etlerr.ErrSchema) || !repo.closed {
			t.Fatalf("err = %v closed=%v, want ErrSchema and closed", err, repo.closed)
		}
	})

	t.Run("bad mode", func(t *testing.T) {
		withRepo(t, &fakeRepo{}, nil)
		_, err := Write(context.Background(), Config{Kind: "fake", Table: "t", Mode: "upsert"}, breachTable())
		if !errors.Is(err, etlerr.ErrConfig) {
			t.Fatalf("err = %v, want ErrConfig", err)
		}
	})

	t.Run("no columns", func(t *testing.T) {
		withRepo(t, &fakeRepo{}, nil)
		_, err := Write(context.Background(), Config{Kind: "fake", Table: "t"}, table.MustNew())
		if !errors.Is(err, etlerr.ErrConfig) {
			t.Fatalf("err = %v, want ErrConfig", err)
		}
	})
}
