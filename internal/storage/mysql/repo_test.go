package mysql

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"breachetl/internal/etlerr"
	"breachetl/internal/storage"
	"breachetl/internal/table"
)

func TestDriverDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: "mysql://u:p@tcp(localhost:3306)/breach"},
		{in: "u:p@tcp(localhost:3306)/breach?parseTime=true"},
		{in: "MYSQL://u@tcp(db)/breach"},
		{in: "u:p@tcp(localhost:3306)", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			_, err := DriverDSN(tt.in)
			if tt.wantErr != (err != nil) {
				t.Fatalf("DriverDSN(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestNewRepository_InvalidDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), storage.Config{DSN: "mysql://nope"})
	if !errors.Is(err, etlerr.ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	stmt, args := insertSQL("`breaches`", []string{"Entity", "Records"}, [][]any{
		{"Acme", int64(1)},
		{nil, int64(2)},
	})
	want := "INSERT INTO `breaches` (`Entity`, `Records`) VALUES (?, ?), (?, ?)"
	if stmt != want {
		t.Fatalf("stmt = %q, want %q", stmt, want)
	}
	if !reflect.DeepEqual(args, []any{"Acme", int64(1), nil, int64(2)}) {
		t.Fatalf("args = %#v", args)
	}
}

func TestAdapterRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg storage.Config
	newRepository = func(_ context.Context, cfg storage.Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() {}, nil
	}
	repo, err := storage.New(context.Background(), storage.Config{DSN: "mysql://u@tcp(db)/breach", Table: "breaches"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()
	if gotCfg.Kind != "mysql" {
		t.Fatalf("kind = %q, want mysql", gotCfg.Kind)
	}
	if MapType(table.KindMixed) != "LONGTEXT" {
		t.Fatal("mixed columns must map to LONGTEXT")
	}
}

// TestIntegration_ReplaceAndAppend runs against a live server named by
// TEST_MYSQL_DSN.
func TestIntegration_ReplaceAndAppend(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	cfg := storage.Config{Kind: "mysql", DSN: dsn, Table: "breachetl_it"}
	tbl := table.MustNew(
		table.NewColumn("Entity", []any{"Acme", "Globex"}),
		table.NewColumn("Records", []any{int64(1), nil}),
	)
	if n, err := storage.Write(ctx, cfg, tbl); err != nil || n != 2 {
		t.Fatalf("replace = %d, %v", n, err)
	}
	cfg.Mode = storage.ModeAppend
	if n, err := storage.Write(ctx, cfg, tbl); err != nil || n != 2 {
		t.Fatalf("append = %d, %v", n, err)
	}
	bad := table.MustNew(table.NewColumn("Records", []any{"lots"}))
	if _, err := storage.Write(ctx, cfg, bad); !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("mismatch err = %v, want ErrSchema", err)
	}
}
