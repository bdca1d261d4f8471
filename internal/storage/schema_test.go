package storage

import (
	"errors"
	"reflect"
	"testing"

	"breachetl/internal/ddl"
	"breachetl/internal/etlerr"
)

func TestCheckAppend(t *testing.T) {
	t.Parallel()

	want := ddl.TableDef{FQN: "breaches", Columns: []ddl.ColumnDef{
		{Name: "Entity", SQLType: "TEXT"},
		{Name: "Records", SQLType: "BIGINT"},
	}}

	tests := []struct {
		name      string
		existing  []ddl.ColumnDef
		wantNames []string
		wantErr   bool
	}{
		{
			name:      "exact",
			existing:  []ddl.ColumnDef{{Name: "Entity", SQLType: "text"}, {Name: "Records", SQLType: "bigint"}},
			wantNames: []string{"Entity", "Records"},
		},
		{
			name:      "case-insensitive names take the existing spelling",
			existing:  []ddl.ColumnDef{{Name: "entity", SQLType: "character varying"}, {Name: "records", SQLType: "integer"}, {Name: "id", SQLType: "bigint"}},
			wantNames: []string{"entity", "records"},
		},
		{
			name:      "exact match wins over a case variant",
			existing:  []ddl.ColumnDef{{Name: "ENTITY", SQLType: "text"}, {Name: "Entity", SQLType: "text"}, {Name: "records", SQLType: "bigint"}},
			wantNames: []string{"Entity", "records"},
		},
		{
			name:      "integer into numeric",
			existing:  []ddl.ColumnDef{{Name: "Entity", SQLType: "NVARCHAR(MAX)"}, {Name: "Records", SQLType: "double precision"}},
			wantNames: []string{"Entity", "Records"},
		},
		{
			name:      "untyped sqlite columns",
			existing:  []ddl.ColumnDef{{Name: "Entity", SQLType: ""}, {Name: "Records", SQLType: ""}},
			wantNames: []string{"Entity", "Records"},
		},
		{
			name:     "ambiguous case variants",
			existing: []ddl.ColumnDef{{Name: "Entity", SQLType: "text"}, {Name: "RECORDS", SQLType: "bigint"}, {Name: "records", SQLType: "bigint"}},
			wantErr:  true,
		},
		{
			name:     "interval is not an integer",
			existing: []ddl.ColumnDef{{Name: "Entity", SQLType: "text"}, {Name: "Records", SQLType: "interval"}},
			wantErr:  true,
		},
		{
			name:     "missing column",
			existing: []ddl.ColumnDef{{Name: "Entity", SQLType: "text"}},
			wantErr:  true,
		},
		{
			name:     "text into integer",
			existing: []ddl.ColumnDef{{Name: "Entity", SQLType: "bigint"}, {Name: "Records", SQLType: "bigint"}},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CheckAppend(want, tt.existing)
			if tt.wantErr != (err != nil) {
				t.Fatalf("CheckAppend error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, etlerr.ErrSchema) {
					t.Fatalf("CheckAppend error = %v, want ErrSchema", err)
				}
				return
			}
			if !reflect.DeepEqual(got.Names(), tt.wantNames) {
				t.Fatalf("resolved names = %v, want %v", got.Names(), tt.wantNames)
			}
			if got.Columns[1].SQLType != "BIGINT" || got.FQN != "breaches" {
				t.Fatalf("resolved def lost incoming types: %+v", got)
			}
		})
	}
}

// Two incoming columns differing only in case cannot both write the one
// existing column.
func TestCheckAppend_TwoColumnsOneTarget(t *testing.T) {
	t.Parallel()

	want := ddl.TableDef{FQN: "breaches", Columns: []ddl.ColumnDef{
		{Name: "Records", SQLType: "BIGINT"},
		{Name: "records", SQLType: "BIGINT"},
	}}
	_, err := CheckAppend(want, []ddl.ColumnDef{{Name: "records", SQLType: "bigint"}})
	if !errors.Is(err, etlerr.ErrSchema) {
		t.Fatalf("CheckAppend error = %v, want ErrSchema", err)
	}
}
