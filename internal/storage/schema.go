package storage

import (
	"fmt"
	"strings"

	"breachetl/internal/ddl"
	"breachetl/internal/etlerr"
)

// CheckAppend verifies that an existing table (described by existing, with
// SQLType holding the catalog's type name) can take rows shaped like want,
// and returns want with every column renamed to the existing spelling so
// inserts address the real columns. A column matches exactly first, then
// case-insensitively; a case-insensitive match must be unique and no two
// incoming columns may land on the same existing one. The type family must
// accept the incoming one. Extra existing columns are allowed.
func CheckAppend(want ddl.TableDef, existing []ddl.ColumnDef) (ddl.TableDef, error) {
	op := "append " + want.FQN
	byName := make(map[string]ddl.ColumnDef, len(existing))
	byFold := make(map[string][]ddl.ColumnDef, len(existing))
	for _, c := range existing {
		byName[c.Name] = c
		k := strings.ToLower(c.Name)
		byFold[k] = append(byFold[k], c)
	}

	out := ddl.TableDef{FQN: want.FQN, Columns: make([]ddl.ColumnDef, len(want.Columns))}
	taken := make(map[string]string, len(want.Columns))
	for i, c := range want.Columns {
		have, ok := byName[c.Name]
		if !ok {
			switch folded := byFold[strings.ToLower(c.Name)]; len(folded) {
			case 0:
				return ddl.TableDef{}, etlerr.Column(etlerr.ErrSchema, op, c.Name,
					fmt.Errorf("column missing from existing table"))
			case 1:
				have = folded[0]
			default:
				return ddl.TableDef{}, etlerr.Column(etlerr.ErrSchema, op, c.Name,
					fmt.Errorf("matches %d existing columns differing only in case", len(folded)))
			}
		}
		if prev, dup := taken[have.Name]; dup {
			return ddl.TableDef{}, etlerr.Column(etlerr.ErrSchema, op, c.Name,
				fmt.Errorf("maps to existing column %q already used by %q", have.Name, prev))
		}
		taken[have.Name] = c.Name

		hf, wf := ddl.FamilyOf(have.SQLType), ddl.FamilyOf(c.SQLType)
		if !ddl.Accepts(hf, wf) {
			return ddl.TableDef{}, etlerr.Column(etlerr.ErrSchema, op, c.Name,
				fmt.Errorf("existing type %q (%s) does not accept %s (%s)", have.SQLType, hf, c.SQLType, wf))
		}
		out.Columns[i] = c
		out.Columns[i].Name = have.Name
	}
	return out, nil
}
