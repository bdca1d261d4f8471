// Package ddl defines a small, backend-agnostic model for destination tables
// and renders CREATE TABLE statements from it.
//
// Backends supply the dialect parts: a TypeMapper for column types and a
// Quote function for identifiers. Defaults are emitted as raw SQL.
package ddl

import (
	"fmt"
	"strings"
)

// Quote renders one identifier part in a dialect's quoting style.
type Quote func(ident string) string

// QuoteFQN applies q to every dotted part of name. A nil q returns name
// unchanged.
func QuoteFQN(name string, q Quote) string {
	if q == nil {
		return name
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = q(p)
	}
	return strings.Join(parts, ".")
}

// BuildCreateTableSQL renders
//
//	CREATE TABLE <fqn> (
//	  <name> <type> [NOT NULL] [DEFAULT <expr>],
//	  ...,
//	  [PRIMARY KEY (<pk-cols>)]
//	);
//
// Names and types are trimmed. With a nil q identifiers are emitted as-is.
func BuildCreateTableSQL(t TableDef, q Quote) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	ident := func(s string) string {
		if q == nil {
			return s
		}
		return q(s)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(ident(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, ident(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", QuoteFQN(fqn, q), strings.Join(cols, ",\n  ")), nil
}
