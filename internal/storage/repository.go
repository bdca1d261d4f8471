// Package storage is the backend-agnostic sink. Backends register a Factory
// and a Dialect for their kind at init time; callers go through Write (or
// New) and never import a backend directly.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"breachetl/internal/ddl"
	"breachetl/internal/etlerr"
)

// Mode selects what happens to an existing destination table.
type Mode string

const (
	// ModeReplace drops and recreates the table, then inserts every row.
	ModeReplace Mode = "replace"
	// ModeAppend creates the table when missing and inserts after it.
	ModeAppend Mode = "append"
)

// ParseMode maps a config string to a Mode. Empty means replace.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", etlerr.New(etlerr.ErrConfig, "storage", fmt.Errorf("unknown write mode %q", s))
	}
}

// DefaultBatchSize is the row count per insert batch when Config.BatchSize
// is not set.
const DefaultBatchSize = 1000

// Config selects and configures a backend.
type Config struct {
	// Kind is the backend ("postgres", "sqlite", "mssql", "mysql"). Empty
	// means KindFromDSN(DSN).
	Kind string

	DSN   string
	Table string
	Mode  Mode

	// BatchSize bounds rows per insert batch on backends without a native
	// bulk path.
	BatchSize int

	// Job labels metrics emitted by the backend.
	Job string
}

// Batch returns BatchSize or DefaultBatchSize.
func (c Config) Batch() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

// Repository writes whole tables. Implementations own their connection and
// release it in Close.
type Repository interface {
	// ReplaceTable drops def.FQN if present, creates it and inserts rows.
	ReplaceTable(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error)

	// AppendTable creates def.FQN when missing, otherwise checks that the
	// existing columns accept def, then inserts rows.
	AppendTable(ctx context.Context, def ddl.TableDef, rows [][]any) (int64, error)

	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ResolveKind returns cfg.Kind, or the kind implied by the DSN.
func ResolveKind(cfg Config) (string, error) {
	if k := strings.TrimSpace(cfg.Kind); k != "" {
		return k, nil
	}
	if k := KindFromDSN(cfg.DSN); k != "" {
		return k, nil
	}
	return "", etlerr.New(etlerr.ErrConfig, "storage", fmt.Errorf("cannot infer storage.kind from dsn"))
}

// New opens a Repository through the factory registered for the resolved
// kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	kind, err := ResolveKind(cfg)
	if err != nil {
		return nil, err
	}
	factoryMu.RLock()
	f, ok := factories[kind]
	factoryMu.RUnlock()
	if !ok {
		return nil, etlerr.New(etlerr.ErrConfig, "storage",
			fmt.Errorf("unsupported storage.kind=%s (registered: %s)", kind, strings.Join(ListKinds(), ", ")))
	}
	cfg.Kind = kind
	return f(ctx, cfg)
}

// KindFromDSN infers a backend kind from a connection string:
//
//	postgres://, postgresql://          postgres
//	sqlserver://                        mssql
//	mysql://, user:pass@tcp(host)/db    mysql
//	file:, :memory:, *.db, *.sqlite     sqlite
//
// It returns "" when nothing matches.
func KindFromDSN(dsn string) string {
	d := strings.TrimSpace(dsn)
	l := strings.ToLower(d)
	switch {
	case strings.HasPrefix(l, "postgres://"), strings.HasPrefix(l, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(l, "sqlserver://"):
		return "mssql"
	case strings.HasPrefix(l, "mysql://"), strings.Contains(l, "@tcp("), strings.Contains(l, "@unix("):
		return "mysql"
	case strings.HasPrefix(l, "file:"), l == ":memory:",
		strings.HasSuffix(l, ".db"), strings.HasSuffix(l, ".sqlite"), strings.HasSuffix(l, ".sqlite3"):
		return "sqlite"
	default:
		return ""
	}
}
