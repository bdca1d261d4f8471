package storage

import (
	"fmt"
	"sync"

	"breachetl/internal/ddl"
	"breachetl/internal/etlerr"
)

// Dialect is the per-backend rendering of a table definition: how column
// kinds map to SQL types and how identifiers are quoted.
type Dialect struct {
	MapType ddl.TypeMapper
	Quote   ddl.Quote
}

var (
	dialectMu sync.RWMutex
	dialects  = map[string]Dialect{}
)

// RegisterDialect registers (or replaces) the dialect for kind. Backends call
// it from init next to Register.
func RegisterDialect(kind string, d Dialect) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialects[kind] = d
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (Dialect, error) {
	dialectMu.RLock()
	d, ok := dialects[kind]
	dialectMu.RUnlock()
	if !ok {
		return Dialect{}, etlerr.New(etlerr.ErrConfig, "storage", fmt.Errorf("no dialect registered for storage.kind=%s", kind))
	}
	return d, nil
}
