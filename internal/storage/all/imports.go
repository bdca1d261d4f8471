// Package all wires all built-in storage backends into the storage factory.
//
// Importing it for side effects registers the factory and dialect of each
// backend:
//
//   - "postgres" (breachetl/internal/storage/postgres)
//   - "mssql"    (breachetl/internal/storage/mssql)
//   - "mysql"    (breachetl/internal/storage/mysql)
//   - "sqlite"   (breachetl/internal/storage/sqlite)
//
// Typical usage, in cmd/etl/main.go:
//
//	import _ "breachetl/internal/storage/all"
//
//	n, err := storage.Write(ctx, storage.Config{
//	    Kind:  spec.Storage.Kind,
//	    DSN:   spec.Storage.DB.DSN,
//	    Table: spec.Storage.DB.Table,
//	    Mode:  storage.Mode(spec.Storage.DB.WriteMode()),
//	}, tbl)
//
// A binary that needs only a subset of backends can blank-import those
// packages directly instead.
package all

import (
	_ "breachetl/internal/storage/mssql"
	_ "breachetl/internal/storage/mysql"
	_ "breachetl/internal/storage/postgres"
	_ "breachetl/internal/storage/sqlite"
)
