// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories and DDL bootstrappers with the storage package:
//
//   - "postgres" (internal/storage/postgres)
//   - "mssql"    (internal/storage/mssql)
//   - "sqlite"   (internal/storage/sqlite)
//   - "mysql"    (internal/storage/mysql)
//
// Typical usage in the command wiring layer:
//
//	import _ "github.com/cosmoscout/gaia-stars/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{
//	    Kind:    cfg.Storage.Kind,
//	    DSN:     cfg.Storage.DSN,
//	    Table:   def.FQN,
//	    Columns: def.Names(),
//	})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
//
// A binary that needs only a subset of backends can import those packages
// directly instead.
package all

import (
	_ "github.com/cosmoscout/gaia-stars/internal/storage/mssql"
	_ "github.com/cosmoscout/gaia-stars/internal/storage/mysql"
	_ "github.com/cosmoscout/gaia-stars/internal/storage/postgres"
	_ "github.com/cosmoscout/gaia-stars/internal/storage/sqlite"
)
