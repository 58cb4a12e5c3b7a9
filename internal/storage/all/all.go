// Package all enables every built-in storage backend. Import it for side
// effects from the binary's wiring layer:
//
//	import _ "pgarray/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.ConfigFrom(decl))
//
// Binaries that need only some backends import those packages instead.
package all

import (
	_ "pgarray/internal/storage/mssql"
	_ "pgarray/internal/storage/mysql"
	_ "pgarray/internal/storage/postgres"
	_ "pgarray/internal/storage/sqlite"
)
