// Package all wires every built-in storage backend into the storage
// factory. Importing it (usually blank, from a main package) runs each
// backend's init registration, making the kinds "postgres", "mssql",
// "sqlite", and "mysql" available to storage.New. Binaries that only
// need a subset can import the individual backend packages instead.
package all

import (
	_ "tennisetl/internal/storage/mssql"
	_ "tennisetl/internal/storage/mysql"
	_ "tennisetl/internal/storage/postgres"
	_ "tennisetl/internal/storage/sqlite"
)
