// Package all links every storage backend into the binary.
package all

import (
	_ "tabload/internal/storage/mssql"
	_ "tabload/internal/storage/mysql"
	_ "tabload/internal/storage/postgres"
	_ "tabload/internal/storage/sqlite"
)
