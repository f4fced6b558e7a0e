// Package sqlite registers the embedded SQLite backend (modernc.org/sqlite,
// no cgo) under kind "sqlite".
package sqlite

import (
	"context"

	_ "modernc.org/sqlite"

	"tabload/internal/ddl"
	"tabload/internal/storage"
)

func init() {
	storage.Register("sqlite", New)
}

// New opens a SQLite repository. The database file is cfg.DSN, else
// cfg.Database, else a private in-memory database.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	repo, err := storage.OpenSQL(ctx, "sqlite", DSN(cfg), ddl.SQLite)
	if err != nil {
		return nil, err
	}
	// One writer; an in-memory database also lives on a single connection.
	repo.DB.SetMaxOpenConns(1)
	return repo, nil
}

// DSN resolves the database file for cfg.
func DSN(cfg storage.Config) string {
	switch {
	case cfg.DSN != "":
		return cfg.DSN
	case cfg.Database != "":
		return cfg.Database
	default:
		return ":memory:"
	}
}
