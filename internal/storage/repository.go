// Package storage loads normalized rows into a destination database.
//
// Backends live in sub-packages and register a Factory from init() under
// their kind ("mysql", "sqlite", "postgres", "mssql"). Import
// tabload/internal/storage/all to link every backend.
package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tabload/internal/ddl"
)

// Config describes the destination. When DSN is empty the backend builds one
// from the remaining fields.
type Config struct {
	Kind     string `json:"kind"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	Database string `json:"database"`
	DSN      string `json:"-"`
}

// Repository is a destination connection.
//
// Implementations translate nothing: statements arrive already rendered for
// the repository's Dialect.
type Repository interface {
	// Dialect is the SQL flavor statements must be rendered in.
	Dialect() ddl.Dialect

	// Begin opens the transaction a table is loaded in.
	Begin(ctx context.Context) (Tx, error)

	// Exec runs one statement outside any transaction.
	Exec(ctx context.Context, query string) error

	// ColumnValues returns the values stored in table.column. It is used by
	// referential checks against tables that are not part of the batch.
	ColumnValues(ctx context.Context, table, column string) ([]any, error)

	// Close releases the connection pool. Call once.
	Close()
}

// Tx is one open transaction.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available to New under kind. It is meant to be
// called from a backend package's init().
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a Repository using the backend registered for cfg.Kind. Kind
// aliases accepted by ddl.ForKind resolve to their canonical backend, and an
// empty Kind means MySQL.
func New(ctx context.Context, cfg Config) (Repository, error) {
	d, err := ddl.ForKind(cfg.Kind)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	mu.RLock()
	f := factories[d.Name]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: backend %q not linked (import tabload/internal/storage/all)", d.Name)
	}
	cfg.Kind = d.Name
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
