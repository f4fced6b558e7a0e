package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tabload/internal/ddl"
)

// SQLRepository implements Repository on database/sql. The MySQL, SQLite and
// SQL Server backends share it and differ only in driver, DSN and dialect.
type SQLRepository struct {
	DB      *sql.DB
	dialect ddl.Dialect
}

// OpenSQL opens driverName with dsn and verifies connectivity.
func OpenSQL(ctx context.Context, driverName, dsn string, d ddl.Dialect) (*SQLRepository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return &SQLRepository{DB: db, dialect: d}, nil
}

func (r *SQLRepository) Dialect() ddl.Dialect { return r.dialect }

func (r *SQLRepository) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sqlTx{tx: tx}, nil
}

func (r *SQLRepository) Exec(ctx context.Context, query string) error {
	_, err := r.DB.ExecContext(ctx, query)
	return err
}

// ColumnValues selects the distinct non-null values of table.column.
func (r *SQLRepository) ColumnValues(ctx context.Context, table, column string) ([]any, error) {
	d := r.dialect
	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL",
		d.Quote(column), d.Quote(table), d.Quote(column))

	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, ScannedValue(v))
	}
	return out, rows.Err()
}

func (r *SQLRepository) Close() {
	if r == nil || r.DB == nil {
		return
	}
	_ = r.DB.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

// ScannedValue converts a driver value read into an any destination to a
// comparable scalar. Drivers return text columns as []byte.
func ScannedValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return strings.TrimSpace(string(t))
	case string:
		return strings.TrimSpace(t)
	}
	return v
}
