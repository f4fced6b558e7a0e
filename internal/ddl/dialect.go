// Package ddl renders inferred schemas into SQL text: CREATE TABLE statements,
// parameterized multi-row INSERTs, literal insert scripts, foreign key
// constraints and CRUD stored procedures.
//
// Every function in this package is pure. The canonical type vocabulary is
// MySQL's; other dialects only translate it at render time.
package ddl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tabload/internal/schema"
)

// Dialect captures the syntax differences between destination stores.
//
// Edge cases:
//   - Identifiers are quoted verbatim; sanitized names never contain quote runes.
//   - MaxParams bounds placeholders per statement; the loader shrinks chunks to fit.
type Dialect struct {
	Name string

	openQuote, closeQuote string
	placeholder           func(n int) string

	// MaxParams is the largest number of bind parameters one statement may carry.
	MaxParams int

	// SavepointSQL, RollbackToSQL and ReleaseSQL are format strings taking the
	// savepoint name. An empty ReleaseSQL means the dialect has no release step.
	SavepointSQL, RollbackToSQL, ReleaseSQL string

	// TransactionalDDL reports whether CREATE TABLE rolls back with the
	// surrounding transaction. MySQL commits implicitly on DDL.
	TransactionalDDL bool

	typeOf       func(c schema.Column) string
	identityDef  func(c schema.Column) string
	inlineIdPK   bool
	uniqueClause func(d Dialect, name, col string) string
	guard        func(d Dialect, table, body string) string
	tableSuffix  string
}

var reVarcharType = regexp.MustCompile(`^VARCHAR\((\d+)\)$`)

// VarcharLimit returns n for a VARCHAR(n) type.
func VarcharLimit(sqlType string) (int, bool) {
	m := reVarcharType.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(sqlType)))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// MySQL is the default dialect and the one whose type names schemas carry.
var MySQL = Dialect{
	Name:          "mysql",
	openQuote:     "`",
	closeQuote:    "`",
	placeholder:   func(int) string { return "?" },
	MaxParams:     65535,
	SavepointSQL:  "SAVEPOINT %s",
	RollbackToSQL: "ROLLBACK TO SAVEPOINT %s",
	ReleaseSQL:    "RELEASE SAVEPOINT %s",
	typeOf:        func(c schema.Column) string { return c.SQLType },
	identityDef: func(c schema.Column) string {
		return c.SQLType + " AUTO_INCREMENT"
	},
	uniqueClause: func(d Dialect, name, col string) string {
		return fmt.Sprintf("UNIQUE KEY %s (%s)", d.Quote(name), d.Quote(col))
	},
	guard: func(d Dialect, table, body string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", d.Quote(table), body)
	},
	tableSuffix: " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
}

// SQLite stores the canonical names as declared types; INTEGER PRIMARY KEY
// is the only identity form it supports.
var SQLite = Dialect{
	Name:          "sqlite",
	openQuote:     `"`,
	closeQuote:    `"`,
	placeholder:   func(int) string { return "?" },
	MaxParams:     32766,
	SavepointSQL:  "SAVEPOINT %s",
	RollbackToSQL: "ROLLBACK TO SAVEPOINT %s",
	ReleaseSQL:    "RELEASE SAVEPOINT %s",
	typeOf: func(c schema.Column) string {
		switch c.SQLType {
		case schema.SQLInt, schema.SQLBigInt, schema.SQLBoolean:
			return "INTEGER"
		}
		return c.SQLType
	},
	identityDef: func(schema.Column) string {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	},
	inlineIdPK:   true,
	uniqueClause: constraintUnique,
	guard: func(d Dialect, table, body string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", d.Quote(table), body)
	},

	TransactionalDDL: true,
}

// Postgres translates to native numeric and timestamp types.
var Postgres = Dialect{
	Name:          "postgres",
	openQuote:     `"`,
	closeQuote:    `"`,
	placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
	MaxParams:     65535,
	SavepointSQL:  "SAVEPOINT %s",
	RollbackToSQL: "ROLLBACK TO SAVEPOINT %s",
	ReleaseSQL:    "RELEASE SAVEPOINT %s",
	typeOf: func(c schema.Column) string {
		switch t := c.SQLType; {
		case t == schema.SQLBoolean:
			return "SMALLINT"
		case t == schema.SQLInt:
			return "INTEGER"
		case t == schema.SQLDateTime:
			return "TIMESTAMP"
		case strings.HasPrefix(t, "DECIMAL"):
			return "NUMERIC" + strings.TrimPrefix(t, "DECIMAL")
		default:
			return t
		}
	},
	identityDef: func(schema.Column) string {
		return "INTEGER GENERATED BY DEFAULT AS IDENTITY"
	},
	uniqueClause: constraintUnique,
	guard: func(d Dialect, table, body string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", d.Quote(table), body)
	},

	TransactionalDDL: true,
}

// MSSQL targets SQL Server. Unicode text uses NVARCHAR.
var MSSQL = Dialect{
	Name:          "mssql",
	openQuote:     "[",
	closeQuote:    "]",
	placeholder:   func(n int) string { return "@p" + strconv.Itoa(n) },
	MaxParams:     2100,
	SavepointSQL:  "SAVE TRANSACTION %s",
	RollbackToSQL: "ROLLBACK TRANSACTION %s",
	typeOf: func(c schema.Column) string {
		switch t := c.SQLType; {
		case t == schema.SQLBoolean:
			return "BIT"
		case t == schema.SQLDateTime:
			return "DATETIME2"
		case t == schema.SQLText:
			return "NVARCHAR(MAX)"
		case strings.HasPrefix(t, "VARCHAR"):
			return "N" + t
		default:
			return t
		}
	},
	identityDef: func(schema.Column) string {
		return "INT IDENTITY(1,1)"
	},
	uniqueClause: constraintUnique,
	guard: func(d Dialect, table, body string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n%s\n)",
			strings.ReplaceAll(table, "'", "''"), d.Quote(table), body)
	},

	TransactionalDDL: true,
}

func constraintUnique(d Dialect, name, col string) string {
	return fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", d.Quote(name), d.Quote(col))
}

// ForKind returns the dialect registered for a storage kind.
func ForKind(kind string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mssql", "sqlserver":
		return MSSQL, nil
	}
	return Dialect{}, fmt.Errorf("ddl: unsupported dialect %q", kind)
}

// Quote wraps an identifier in the dialect's quote runes.
func (d Dialect) Quote(ident string) string {
	if d.openQuote == "" {
		d.openQuote, d.closeQuote = "`", "`"
	}
	closeEsc := d.closeQuote + d.closeQuote
	return d.openQuote + strings.ReplaceAll(ident, d.closeQuote, closeEsc) + d.closeQuote
}

// Placeholder returns the n-th (1-based) bind parameter marker.
func (d Dialect) Placeholder(n int) string {
	if d.placeholder == nil {
		return "?"
	}
	return d.placeholder(n)
}

// ColumnType translates a column's canonical SQL type.
func (d Dialect) ColumnType(c schema.Column) string {
	if d.typeOf == nil {
		return c.SQLType
	}
	return d.typeOf(c)
}

// Savepoint renders the savepoint statements for name. release is empty
// when the dialect has no release step.
func (d Dialect) Savepoint(name string) (begin, rollback, release string) {
	begin = fmt.Sprintf(d.SavepointSQL, name)
	rollback = fmt.Sprintf(d.RollbackToSQL, name)
	if d.ReleaseSQL != "" {
		release = fmt.Sprintf(d.ReleaseSQL, name)
	}
	return begin, rollback, release
}
