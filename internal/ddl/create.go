package ddl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tabload/internal/schema"
)

// CreateTable renders an idempotent CREATE TABLE statement for s.
//
// Layout:
//   - one line per column in schema order (a synthesized identity is first);
//   - PRIMARY KEY over s.PrimaryKeys;
//   - one unique clause named uk_<table>_<column> per unique column that is not the key.
//
// The statement is guarded by an existence check so re-issuing it is safe.
// Output is deterministic for a given dialect, table and schema.
func CreateTable(d Dialect, table string, s schema.Schema) string {
	if d.guard == nil {
		d = MySQL
	}

	lines := make([]string, 0, len(s.Columns)+2)
	inlinePK := false
	for _, c := range s.Columns {
		lines = append(lines, "  "+columnDef(d, c))
		if c.AutoIncrement && d.inlineIdPK {
			inlinePK = true
		}
	}

	if len(s.PrimaryKeys) > 0 && !inlinePK {
		quoted := make([]string, len(s.PrimaryKeys))
		for i, pk := range s.PrimaryKeys {
			quoted[i] = d.Quote(pk)
		}
		lines = append(lines, "  PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	for _, c := range s.Columns {
		if c.Unique && !c.PrimaryKey {
			lines = append(lines, "  "+d.uniqueClause(d, "uk_"+table+"_"+c.Name, c.Name))
		}
	}

	return d.guard(d, table, strings.Join(lines, ",\n")) + d.tableSuffix + ";"
}

func columnDef(d Dialect, c schema.Column) string {
	var typ string
	if c.AutoIncrement {
		typ = d.identityDef(c)
	} else {
		typ = d.ColumnType(c)
	}
	def := d.Quote(c.Name) + " " + typ
	if !c.Nullable {
		def += " NOT NULL"
	}
	return def
}

// WriteFile persists rendered SQL to path, creating parent directories.
// An empty path is a no-op.
func WriteFile(path, sql string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ddl: create dir for %s: %w", path, err)
	}
	if !strings.HasSuffix(sql, "\n") {
		sql += "\n"
	}
	if err := os.WriteFile(path, []byte(sql), 0o644); err != nil {
		return fmt.Errorf("ddl: write %s: %w", path, err)
	}
	return nil
}
