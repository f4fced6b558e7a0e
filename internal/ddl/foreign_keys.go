package ddl

import (
	"fmt"
	"strings"

	"tabload/internal/deps"
)

// ForeignKeyScript renders one ALTER TABLE ... ADD CONSTRAINT per edge.
// Constraint names are fk_<table>_<column>_<index> with index the edge's
// position in fks.
func ForeignKeyScript(d Dialect, fks []deps.ForeignKey) string {
	stmts := make([]string, 0, len(fks))
	for i, fk := range fks {
		name := fmt.Sprintf("fk_%s_%s_%d", fk.Table, fk.Column, i)
		stmts = append(stmts, fmt.Sprintf(
			"ALTER TABLE %s\n  ADD CONSTRAINT %s\n  FOREIGN KEY (%s)\n  REFERENCES %s (%s)\n  ON DELETE %s\n  ON UPDATE CASCADE;",
			d.Quote(fk.Table), d.Quote(name), d.Quote(fk.Column),
			d.Quote(fk.ReferencesTable), d.Quote(fk.ReferencesColumn),
			onDelete(d),
		))
	}
	return strings.Join(stmts, "\n\n")
}

// SQL Server has no RESTRICT action.
func onDelete(d Dialect) string {
	if d.Name == MSSQL.Name {
		return "NO ACTION"
	}
	return "RESTRICT"
}
