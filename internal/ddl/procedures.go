package ddl

import (
	"fmt"
	"strings"

	"tabload/internal/schema"
)

// Procedure is one rendered MySQL stored procedure.
type Procedure struct {
	Name string
	SQL  string
}

// CRUDProcedures renders MySQL insert, select, update and delete procedures
// for table. Update is skipped when every column is part of the key.
func CRUDProcedures(table string, s schema.Schema) []Procedure {
	var pk, insertable, updatable []schema.Column
	for _, c := range s.Columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
		if !c.AutoIncrement {
			insertable = append(insertable, c)
			if !c.PrimaryKey {
				updatable = append(updatable, c)
			}
		}
	}

	procs := []Procedure{insertProcedure(table, insertable), selectProcedure(table, pk)}
	if len(pk) > 0 {
		if len(updatable) > 0 {
			procs = append(procs, updateProcedure(table, pk, updatable))
		}
		procs = append(procs, deleteProcedure(table, pk))
	}
	return procs
}

// ProcedureScript joins procedures into one script.
func ProcedureScript(procs []Procedure) string {
	parts := make([]string, len(procs))
	for i, p := range procs {
		parts[i] = p.SQL
	}
	return strings.Join(parts, "\n")
}

func q(name string) string { return MySQL.Quote(name) }

func params(cols []schema.Column) string {
	lines := make([]string, len(cols))
	for i, c := range cols {
		lines[i] = fmt.Sprintf("  IN p_%s %s", c.Name, c.SQLType)
	}
	return strings.Join(lines, ",\n")
}

func whereByKey(pk []schema.Column) string {
	conds := make([]string, len(pk))
	for i, c := range pk {
		conds[i] = fmt.Sprintf("%s = p_%s", q(c.Name), c.Name)
	}
	return strings.Join(conds, " AND ")
}

func wrapProcedure(name, params, body string) Procedure {
	sql := fmt.Sprintf(`DELIMITER $$

DROP PROCEDURE IF EXISTS %[1]s$$

CREATE PROCEDURE %[1]s(
%[2]s
)
BEGIN
%[3]s
END$$

DELIMITER ;
`, q(name), params, body)
	return Procedure{Name: name, SQL: sql}
}

func insertProcedure(table string, cols []schema.Column) Procedure {
	names := make([]string, len(cols))
	vals := make([]string, len(cols))
	for i, c := range cols {
		names[i] = q(c.Name)
		vals[i] = "p_" + c.Name
	}
	body := fmt.Sprintf("  INSERT INTO %s (%s)\n  VALUES (%s);\n  SELECT LAST_INSERT_ID() AS id;",
		q(table), strings.Join(names, ", "), strings.Join(vals, ", "))
	return wrapProcedure("sp_insert_"+table, params(cols), body)
}

func selectProcedure(table string, pk []schema.Column) Procedure {
	body := fmt.Sprintf("  SELECT * FROM %s", q(table))
	if len(pk) > 0 {
		body += "\n  WHERE " + whereByKey(pk)
	}
	return wrapProcedure("sp_select_"+table, params(pk), body+";")
}

func updateProcedure(table string, pk, cols []schema.Column) Procedure {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("    %s = p_%s", q(c.Name), c.Name)
	}
	body := fmt.Sprintf("  UPDATE %s\n  SET\n%s\n  WHERE %s;\n  SELECT ROW_COUNT() AS affected_rows;",
		q(table), strings.Join(sets, ",\n"), whereByKey(pk))
	return wrapProcedure("sp_update_"+table, params(append(append([]schema.Column{}, pk...), cols...)), body)
}

func deleteProcedure(table string, pk []schema.Column) Procedure {
	body := fmt.Sprintf("  DELETE FROM %s\n  WHERE %s;\n  SELECT ROW_COUNT() AS affected_rows;",
		q(table), whereByKey(pk))
	return wrapProcedure("sp_delete_"+table, params(pk), body)
}
