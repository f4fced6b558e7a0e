package ddl

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultChunkSize is the number of rows per multi-row INSERT.
const DefaultChunkSize = 250

// InsertStatement renders a parameterized INSERT of nrows rows over columns.
// Placeholders are numbered row-major starting at 1.
func InsertStatement(d Dialect, table string, columns []string, nrows int) string {
	var b strings.Builder
	writeInsertHead(&b, d, table, columns)
	p := 1
	for i := 0; i < nrows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			p++
		}
		b.WriteByte(')')
	}
	return b.String()
}

func writeInsertHead(b *strings.Builder, d Dialect, table string, columns []string) {
	b.WriteString("INSERT INTO ")
	b.WriteString(d.Quote(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Quote(c))
	}
	b.WriteString(") VALUES ")
}

// InsertScript renders rows as literal INSERT statements, chunkSize rows per
// statement when bulk is set and one statement per row otherwise. Rows must
// already be normalized and aligned with columns.
func InsertScript(d Dialect, table string, columns []string, rows [][]any, bulk bool, chunkSize int) string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if !bulk {
		chunkSize = 1
	}

	stmts := make([]string, 0, len(rows)/chunkSize+1)
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))

		var b strings.Builder
		writeInsertHead(&b, d, table, columns)
		for i, row := range rows[start:end] {
			if i > 0 {
				b.WriteString(",\n")
			} else if bulk {
				b.WriteString("\n")
			}
			b.WriteByte('(')
			for j, v := range row {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteString(Literal(d, v))
			}
			b.WriteByte(')')
		}
		b.WriteByte(';')
		stmts = append(stmts, b.String())
	}
	return strings.Join(stmts, "\n\n")
}

// Literal renders a normalized value as a SQL literal.
// MySQL additionally escapes backslashes.
func Literal(d Dialect, v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "NULL"
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return "'" + x.UTC().Format("2006-01-02 15:04:05") + "'"
	case []byte:
		return quoteString(d, string(x))
	case string:
		return quoteString(d, x)
	}
	return "NULL"
}

func quoteString(d Dialect, s string) string {
	if d.Name == "" || d.Name == MySQL.Name {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	s = strings.ReplaceAll(s, "'", "''")
	if d.Name == MSSQL.Name {
		return "N'" + s + "'"
	}
	return "'" + s + "'"
}
