package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// ParsedTable is the structure recovered from a rendered CREATE TABLE.
type ParsedTable struct {
	Table       string
	Columns     []string
	PrimaryKeys []string
	Unique      []string
}

var (
	reCreateHead = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(\S+)\s*\(`)
	reIdent      = regexp.MustCompile("^[`\"\\[]([^`\"\\]]+)[`\"\\]]")
	reKeyList    = regexp.MustCompile(`\(([^)]*)\)`)
)

// ParseCreateTable recovers column names, primary keys and unique columns
// from a statement produced by CreateTable. It understands the output of
// every dialect in this package, not arbitrary SQL.
func ParseCreateTable(sql string) (ParsedTable, error) {
	loc := reCreateHead.FindStringSubmatchIndex(sql)
	if loc == nil {
		return ParsedTable{}, fmt.Errorf("ddl: no CREATE TABLE found")
	}
	out := ParsedTable{Table: unquote(sql[loc[2]:loc[3]])}

	open := loc[1]
	closeIdx := strings.LastIndex(sql, ")")
	if closeIdx < open {
		return ParsedTable{}, fmt.Errorf("ddl: unbalanced column list")
	}

	for _, line := range strings.Split(sql[open:closeIdx], "\n") {
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "PRIMARY KEY"):
			out.PrimaryKeys = append(out.PrimaryKeys, keyList(line)...)
		case strings.HasPrefix(upper, "UNIQUE KEY"), strings.HasPrefix(upper, "CONSTRAINT"):
			cols := keyList(line[strings.Index(line, "("):])
			out.Unique = append(out.Unique, cols...)
		default:
			m := reIdent.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			out.Columns = append(out.Columns, m[1])
			if strings.Contains(upper, " PRIMARY KEY") {
				out.PrimaryKeys = append(out.PrimaryKeys, m[1])
			}
		}
	}
	return out, nil
}

func keyList(s string) []string {
	m := reKeyList.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(m[1], ",") {
		if p := unquote(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func unquote(s string) string {
	if m := reIdent.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
