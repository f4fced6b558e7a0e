// Package deps infers implicit foreign keys between tables from column naming
// conventions and orders tables so referenced tables load first.
package deps

import (
	"regexp"
	"strings"

	"tabload/internal/schema"
)

// Table is one named table with its inferred schema.
type Table struct {
	Name   string
	Schema schema.Schema
}

// ForeignKey is an inferred edge: Table.Column references
// ReferencesTable.ReferencesColumn.
type ForeignKey struct {
	Table            string `json:"table"`
	Column           string `json:"column"`
	ReferencesTable  string `json:"referencesTable"`
	ReferencesColumn string `json:"referencesColumn"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	// Order lists table names in load order. When Cyclic is set it is the
	// input order.
	Order       []string
	ForeignKeys []ForeignKey
	Cyclic      bool
}

var fkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.+)_id$`),
	regexp.MustCompile(`^(.+)Id$`),
	regexp.MustCompile(`^fk_(.+)$`),
	regexp.MustCompile(`^id_(.+)$`),
}

// Resolve detects foreign keys across tables and sorts them.
func Resolve(tables []Table) Resolution {
	fks := Detect(tables)
	order, cyclic := Sort(tables, fks)
	return Resolution{Order: order, ForeignKeys: fks, Cyclic: cyclic}
}

// Detect returns the implicit foreign keys in table and column order.
//
// Each column's raw name is tried first and then its sanitized name. For a
// given name only the first pattern that matches is considered. The captured
// fragment names a table when, case-insensitively, the table name equals the
// fragment, the fragment plus "s", or the fragment without a trailing "s".
// The referenced table must have a primary key column; self references are
// ignored.
func Detect(tables []Table) []ForeignKey {
	var out []ForeignKey
	for _, t := range tables {
		for _, c := range t.Schema.Columns {
			if c.AutoIncrement {
				continue
			}
			if fk, ok := detectColumn(tables, t.Name, c); ok {
				out = append(out, fk)
			}
		}
	}
	return out
}

func detectColumn(tables []Table, table string, c schema.Column) (ForeignKey, bool) {
	candidates := []string{c.RawName}
	if c.Name != c.RawName {
		candidates = append(candidates, c.Name)
	}
	for _, name := range candidates {
		frag, ok := fragment(name)
		if !ok {
			continue
		}
		ref, ok := lookupTable(tables, frag)
		if !ok || strings.EqualFold(ref.Name, table) {
			continue
		}
		pk, ok := ref.Schema.PrimaryKeyColumn()
		if !ok {
			continue
		}
		return ForeignKey{
			Table:            table,
			Column:           c.Name,
			ReferencesTable:  ref.Name,
			ReferencesColumn: pk.Name,
		}, true
	}
	return ForeignKey{}, false
}

func fragment(name string) (string, bool) {
	for _, re := range fkPatterns {
		if m := re.FindStringSubmatch(name); m != nil {
			return strings.ToLower(m[1]), true
		}
	}
	return "", false
}

func lookupTable(tables []Table, frag string) (Table, bool) {
	singular := strings.TrimSuffix(frag, "s")
	for _, t := range tables {
		n := strings.ToLower(t.Name)
		if n == frag || n == frag+"s" || n == singular {
			return t, true
		}
	}
	return Table{}, false
}

// Sort orders tables so that every referenced table precedes the tables that
// reference it (Kahn's algorithm, ties broken by input order). When the graph
// has a cycle the input order is returned with cyclic set.
func Sort(tables []Table, fks []ForeignKey) (order []string, cyclic bool) {
	idx := make(map[string]int, len(tables))
	names := make([]string, len(tables))
	for i, t := range tables {
		idx[t.Name] = i
		names[i] = t.Name
	}

	next := make([][]int, len(tables))
	indeg := make([]int, len(tables))
	for _, fk := range fks {
		from, okFrom := idx[fk.ReferencesTable]
		to, okTo := idx[fk.Table]
		if !okFrom || !okTo || from == to {
			continue
		}
		next[from] = append(next[from], to)
		indeg[to]++
	}

	queue := make([]int, 0, len(tables))
	for i := range tables {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	order = make([]string, 0, len(tables))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, names[cur])
		for _, n := range next[cur] {
			indeg[n]--
			if indeg[n] == 0 {
				queue = append(queue, n)
			}
		}
	}

	if len(order) != len(tables) {
		return names, true
	}
	return order, false
}
