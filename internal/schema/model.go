// Package schema infers a relational table schema from decoded rows.
//
// The package owns two pipeline stages:
//   - analysis: every column is scanned once and classified value by value
//     (see Analyze and Classify);
//   - building: analyzed columns are named, typed and given a primary key
//     (see Infer).
//
// Everything here is pure and deterministic: the same rows always produce
// the same Schema, including column order and primary key choice.
package schema

import "strings"

// Kind is the semantic classification of a single value or a whole column.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindDecimal
	KindDate
	KindDateTime
	KindText
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBoolean:  "boolean",
	KindInteger:  "integer",
	KindDecimal:  "decimal",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindText:     "text",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText renders the kind by name so reports stay readable.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Row is one decoded input record: raw column name -> scalar value.
// Values are string, bool, integer/float numbers, json.Number, time.Time or nil.
type Row map[string]any

// Column is one analyzed, named and typed column.
type Column struct {
	RawName       string `json:"rawName"`
	Name          string `json:"name"`
	Kind          Kind   `json:"inferredKind"`
	SQLType       string `json:"sqlType"`
	Nullable      bool   `json:"nullable"`
	Unique        bool   `json:"unique"`
	PrimaryKey    bool   `json:"isPrimaryKey,omitempty"`
	AutoIncrement bool   `json:"autoIncrement,omitempty"`
	MaxLength     int    `json:"maxLength"`
	Precision     int    `json:"precision,omitempty"`
	Scale         int    `json:"scale,omitempty"`
}

// IsNumeric reports whether the column's SQL type is an integer or decimal type.
func (c Column) IsNumeric() bool {
	t := strings.ToUpper(c.SQLType)
	return strings.Contains(t, "INT") || strings.HasPrefix(t, "DECIMAL")
}

// IsBoolean reports whether the column stores boolean 1/0 values.
func (c Column) IsBoolean() bool {
	t := strings.ToUpper(c.SQLType)
	return t == SQLBoolean || strings.Contains(t, "BOOL") || c.Kind == KindBoolean
}

// IsTemporal reports whether the column is DATE or DATETIME typed.
func (c Column) IsTemporal() bool {
	return strings.Contains(strings.ToUpper(c.SQLType), "DATE")
}

// Schema is the inferred layout of one table.
//
// Invariants established by Infer:
//   - PrimaryKeys is non-empty;
//   - at most one column has AutoIncrement set and, if present, it is first;
//   - Column.Name values are unique.
type Schema struct {
	Columns     []Column `json:"columns"`
	PrimaryKeys []string `json:"primaryKeys"`
}

// Column returns the column with the given sanitized name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByRaw returns the column derived from the given raw input key.
func (s Schema) ColumnByRaw(raw string) (Column, bool) {
	for _, c := range s.Columns {
		if c.RawName == raw && !c.AutoIncrement {
			return c, true
		}
	}
	return Column{}, false
}

// InsertColumns returns the columns that receive values on insert, i.e.
// every column except a synthesized identity.
func (s Schema) InsertColumns() []Column {
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.AutoIncrement {
			continue
		}
		out = append(out, c)
	}
	return out
}

// PrimaryKeyColumn returns the first primary key column.
func (s Schema) PrimaryKeyColumn() (Column, bool) {
	for _, c := range s.Columns {
		if c.PrimaryKey {
			return c, true
		}
	}
	return Column{}, false
}
