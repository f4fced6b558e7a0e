// Package records holds the decoded form shared by every input parser: an
// ordered Object per source record, one-level flattening, and the Table the
// pipeline consumes (rows plus header in first-seen order).
package records

import (
	"fmt"
	"strings"

	"tabload/internal/schema"
)

// ArraySeparator joins scalar array elements into one cell.
const ArraySeparator = ","

// Object is a decoded record that remembers key order.
type Object struct {
	Keys   []string
	Values map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{Values: map[string]any{}}
}

// Set stores v under k. A repeated key keeps its first position.
func (o *Object) Set(k string, v any) {
	if _, ok := o.Values[k]; !ok {
		o.Keys = append(o.Keys, k)
	}
	o.Values[k] = v
}

// Table is the parser output.
type Table struct {
	Header []string
	Rows   []schema.Row

	seen map[string]bool
}

// AddHeader registers keys not seen before, preserving order.
func (t *Table) AddHeader(keys ...string) {
	if t.seen == nil {
		t.seen = map[string]bool{}
	}
	for _, k := range keys {
		if !t.seen[k] {
			t.seen[k] = true
			t.Header = append(t.Header, k)
		}
	}
}

// Add flattens o and appends it as a row.
func (t *Table) Add(o *Object) {
	keys, row := Flatten(o)
	t.AddHeader(keys...)
	t.Rows = append(t.Rows, row)
}

// Flatten lifts the fields of directly nested objects into the parent as
// parent_child. Deeper objects and arrays of objects collapse to their text
// form; arrays of scalars are joined with ArraySeparator.
func Flatten(o *Object) ([]string, schema.Row) {
	keys := make([]string, 0, len(o.Keys))
	row := make(schema.Row, len(o.Keys))
	put := func(k string, v any) {
		if _, ok := row[k]; !ok {
			keys = append(keys, k)
		}
		row[k] = v
	}

	for _, k := range o.Keys {
		v := o.Values[k]
		child, ok := v.(*Object)
		if !ok {
			put(k, scalar(v))
			continue
		}
		for _, ck := range child.Keys {
			put(k+"_"+ck, scalar(child.Values[ck]))
		}
	}
	return keys, row
}

func scalar(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if e == nil {
				continue
			}
			parts = append(parts, fmt.Sprint(scalar(e)))
		}
		return strings.Join(parts, ArraySeparator)
	}
	return v
}

// String renders o as a compact key=value list in key order.
func (o *Object) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, scalar(o.Values[k]))
	}
	b.WriteByte('}')
	return b.String()
}
