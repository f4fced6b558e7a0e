// Package transformer prepares decoded rows for loading: configured
// renames, text transforms and value mappings (Config.Apply) and per-cell
// normalization against an inferred schema (NormalizeValue, Align).
package transformer

import "sync"

// Row is a pooled positional row ready for INSERT: V is aligned with the
// schema's insert columns.
//
// Ownership contract:
//   - Exactly one goroutine owns a Row at a time.
//   - The final consumer (typically the loader's caller) calls Free once it no
//     longer reads r.V, including from error reports that captured it.
type Row struct {
	V []any
	// Line is the 0-based index of the source row.
	Line int
}

var rowPool sync.Pool

// GetRow returns a pooled Row with len(V) == colCount and every element nil.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		clear(r.V)
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool.
func (r *Row) Free() {
	rowPool.Put(r)
}
