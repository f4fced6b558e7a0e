// Package probe previews what tabload would infer from an input file without
// loading it: format and encoding, column types, key candidates, per-column
// uniqueness and the CREATE TABLE statement.
//
// CSV input is sampled: only the first Options.Bytes bytes are read, cut back
// to the last complete line. JSON, XML and HTML do not decode from a cut
// document, so they are read whole.
package probe

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"tabload/internal/ddl"
	"tabload/internal/parser"
	"tabload/internal/schema"
)

// DefaultBytes is the CSV sample size when Options.Bytes is not positive.
const DefaultBytes = 20000

// Options control sampling and rendering.
type Options struct {
	Path  string
	Bytes int
	Parse parser.Options
	// Table overrides the name derived from Path.
	Table string
	// Kind picks the DDL dialect; empty means MySQL.
	Kind string
}

// Column is one inferred column with its sample uniqueness.
type Column struct {
	Name       string `json:"name"`
	RawName    string `json:"rawName"`
	Kind       string `json:"kind"`
	SQLType    string `json:"sqlType"`
	Nullable   bool   `json:"nullable"`
	Unique     bool   `json:"unique"`
	PrimaryKey bool   `json:"primaryKey"`
	Identity   bool   `json:"identity,omitempty"`
	// Values counts non-null cells; Distinct is -1 once counting was capped.
	Values   int `json:"values"`
	Distinct int `json:"distinct"`
}

// Result is what a probe found.
type Result struct {
	Table       string      `json:"table"`
	Meta        parser.Meta `json:"meta"`
	SampleBytes int         `json:"sampleBytes"`
	Truncated   bool        `json:"truncated"`
	Columns     []Column    `json:"columns"`
	PrimaryKeys []string    `json:"primaryKeys"`
	DDL         string      `json:"ddl"`
}

// Probe samples opts.Path and infers its schema.
func Probe(opts Options) (Result, error) {
	d, err := ddl.ForKind(opts.Kind)
	if err != nil {
		return Result{}, err
	}

	sample, truncated, err := readSample(opts)
	if err != nil {
		return Result{}, err
	}
	res, err := parser.Parse(sample, opts.Parse, opts.Path)
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", opts.Path, err)
	}

	s := schema.Infer(res.Rows, res.Header)
	table := schema.DeriveTableName(opts.Path, opts.Table)

	stats := map[string]*schema.Stats{}
	for _, st := range schema.Analyze(res.Rows, schema.DiscoverKeys(res.Rows, res.Header)) {
		stats[st.RawName] = st
	}

	out := Result{
		Table:       table,
		Meta:        res.Meta,
		SampleBytes: len(sample),
		Truncated:   truncated,
		PrimaryKeys: s.PrimaryKeys,
		DDL:         ddl.CreateTable(d, table, s),
	}
	for _, c := range s.Columns {
		col := Column{
			Name:       c.Name,
			RawName:    c.RawName,
			Kind:       c.Kind.String(),
			SQLType:    d.ColumnType(c),
			Nullable:   c.Nullable,
			Unique:     c.Unique,
			PrimaryKey: c.PrimaryKey,
			Identity:   c.AutoIncrement,
		}
		if st, ok := stats[c.RawName]; ok && !c.AutoIncrement {
			col.Values = st.NonNull()
			col.Distinct = st.Distinct()
		}
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

// readSample returns the bytes to decode. Only CSV input is cut.
func readSample(opts Options) ([]byte, bool, error) {
	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, false, fmt.Errorf("probe: %w", err)
	}
	defer f.Close()

	format := strings.ToLower(opts.Parse.Format)
	if format == "" {
		format, _ = parser.InferFormat(opts.Path)
	}

	n := opts.Bytes
	if n <= 0 {
		n = DefaultBytes
	}
	if format != "" && format != parser.FormatCSV {
		b, err := io.ReadAll(f)
		if err != nil {
			return nil, false, fmt.Errorf("probe: read %s: %w", opts.Path, err)
		}
		return b, false, nil
	}

	b, err := io.ReadAll(io.LimitReader(f, int64(n)+1))
	if err != nil {
		return nil, false, fmt.Errorf("probe: read %s: %w", opts.Path, err)
	}
	if len(b) <= n {
		return b, false, nil
	}
	// An unknown extension may still sniff as structured data; keep it whole.
	if format == "" {
		if sniffed, ok := parser.Sniff(b); ok && sniffed != parser.FormatCSV {
			rest, err := io.ReadAll(f)
			if err != nil {
				return nil, false, fmt.Errorf("probe: read %s: %w", opts.Path, err)
			}
			return append(b, rest...), false, nil
		}
	}
	return cutToLine(b[:n]), true, nil
}

// cutToLine drops the trailing partial line. A sample with no newline is
// returned as is.
func cutToLine(b []byte) []byte {
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return b[:i+1]
	}
	return b
}

// Report renders the uniqueness table, least distinct columns first, so
// likely keys sit at the bottom.
func Report(r Result) string {
	cols := slices.Clone(r.Columns)
	cols = slices.DeleteFunc(cols, func(c Column) bool { return c.Identity })
	slices.SortStableFunc(cols, func(a, b Column) int {
		ra, rb := ratio(a), ratio(b)
		switch {
		case ra < rb:
			return -1
		case ra > rb:
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "table %s: format=%s encoding=%s rows=%d truncated=%t\n",
		r.Table, r.Meta.Format, r.Meta.Encoding, r.Meta.RowCount, r.Truncated)
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "column\ttype\tunique\tvalues\tratio\tkey")
	for _, c := range cols {
		distinct := fmt.Sprint(c.Distinct)
		if c.Distinct < 0 {
			distinct = "capped"
		}
		key := ""
		if c.PrimaryKey {
			key = "pk"
		} else if c.Unique {
			key = "unique"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f%%\t%s\n", c.Name, c.SQLType, distinct, c.Values, ratio(c)*100, key)
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func ratio(c Column) float64 {
	if c.Values == 0 {
		return 0
	}
	if c.Distinct < 0 {
		return 1
	}
	return float64(c.Distinct) / float64(c.Values)
}
