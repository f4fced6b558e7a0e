// Package parser turns input files into rows for the pipeline. It picks a
// decoder by extension (or content), decodes the text encoding, and returns
// the rows with their header in source order.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"tabload/internal/parser/csv"
	"tabload/internal/parser/html"
	"tabload/internal/parser/json"
	"tabload/internal/parser/records"
	"tabload/internal/parser/xml"
	"tabload/internal/schema"
)

// Formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatHTML = "html"
)

// ErrUnknownFormat means no decoder could be chosen for a file.
var ErrUnknownFormat = errors.New("unknown input format")

// Options tune decoding. Zero values mean detect.
type Options struct {
	Format    string `json:"format,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
	Delimiter rune   `json:"delimiter,omitempty"`
	// Selector picks the table in HTML input.
	Selector string `json:"selector,omitempty"`
}

// Meta describes how a file was decoded.
type Meta struct {
	Format    string `json:"format"`
	Encoding  string `json:"encoding"`
	Delimiter string `json:"delimiter,omitempty"`
	RowCount  int    `json:"rowCount"`
}

// Result is one decoded file.
type Result struct {
	Path   string
	Header []string
	Rows   []schema.Row
	Meta   Meta
}

// InferFormat maps a file extension to a format. ".txt" is read as CSV.
func InferFormat(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, true
	case ".json", ".ndjson", ".jsonl":
		return FormatJSON, true
	case ".xml":
		return FormatXML, true
	case ".html", ".htm":
		return FormatHTML, true
	}
	return "", false
}

// Sniff guesses the format from the first bytes of content. Markup is
// reported as XML unless it carries an html or table tag.
func Sniff(sample []byte) (string, bool) {
	trim := bytes.TrimSpace(bytes.TrimPrefix(sample, []byte("\xEF\xBB\xBF")))
	if len(trim) == 0 {
		return "", false
	}
	switch trim[0] {
	case '<':
		head := bytes.ToLower(trim[:min(len(trim), 512)])
		if bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("<table")) || bytes.Contains(head, []byte("<!doctype html")) {
			return FormatHTML, true
		}
		return FormatXML, true
	case '{', '[':
		return FormatJSON, true
	}
	return FormatCSV, true
}

// ParseFile reads and decodes path.
func ParseFile(path string, opts Options) (Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	res, err := Parse(b, opts, path)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Parse decodes b. name is used for format inference only.
func Parse(b []byte, opts Options, name string) (Result, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		var ok bool
		if format, ok = InferFormat(name); !ok {
			if format, ok = Sniff(b); !ok {
				return Result{}, ErrUnknownFormat
			}
		}
	}

	text, enc, err := records.Decode(b, opts.Encoding)
	if err != nil {
		return Result{}, err
	}

	var (
		tbl   *records.Table
		delim rune
	)
	switch format {
	case FormatCSV:
		tbl, delim, err = csv.Parse(text, opts.Delimiter)
	case FormatJSON:
		tbl, err = json.Parse(text)
	case FormatXML:
		tbl, err = xml.Parse(text)
	case FormatHTML:
		tbl, err = html.Parse(text, opts.Selector)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return Result{}, err
	}

	meta := Meta{Format: format, Encoding: enc, RowCount: len(tbl.Rows)}
	if delim != 0 {
		meta.Delimiter = string(delim)
	}
	return Result{Path: name, Header: tbl.Header, Rows: tbl.Rows, Meta: meta}, nil
}

// DefaultConcurrency bounds ReadDir's parallel decoders.
const DefaultConcurrency = 4

// ReadDir decodes every file in dir with a recognized extension, in file name
// order. Files are decoded concurrently, at most limit at a time (<=0 means
// DefaultConcurrency); the first failure cancels the rest.
func ReadDir(ctx context.Context, dir string, opts Options, limit int) ([]Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := InferFormat(e.Name()); ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return ReadFiles(ctx, paths, opts, limit)
}

// ReadFiles decodes paths concurrently and returns results in input order.
func ReadFiles(ctx context.Context, paths []string, opts Options, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	out := make([]Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := ParseFile(p, opts)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
