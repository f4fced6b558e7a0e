// Package csv decodes delimited text into records. The first record is the
// header; short rows keep only the fields they have.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"tabload/internal/parser/records"
)

// Delimiters are the candidates DetectDelimiter chooses from, in tie order.
var Delimiters = []rune{',', ';', '\t'}

// DetectDelimiter counts each candidate over the first five non-empty lines
// and returns the most frequent one. Ties go to the earlier candidate.
func DetectDelimiter(text string) rune {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == 5 {
			break
		}
	}

	best, bestScore := Delimiters[0], -1
	for _, d := range Delimiters {
		score := 0
		for _, l := range lines {
			score += strings.Count(l, string(d))
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

// Parse reads delimited text. A zero delim is detected from the content.
// It returns the delimiter used.
func Parse(text string, delim rune) (*records.Table, rune, error) {
	if delim == 0 {
		delim = DetectDelimiter(text)
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	t := &records.Table{}
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return t, delim, nil
	}
	if err != nil {
		return nil, delim, fmt.Errorf("csv: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	t.AddHeader(header...)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return t, delim, nil
		}
		if err != nil {
			return nil, delim, fmt.Errorf("csv: %w", err)
		}
		if blank(rec) {
			continue
		}

		o := records.NewObject()
		for i, v := range rec {
			if i >= len(header) {
				break
			}
			o.Set(header[i], strings.TrimSpace(v))
		}
		t.Add(o)
	}
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
