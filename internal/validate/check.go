package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"tabload/internal/ddl"
	"tabload/internal/schema"
)

const (
	minYear = 1900
	maxYear = 2100
)

// nonNegativeHints are substrings of column names whose values are expected
// to be zero or positive.
var nonNegativeHints = []string{"id", "age", "count", "quantity", "amount", "price", "total"}

// Options selects which row-level checks Check runs.
type Options struct {
	Duplicates bool
	Values     bool
	// Table is stamped on every issue.
	Table string
}

// Check runs the selected row-level checks, duplicates first.
func Check(rows []schema.Row, s schema.Schema, opts Options) []Issue {
	var issues []Issue
	if opts.Duplicates {
		issues = append(issues, Duplicates(rows, s)...)
	}
	if opts.Values {
		issues = append(issues, Values(rows, s)...)
	}
	if opts.Table != "" {
		for i := range issues {
			issues[i].Table = opts.Table
		}
	}
	return issues
}

// Duplicates reports repeated values in unique or primary key columns.
// Each later occurrence is an error pointing back at the first. Blank values
// are exempt.
func Duplicates(rows []schema.Row, s schema.Schema) []Issue {
	var issues []Issue
	for _, c := range s.Columns {
		if c.AutoIncrement || !(c.Unique || c.PrimaryKey) {
			continue
		}
		seen := make(map[string]int)
		for i, r := range rows {
			v := r[c.RawName]
			if schema.IsNullish(v) {
				continue
			}
			key := fmt.Sprint(v)
			first, dup := seen[key]
			if !dup {
				seen[key] = i
				continue
			}
			issues = append(issues, Issue{
				Type:            TypeDuplicate,
				Severity:        SeverityError,
				Column:          c.Name,
				Index:           ptr(i),
				Value:           v,
				Message:         fmt.Sprintf("duplicate value in unique column %q: %v", c.Name, v),
				FirstOccurrence: ptr(first),
			})
		}
	}
	return issues
}

// Values checks every non-blank cell against its column's SQL type.
func Values(rows []schema.Row, s schema.Schema) []Issue {
	var issues []Issue
	for i, r := range rows {
		for _, c := range s.Columns {
			if c.AutoIncrement {
				continue
			}
			v := r[c.RawName]
			if schema.IsNullish(v) {
				continue
			}
			issues = append(issues, checkValue(i, c, v)...)
		}
	}
	return issues
}

func checkValue(i int, c schema.Column, v any) []Issue {
	issue := func(typ string, sev Severity, value any, format string, args ...any) Issue {
		return Issue{
			Type:     typ,
			Severity: sev,
			Column:   c.Name,
			Index:    ptr(i),
			Value:    value,
			Message:  fmt.Sprintf(format, args...),
		}
	}

	switch {
	case c.IsBoolean():
		if _, ok := v.(bool); ok {
			return nil
		}
		if _, ok := schema.BoolToken(fmt.Sprint(v)); ok {
			return nil
		}
		return []Issue{issue(TypeInvalidBoolean, SeverityError, v, "value in boolean column %q is not a boolean literal: %v", c.Name, v)}

	case c.IsTemporal():
		return checkDate(c, v, issue)

	case c.IsNumeric():
		return checkNumber(c, v, issue)
	}

	if n, ok := ddl.VarcharLimit(c.SQLType); ok {
		str := fmt.Sprint(v)
		if l := utf8.RuneCountInString(str); l > n {
			return []Issue{issue(TypeStringTooLong, SeverityError, truncate(str, 50), "text exceeds maximum length in %q: %d > %d", c.Name, l, n)}
		}
	}
	return nil
}

type issueFn func(typ string, sev Severity, value any, format string, args ...any) Issue

func checkDate(c schema.Column, v any, issue issueFn) []Issue {
	if _, ok := v.(time.Time); ok {
		return nil
	}
	p, ok := schema.ParseDate(fmt.Sprint(v))
	if !ok {
		return []Issue{issue(TypeUnparseableDate, SeverityError, v, "unrecognized date format in %q: %v", c.Name, v)}
	}
	var out []Issue
	if !p.Valid() {
		out = append(out, issue(TypeInvalidDate, SeverityError, v, "invalid calendar date in %q: %v", c.Name, v))
	}
	if p.Year < minYear || p.Year > maxYear {
		out = append(out, issue(TypeDateOutOfRange, SeverityWarning, v, "date outside %d-%d in %q: %v", minYear, maxYear, c.Name, v))
	}
	return out
}

func checkNumber(c schema.Column, v any, issue issueFn) []Issue {
	n, ok := number(v)
	if !ok {
		return []Issue{issue(TypeInvalidNumber, SeverityError, v, "invalid numeric value in %q: %v", c.Name, v)}
	}
	var out []Issue
	if n < 0 && hintsNonNegative(c.Name) {
		out = append(out, issue(TypeNegativeValue, SeverityWarning, n, "negative value in column %q that is expected to be positive: %v", c.Name, n))
	}
	if strings.EqualFold(c.SQLType, schema.SQLInt) && (n < math.MinInt32 || n > math.MaxInt32) {
		out = append(out, issue(TypeIntOverflow, SeverityError, n, "value out of INT range in %q: %v", c.Name, n))
	}
	return out
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, !math.IsNaN(x)
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	s := strings.Replace(strings.TrimSpace(fmt.Sprint(v)), ",", ".", 1)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func hintsNonNegative(name string) bool {
	name = strings.ToLower(name)
	for _, h := range nonNegativeHints {
		if strings.Contains(name, h) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
