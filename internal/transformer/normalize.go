package transformer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tabload/internal/schema"
)

// NormalizeValue coerces a raw cell into the representation col expects at
// load time. It never fails: blank sentinels and unparsable numbers become
// nil, unparsable dates pass through as text.
//
//   - boolean columns: int64 1 for a true schema.BoolToken, else 0
//   - DATE / DATETIME: "YYYY-MM-DD" / "YYYY-MM-DD HH:MM:SS"
//   - INT / BIGINT: int64 (float64 when the input has a fraction)
//   - DECIMAL: decimal text with a dot separator
//   - everything else: string
func NormalizeValue(raw any, col schema.Column) any {
	if schema.IsNullish(raw) {
		return nil
	}
	switch {
	case col.IsBoolean():
		return normalizeBool(raw)
	case col.IsTemporal():
		return normalizeDate(raw, col)
	case col.IsNumeric():
		return normalizeNumber(raw, col)
	}
	return text(raw)
}

func normalizeBool(raw any) int64 {
	if b, ok := raw.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	if b, _ := schema.BoolToken(text(raw)); b {
		return 1
	}
	return 0
}

func normalizeDate(raw any, col schema.Column) any {
	var p schema.DateParts
	if t, ok := raw.(time.Time); ok {
		p = schema.PartsFromTime(t)
	} else {
		parsed, ok := schema.ParseDate(text(raw))
		if !ok {
			return text(raw)
		}
		p = parsed
	}
	if strings.EqualFold(col.SQLType, schema.SQLDate) {
		return p.DateString()
	}
	return p.DateTimeString()
}

func normalizeNumber(raw any, col schema.Column) any {
	var f float64
	var s string
	switch x := raw.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case float64:
		f, s = x, strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		f = float64(x)
		s = strconv.FormatFloat(f, 'f', -1, 32)
	default:
		s = strings.Replace(strings.TrimSpace(text(raw)), ",", ".", 1)
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = v
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	if strings.HasPrefix(strings.ToUpper(col.SQLType), "DECIMAL") {
		switch v := schema.Classify(s); v.Kind {
		case schema.KindDecimal:
			return v.Dec
		case schema.KindInteger:
			return v.Key()
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return int64(f)
	}
	return f
}

func text(raw any) string {
	switch x := raw.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(raw)
}

// Align normalizes rows against the insertable columns of s and returns one
// positional Row per input row. Row.Line is the 0-based input index.
func Align(rows []schema.Row, s schema.Schema) []*Row {
	cols := s.InsertColumns()
	out := make([]*Row, len(rows))
	for i, r := range rows {
		pr := GetRow(len(cols))
		for j, c := range cols {
			pr.V[j] = NormalizeValue(r[c.RawName], c)
		}
		pr.Line = i
		out[i] = pr
	}
	return out
}

// Values returns the positional values of rows.
func Values(rows []*Row) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = r.V
	}
	return out
}

// FreeAll returns rows to the pool.
func FreeAll(rows []*Row) {
	for _, r := range rows {
		if r != nil {
			r.Free()
		}
	}
}
