package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Value is one classified cell. Exactly the fields matching Kind are set.
type Value struct {
	Kind Kind

	Bool bool
	Int  int64
	// Dec is the decimal text as written with a dot separator, e.g. "-12.50".
	// It is also used for integer literals that do not fit in int64.
	Dec string

	Date DateParts

	// Text is the trimmed textual form of the original cell.
	Text string
}

var (
	reInteger = regexp.MustCompile(`^-?\d+$`)
	reDecimal = regexp.MustCompile(`^-?\d+\.\d+$`)
)

var boolTokens = map[string]bool{
	"true": true, "yes": true, "si": true, "sí": true, "1": true,
	"false": false, "no": false, "0": false,
}

// BoolToken reports whether s is one of the recognized boolean literals and
// its truth value. Matching is case-insensitive.
func BoolToken(s string) (val, ok bool) {
	val, ok = boolTokens[strings.ToLower(strings.TrimSpace(s))]
	return val, ok
}

// IsNullish reports whether raw is a blank-equivalent: nil, an empty or
// whitespace-only string, or the literal "null" in any case.
func IsNullish(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		t := strings.TrimSpace(v)
		return t == "" || strings.EqualFold(t, "null")
	}
	return false
}

// Classify runs the inference cascade on a single cell:
// boolean token, integer, decimal, date/datetime, text.
func Classify(raw any) Value {
	if IsNullish(raw) {
		return Value{Kind: KindNull}
	}
	switch v := raw.(type) {
	case bool:
		return Value{Kind: KindBoolean, Bool: v, Text: strconv.FormatBool(v)}
	case int:
		return intValue(int64(v))
	case int8:
		return intValue(int64(v))
	case int16:
		return intValue(int64(v))
	case int32:
		return intValue(int64(v))
	case int64:
		return intValue(v)
	case uint8:
		return intValue(int64(v))
	case uint16:
		return intValue(int64(v))
	case uint32:
		return intValue(int64(v))
	case uint:
		return classifyNumber(strconv.FormatUint(uint64(v), 10))
	case uint64:
		return classifyNumber(strconv.FormatUint(v, 10))
	case float32:
		return floatValue(float64(v))
	case float64:
		return floatValue(v)
	case json.Number:
		return classifyNumber(v.String())
	case time.Time:
		return Value{Kind: KindDateTime, Date: PartsFromTime(v), Text: v.UTC().Format(time.RFC3339)}
	case string:
		return classifyString(v)
	default:
		return classifyString(fmt.Sprint(v))
	}
}

func intValue(n int64) Value {
	return Value{Kind: KindInteger, Int: n, Text: strconv.FormatInt(n, 10)}
}

func floatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{Kind: KindText, Text: strconv.FormatFloat(f, 'f', -1, 64)}
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return intValue(int64(f))
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	return Value{Kind: KindDecimal, Dec: s, Text: s}
}

// classifyNumber handles native numbers that arrive as text (json.Number).
// Boolean tokens do not apply to them.
func classifyNumber(s string) Value {
	if v := numericValue(s); v.Kind != KindNull {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatValue(f)
	}
	return Value{Kind: KindText, Text: s}
}

// numericValue parses an integer or decimal literal with an optional decimal
// comma. It returns a KindNull value when s is not numeric.
func numericValue(s string) Value {
	cand := strings.Replace(s, ",", ".", 1)
	switch {
	case reInteger.MatchString(cand):
		n, err := strconv.ParseInt(cand, 10, 64)
		if err != nil {
			// Beyond int64: keep the digits exactly as a scale-0 decimal.
			return Value{Kind: KindDecimal, Dec: cand, Text: s}
		}
		return Value{Kind: KindInteger, Int: n, Text: s}
	case reDecimal.MatchString(cand):
		return Value{Kind: KindDecimal, Dec: cand, Text: s}
	}
	return Value{Kind: KindNull}
}

func classifyString(raw string) Value {
	s := strings.TrimSpace(raw)
	if b, ok := BoolToken(s); ok {
		return Value{Kind: KindBoolean, Bool: b, Text: s}
	}
	if v := numericValue(s); v.Kind != KindNull {
		return v
	}
	if p, ok := classifyDate(s); ok {
		k := KindDate
		if p.HasTime {
			k = KindDateTime
		}
		return Value{Kind: k, Date: p, Text: s}
	}
	return Value{Kind: KindText, Text: s}
}

// Key is the normalized form used for distinct counting.
func (v Value) Key() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBoolean:
		if v.Bool {
			return "1"
		}
		return "0"
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindDecimal:
		return canonicalDecimal(v.Dec)
	case KindDate:
		return v.Date.DateString()
	case KindDateTime:
		return v.Date.DateTimeString()
	default:
		return v.Text
	}
}

// canonicalDecimal strips leading integer zeros and trailing fraction zeros
// so numerically equal literals share one key: "1.00" and "01.0" are "1",
// "-0.0" is "0".
func canonicalDecimal(s string) string {
	neg := strings.HasPrefix(s, "-")
	whole, frac, _ := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	out := whole
	if frac = strings.TrimRight(frac, "0"); frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// digits returns the integer-part digit count and the scale of a numeric value.
func (v Value) digits() (intDigits, scale int) {
	switch v.Kind {
	case KindInteger:
		n := v.Int
		if n < 0 {
			return len(strconv.FormatInt(n, 10)) - 1, 0
		}
		return len(strconv.FormatInt(n, 10)), 0
	case KindDecimal:
		d := strings.TrimPrefix(v.Dec, "-")
		whole, frac, _ := strings.Cut(d, ".")
		return len(whole), len(frac)
	}
	return 0, 0
}

// length is the textual length recorded for MaxLength, in characters.
func (v Value) length() int {
	switch v.Kind {
	case KindInteger, KindDecimal:
		i, s := v.digits()
		if s > 0 {
			return i + s + 1
		}
		return i
	case KindBoolean:
		return 1
	}
	return utf8.RuneCountInString(v.Text)
}
