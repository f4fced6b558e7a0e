package schema

import (
	"fmt"
	"math"
	"slices"

	"github.com/zeebo/xxh3"
)

// MaxDistinct bounds the distinct-value set kept per column. Past it the set
// is dropped and uniqueness is reported as not determined.
const MaxDistinct = 10000

// Canonical SQL type names.
const (
	SQLBoolean     = "TINYINT(1)"
	SQLInt         = "INT"
	SQLBigInt      = "BIGINT"
	SQLDate        = "DATE"
	SQLDateTime    = "DATETIME"
	SQLText        = "TEXT"
	SQLDefaultText = "VARCHAR(255)"

	maxVarchar = 1000
)

// Stats accumulates per-column observations during a full scan.
type Stats struct {
	RawName string

	Total int
	Nulls int

	// Booleans includes the literals 1 and 0; they never count as integers.
	Booleans  int
	Integers  int
	Decimals  int
	Dates     int
	DateTimes int
	Texts     int

	IntMin, IntMax int64
	// MaxIntDigits and MaxScale describe the widest numeric value seen.
	MaxIntDigits int
	MaxScale     int
	MaxLength    int

	distinct map[uint64]struct{}
	capped   bool
}

func newStats(raw string) *Stats {
	return &Stats{RawName: raw, distinct: make(map[uint64]struct{})}
}

// NonNull returns the number of non-null observations.
func (s *Stats) NonNull() int { return s.Total - s.Nulls }

// Capped reports whether the distinct set overflowed MaxDistinct.
func (s *Stats) Capped() bool { return s.capped }

// Distinct returns the number of distinct non-null values, or -1 once capped.
func (s *Stats) Distinct() int {
	if s.capped {
		return -1
	}
	return len(s.distinct)
}

// Observe classifies raw and folds it into the stats.
func (s *Stats) Observe(raw any) {
	s.Total++
	v := Classify(raw)
	if v.Kind == KindNull {
		s.Nulls++
		return
	}

	if !s.capped {
		s.distinct[xxh3.HashString(v.Key())] = struct{}{}
		if len(s.distinct) > MaxDistinct {
			s.capped = true
			s.distinct = nil
		}
	}

	switch v.Kind {
	case KindBoolean:
		s.Booleans++
	case KindInteger:
		s.Integers++
		s.observeNumber(v)
	case KindDecimal:
		s.Decimals++
		s.observeNumber(v)
	case KindDate:
		s.Dates++
	case KindDateTime:
		s.DateTimes++
	default:
		s.Texts++
	}
	s.MaxLength = max(s.MaxLength, v.length())
}

func (s *Stats) observeNumber(v Value) {
	if v.Kind == KindInteger {
		if s.Integers == 1 {
			s.IntMin, s.IntMax = v.Int, v.Int
		} else {
			s.IntMin = min(s.IntMin, v.Int)
			s.IntMax = max(s.IntMax, v.Int)
		}
	}
	i, sc := v.digits()
	s.MaxIntDigits = max(s.MaxIntDigits, i)
	s.MaxScale = max(s.MaxScale, sc)
}

// UniqueCandidate reports whether every non-null value is distinct, there is
// at least one, and the column has no nulls.
func (s *Stats) UniqueCandidate() bool {
	return !s.capped && s.Nulls == 0 && s.NonNull() > 0 && len(s.distinct) == s.NonNull()
}

// TypeInfo is the finalized column type.
type TypeInfo struct {
	Kind      Kind
	SQLType   string
	Precision int
	Scale     int
}

// Finalize picks the column type from the accumulated stats:
//  1. all boolean        -> TINYINT(1)
//  2. all date/datetime  -> DATE, or DATETIME when any value had a time
//  3. all decimal        -> DECIMAL(p,s)
//  4. all integer        -> INT, or BIGINT past the signed 32-bit range
//  5. integer + decimal  -> DECIMAL(p,s)
//  6. anything else      -> VARCHAR(n), or TEXT when n > 1000
//
// Booleans mixed with any other kind fall through to rule 6.
// A column without non-null values is VARCHAR(255).
func (s *Stats) Finalize() TypeInfo {
	nonNull := s.NonNull()
	if nonNull == 0 {
		return TypeInfo{Kind: KindText, SQLType: SQLDefaultText}
	}
	switch {
	case s.Booleans == nonNull:
		return TypeInfo{Kind: KindBoolean, SQLType: SQLBoolean}
	case s.Dates+s.DateTimes == nonNull:
		if s.DateTimes > 0 {
			return TypeInfo{Kind: KindDateTime, SQLType: SQLDateTime}
		}
		return TypeInfo{Kind: KindDate, SQLType: SQLDate}
	case s.Decimals == nonNull:
		return s.decimalType()
	case s.Integers == nonNull:
		if s.IntMin < math.MinInt32 || s.IntMax > math.MaxInt32 {
			return TypeInfo{Kind: KindInteger, SQLType: SQLBigInt}
		}
		return TypeInfo{Kind: KindInteger, SQLType: SQLInt}
	case s.Integers+s.Decimals == nonNull:
		return s.decimalType()
	}

	n := max(s.MaxLength, 1)
	if n > maxVarchar {
		return TypeInfo{Kind: KindText, SQLType: SQLText}
	}
	return TypeInfo{Kind: KindText, SQLType: fmt.Sprintf("VARCHAR(%d)", n)}
}

// decimalType sizes DECIMAL(p,s) so that the widest integer part and the
// widest fraction seen both fit. p is clamped to [4,30] and s to [0,14].
func (s *Stats) decimalType() TypeInfo {
	p := s.MaxIntDigits + s.MaxScale
	if p == 0 {
		p = s.MaxLength
	}
	if p == 0 {
		p = 10
	}
	p = clamp(p, 4, 30)
	sc := clamp(s.MaxScale, 0, 14)
	if sc > p {
		sc = p
	}
	return TypeInfo{
		Kind:      KindDecimal,
		SQLType:   fmt.Sprintf("DECIMAL(%d,%d)", p, sc),
		Precision: p,
		Scale:     sc,
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// DiscoverKeys returns the union of keys across rows. Keys listed in hint
// (typically a header) come first in hint order when any row carries them;
// the rest follow in first-seen order, sorted within the row that
// introduced them since map iteration is unordered.
func DiscoverKeys(rows []Row, hint []string) []string {
	present := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			present[k] = true
		}
	}

	seen := make(map[string]bool, len(present))
	keys := make([]string, 0, len(present))
	for _, k := range hint {
		if present[k] && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, r := range rows {
		var fresh []string
		for k := range r {
			if !seen[k] {
				seen[k] = true
				fresh = append(fresh, k)
			}
		}
		slices.Sort(fresh)
		keys = append(keys, fresh...)
	}
	return keys
}

// Analyze scans rows once per discovered key and returns stats in key order.
// A key missing from a row counts as a null for that row.
func Analyze(rows []Row, keys []string) []*Stats {
	out := make([]*Stats, len(keys))
	for i, k := range keys {
		st := newStats(k)
		for _, r := range rows {
			st.Observe(r[k])
		}
		out[i] = st
	}
	return out
}
