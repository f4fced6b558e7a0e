package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reISODate     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reISODateTime = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[ tT](\d{2}):(\d{2})(?::(\d{2}))?`)
	reSlashDate   = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	reDashDate    = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})$`)
)

// DateParts is a calendar date with an optional wall-clock time.
// It is not validated on construction; call Valid before trusting it.
type DateParts struct {
	Year, Month, Day     int
	Hour, Minute, Second int
	HasTime              bool
}

// ParseDate matches s against the supported literal layouts:
//
//	YYYY-MM-DD
//	YYYY-MM-DD[ T]HH:MM[:SS]   (trailing zone or fraction ignored)
//	DD/MM/YYYY
//	DD-MM-YYYY
//
// ok reports a layout match only; the result may still be an impossible date
// such as 2021-02-30.
func ParseDate(s string) (DateParts, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateParts{}, false
	}
	if m := reISODateTime.FindStringSubmatch(s); m != nil {
		p := DateParts{
			Year: atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3]),
			Hour: atoi(m[4]), Minute: atoi(m[5]),
			HasTime: true,
		}
		if m[6] != "" {
			p.Second = atoi(m[6])
		}
		return p, true
	}
	if m := reISODate.FindStringSubmatch(s); m != nil {
		return DateParts{Year: atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3])}, true
	}
	m := reSlashDate.FindStringSubmatch(s)
	if m == nil {
		m = reDashDate.FindStringSubmatch(s)
	}
	if m != nil {
		return DateParts{Year: atoi(m[3]), Month: atoi(m[2]), Day: atoi(m[1])}, true
	}
	return DateParts{}, false
}

// classifyDate is the strict variant used during inference: the datetime
// layout must match the whole string and the date must exist.
func classifyDate(s string) (DateParts, bool) {
	p, ok := ParseDate(s)
	if !ok {
		return p, false
	}
	if p.HasTime && !strictDateTime(s) {
		return p, false
	}
	return p, p.Valid()
}

var reStrictDateTime = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ tT]\d{2}:\d{2}(:\d{2})?$`)

func strictDateTime(s string) bool { return reStrictDateTime.MatchString(strings.TrimSpace(s)) }

// PartsFromTime converts t to DateParts in UTC.
func PartsFromTime(t time.Time) DateParts {
	t = t.UTC()
	return DateParts{
		Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
		Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(),
		HasTime: true,
	}
}

// Valid reports whether the parts survive a round trip through the calendar.
func (p DateParts) Valid() bool {
	if p.Hour > 23 || p.Minute > 59 || p.Second > 59 {
		return false
	}
	t := p.Time()
	return t.Year() == p.Year && int(t.Month()) == p.Month && t.Day() == p.Day &&
		t.Hour() == p.Hour && t.Minute() == p.Minute && t.Second() == p.Second
}

// Time returns the parts as a UTC time; out-of-range fields roll over.
func (p DateParts) Time() time.Time {
	return time.Date(p.Year, time.Month(p.Month), p.Day, p.Hour, p.Minute, p.Second, 0, time.UTC)
}

// DateString renders YYYY-MM-DD.
func (p DateParts) DateString() string {
	return fmt.Sprintf("%04d-%02d-%02d", p.Year, p.Month, p.Day)
}

// DateTimeString renders YYYY-MM-DD HH:MM:SS.
func (p DateParts) DateTimeString() string {
	return fmt.Sprintf("%s %02d:%02d:%02d", p.DateString(), p.Hour, p.Minute, p.Second)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
