package schema

import (
	"encoding/json"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		kind Kind
		key  string
	}{
		{"nil", nil, KindNull, ""},
		{"blank", "   ", KindNull, ""},
		{"null literal", "NULL", KindNull, ""},
		{"bool native", true, KindBoolean, "1"},
		{"bool token si", "SI", KindBoolean, "1"},
		{"bool token accented", "sí", KindBoolean, "1"},
		{"bool token no", "No", KindBoolean, "0"},
		{"bool token zero", "0", KindBoolean, "0"},
		{"integer text", " 42 ", KindInteger, "42"},
		{"negative integer", "-7", KindInteger, "-7"},
		{"decimal comma", "3,5", KindDecimal, "3.5"},
		{"decimal point", "-12.50", KindDecimal, "-12.5"},
		{"decimal trailing zeros", "1.00", KindDecimal, "1"},
		{"decimal leading zeros", "007,10", KindDecimal, "7.1"},
		{"negative zero", "-0.0", KindDecimal, "0"},
		{"huge integer", "99999999999999999999", KindDecimal, "99999999999999999999"},
		{"float native", 1.25, KindDecimal, "1.25"},
		{"integral float", 3.0, KindInteger, "3"},
		{"int native", 17, KindInteger, "17"},
		{"json number", json.Number("12"), KindInteger, "12"},
		{"json exponent", json.Number("1e3"), KindInteger, "1000"},
		{"iso date", "2021-02-28", KindDate, "2021-02-28"},
		{"impossible date", "2021-02-30", KindText, "2021-02-30"},
		{"datetime minutes", "2021-02-28 10:30", KindDateTime, "2021-02-28 10:30:00"},
		{"datetime T", "2021-02-28T10:30:15", KindDateTime, "2021-02-28 10:30:15"},
		{"datetime with zone is text", "2021-02-28T10:30:00Z", KindText, "2021-02-28T10:30:00Z"},
		{"slash date", "28/02/2021", KindDate, "2021-02-28"},
		{"dash date", "01-12-1999", KindDate, "1999-12-01"},
		{"bad hour", "2021-02-28 25:00", KindText, "2021-02-28 25:00"},
		{"time native", time.Date(2020, 5, 6, 7, 8, 9, 0, time.UTC), KindDateTime, "2020-05-06 07:08:09"},
		{"text", " hello ", KindText, "hello"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := Classify(tt.in)
			if v.Kind != tt.kind {
				t.Fatalf("Classify(%#v).Kind = %s, want %s", tt.in, v.Kind, tt.kind)
			}
			if got := v.Key(); got != tt.key {
				t.Fatalf("Classify(%#v).Key() = %q, want %q", tt.in, got, tt.key)
			}
		})
	}
}

func TestParseDateLenient(t *testing.T) {
	t.Parallel()

	p, ok := ParseDate("2021-03-04T05:06:07.000Z")
	if !ok || !p.HasTime || p.DateTimeString() != "2021-03-04 05:06:07" {
		t.Fatalf("ParseDate = %+v, %v", p, ok)
	}

	p, ok = ParseDate("2021-02-30")
	if !ok {
		t.Fatalf("ParseDate should match the layout of an impossible date")
	}
	if p.Valid() {
		t.Fatalf("2021-02-30 must not be Valid")
	}

	if _, ok := ParseDate("March 3rd"); ok {
		t.Fatalf("ParseDate matched free text")
	}
}
