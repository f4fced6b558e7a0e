package transformer

import (
	"reflect"
	"testing"
	"time"

	"tabload/internal/schema"
)

func TestRowHashSum(t *testing.T) {
	t.Parallel()
	valid := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	h := &RowHash{Fields: []string{"plate", "protocol", "valid_from"}, IncludeFieldNames: true, TrimSpace: true}
	a := h.Sum(schema.Row{"plate": float64(14596725), "protocol": " ABC-123 ", "valid_from": valid})
	b := h.Sum(schema.Row{"plate": float64(14596725), "protocol": "ABC-123", "valid_from": valid.In(time.FixedZone("x", 3600))})
	if a != b {
		t.Fatalf("equivalent rows hash differently: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}

	missing := h.Sum(schema.Row{"plate": float64(14596725), "valid_from": valid})
	empty := h.Sum(schema.Row{"plate": float64(14596725), "protocol": "", "valid_from": valid})
	if missing == empty {
		t.Fatalf("missing and empty values collide")
	}

	noTrim := &RowHash{Fields: h.Fields, IncludeFieldNames: true}
	if noTrim.Sum(schema.Row{"protocol": " x "}) == noTrim.Sum(schema.Row{"protocol": "x"}) {
		t.Fatalf("whitespace ignored without TrimSpace")
	}
}

func TestRowHashAllColumns(t *testing.T) {
	t.Parallel()
	h := &RowHash{}
	r1 := schema.Row{"a": "1", "b": "2"}
	r2 := schema.Row{"b": "2", "a": "1", DefaultRowHashColumn: "stale"}
	if h.Sum(r1) != h.Sum(r2) {
		t.Fatalf("target column or key order changed the hash")
	}
	if h.Sum(r1) == h.Sum(schema.Row{"a": "1", "b": "3"}) {
		t.Fatalf("different rows collide")
	}
}

func TestConfigRowHash(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		ColumnRenames: map[string]string{"Name": "name"},
		RowHash:       &RowHash{Fields: []string{"name"}, Target: "key"},
	}

	rows := cfg.Apply([]schema.Row{{"Name": "ana"}, {"Name": "bo"}})
	if rows[0]["key"] == nil || rows[0]["key"] == rows[1]["key"] {
		t.Fatalf("keys = %v, %v", rows[0]["key"], rows[1]["key"])
	}
	if want := (&RowHash{Fields: []string{"name"}}).Sum(schema.Row{"name": "ana"}); rows[0]["key"] != want {
		t.Errorf("hash computed before rename: %v", rows[0]["key"])
	}
	if got := cfg.ApplyHeader([]string{"Name"}); !reflect.DeepEqual(got, []string{"name", "key"}) {
		t.Errorf("ApplyHeader = %v", got)
	}

	s := schema.Infer([]schema.Row{{"name": "x", "key": "k1"}, {"name": "x", "key": "k2"}}, cfg.ApplyHeader([]string{"Name"}))
	if !reflect.DeepEqual(s.PrimaryKeys, []string{"key"}) {
		t.Errorf("PrimaryKeys = %v, want the hash column", s.PrimaryKeys)
	}
}
