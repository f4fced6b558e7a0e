package records

import (
	"reflect"
	"testing"

	"tabload/internal/schema"
)

func TestFlatten(t *testing.T) {
	t.Parallel()

	inner := NewObject()
	inner.Set("x", 1)
	child := NewObject()
	child.Set("city", "Lima")
	child.Set("deep", inner)

	o := NewObject()
	o.Set("id", 1)
	o.Set("addr", child)
	o.Set("tags", []any{"a", nil, 2})
	o.Set("id", 2)

	keys, row := Flatten(o)
	if want := []string{"id", "addr_city", "addr_deep", "tags"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %q, want %q", keys, want)
	}
	want := schema.Row{"id": 2, "addr_city": "Lima", "addr_deep": "{x=1}", "tags": "a,2"}
	if !reflect.DeepEqual(row, want) {
		t.Fatalf("row = %#v", row)
	}
}

func TestTableHeaderFirstSeen(t *testing.T) {
	t.Parallel()

	var tbl Table
	a := NewObject()
	a.Set("b", 1)
	b := NewObject()
	b.Set("a", 1)
	b.Set("b", 2)
	tbl.Add(a)
	tbl.Add(b)
	if want := []string{"b", "a"}; !reflect.DeepEqual(tbl.Header, want) {
		t.Fatalf("header = %q", tbl.Header)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      []byte
		enc     string
		want    string
		wantEnc string
		wantErr bool
	}{
		{"utf8 bom", []byte("\xEF\xBB\xBFaño"), "", "año", UTF8, false},
		{"latin1 detected", []byte("a\xf1o"), "", "año", Latin1, false},
		{"windows-1252 euro", []byte("\x80"), "cp1252", "€", "windows-1252", false},
		{"forced latin1", []byte("a\xf1o"), "ISO-8859-1", "año", Latin1, false},
		{"unknown", []byte("x"), "ebcdic", "", "", true},
	}
	for _, tt := range tests {
		got, enc, err := Decode(tt.in, tt.enc)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: err = %v", tt.name, err)
		}
		if got != tt.want || enc != tt.wantEnc {
			t.Errorf("%s: Decode = %q, %q; want %q, %q", tt.name, got, enc, tt.want, tt.wantEnc)
		}
	}
}
