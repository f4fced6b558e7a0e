package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestInferFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"a.csv", FormatCSV, true},
		{"a.TXT", FormatCSV, true},
		{"dir/a.json", FormatJSON, true},
		{"a.ndjson", FormatJSON, true},
		{"a.xml", FormatXML, true},
		{"a.htm", FormatHTML, true},
		{"a.xlsx", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, ok := InferFormat(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("InferFormat(%q) = %q, %v", tt.path, got, ok)
		}
	}
}

func TestSniff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"  [{\"a\":1}]", FormatJSON},
		{"<?xml version=\"1.0\"?><a/>", FormatXML},
		{"<!DOCTYPE html><html><table></table></html>", FormatHTML},
		{"a;b\n1;2", FormatCSV},
	}
	for _, tt := range tests {
		if got, _ := Sniff([]byte(tt.in)); got != tt.want {
			t.Errorf("Sniff(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, ok := Sniff([]byte("   ")); ok {
		t.Errorf("blank input should not sniff")
	}
}

func TestParseLatin1CSV(t *testing.T) {
	t.Parallel()

	// "año;descripción\n2020;niño\n" in ISO-8859-1.
	b := []byte("a\xf1o;descripci\xf3n\n2020;ni\xf1o\n")
	res, err := Parse(b, Options{}, "data.csv")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Meta.Encoding != "latin1" || res.Meta.Delimiter != ";" || res.Meta.RowCount != 1 {
		t.Fatalf("meta = %+v", res.Meta)
	}
	if want := []string{"año", "descripción"}; !reflect.DeepEqual(res.Header, want) {
		t.Fatalf("header = %q", res.Header)
	}
	if res.Rows[0]["descripción"] != "niño" {
		t.Fatalf("row = %#v", res.Rows[0])
	}
}

func TestParseUnknownFormat(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte(""), Options{}, "blob.bin"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("err = %v, want ErrUnknownFormat", err)
	}
	if _, err := Parse([]byte("a"), Options{Format: "yaml"}, "x"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("err = %v, want ErrUnknownFormat", err)
	}
}

func TestReadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"b_orders.json":   `[{"id":1,"customer_id":1}]`,
		"a_customers.csv": "id,name\n1,Ana\n2,Bo\n",
		"notes.md":        "# ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ReadDir(context.Background(), dir, Options{}, 2)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}
	if filepath.Base(got[0].Path) != "a_customers.csv" || got[0].Meta.RowCount != 2 {
		t.Fatalf("first = %+v", got[0])
	}
	if filepath.Base(got[1].Path) != "b_orders.json" || got[1].Meta.Format != FormatJSON {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestReadDirFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`[{"a":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadDir(context.Background(), dir, Options{}, 0); err == nil {
		t.Fatalf("expected decode error")
	}
}
