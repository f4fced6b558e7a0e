package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"tabload/internal/storage"
)

func TestNewRunID(t *testing.T) {
	t.Parallel()
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Fatalf("run ids repeat: %s", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("run id %q is not a UUID: %v", a, err)
	}
}

func TestBatchAdd(t *testing.T) {
	t.Parallel()
	b := NewBatch("r1")
	b.Add(Table{Table: "customers", Rows: 3, Inserted: 3})
	b.Add(Table{Table: "orders", Rows: 5, Inserted: 4, Errors: 1})
	b.Add(Table{Table: "items", Rows: 2, Failure: "load aborted"})

	if b.Mode != ModeBatch || b.TotalTables != 3 || b.TotalRows != 10 || b.TotalInserted != 7 || b.TotalErrors != 1 || b.FailedTables != 1 {
		t.Fatalf("batch = %+v", b)
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "report.json")

	run := Run{
		RunID:       "r1",
		Table:       "people",
		RowCount:    5,
		Inserted:    4,
		Errors:      1,
		PrimaryKeys: []string{"code"},
		RowErrors:   []storage.RowError{{Index: 3, Message: "null"}},
	}
	if err := WriteJSON(path, run); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, k := range []string{"runId", "table", "rowCount", "inserted", "errors", "executionMs", "primaryKeys", "validationIssues"} {
		if _, ok := got[k]; !ok {
			t.Errorf("report missing %q: %s", k, raw)
		}
	}
	rowErrs, ok := got["rowErrors"].([]any)
	if !ok || len(rowErrs) != 1 {
		t.Fatalf("rowErrors = %v: %s", got["rowErrors"], raw)
	}
	if first, _ := rowErrs[0].(map[string]any); first["index"] != float64(3) || first["message"] != "null" {
		t.Errorf("rowErrors[0] = %v", rowErrs[0])
	}
	if got["inserted"] != float64(4) {
		t.Errorf("inserted = %v", got["inserted"])
	}

	if err := WriteJSON("", run); err != nil {
		t.Fatalf("empty path: %v", err)
	}
}
