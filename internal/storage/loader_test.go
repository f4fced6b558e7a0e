package storage_test

import (
	"context"
	"errors"
	"testing"

	"tabload/internal/ddl"
	"tabload/internal/schema"
	"tabload/internal/storage"
	_ "tabload/internal/storage/sqlite"
	"tabload/internal/transformer"
)

var peopleSchema = schema.Schema{
	Columns: []schema.Column{
		{RawName: "code", Name: "code", SQLType: "VARCHAR(10)", Unique: true, PrimaryKey: true},
		{RawName: "name", Name: "name", SQLType: "VARCHAR(20)"},
	},
	PrimaryKeys: []string{"code"},
}

// fivePeople has one row (index 3) that violates NOT NULL on name.
func fivePeople() []schema.Row {
	return []schema.Row{
		{"code": "a", "name": "Ana"},
		{"code": "b", "name": "Bo"},
		{"code": "c", "name": "Cy"},
		{"code": "d", "name": nil},
		{"code": "e", "name": "Ed"},
	}
}

func peopleJob() storage.Job {
	cols := peopleSchema.InsertColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return storage.Job{
		Table:   "people",
		DDL:     ddl.CreateTable(ddl.SQLite, "people", peopleSchema),
		Columns: names,
		Rows:    transformer.Align(fivePeople(), peopleSchema),
	}
}

func openSQLite(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestLoaderFailFastRollsBack(t *testing.T) {
	t.Parallel()

	for _, bulk := range []bool{true, false} {
		repo := openSQLite(t)
		l := &storage.Loader{Repo: repo, Bulk: bulk, ChunkSize: 2}

		res, err := l.Load(context.Background(), peopleJob())
		if !errors.Is(err, storage.ErrLoadAborted) {
			t.Fatalf("bulk=%v: err = %v, want ErrLoadAborted", bulk, err)
		}
		if res.Inserted != 0 {
			t.Fatalf("bulk=%v: Inserted = %d, want 0", bulk, res.Inserted)
		}
		// The DDL ran inside the rolled back transaction too.
		if _, err := repo.ColumnValues(context.Background(), "people", "code"); err == nil {
			t.Fatalf("bulk=%v: table survived rollback", bulk)
		}
	}
}

func TestLoaderContinueOnError(t *testing.T) {
	t.Parallel()

	for _, bulk := range []bool{true, false} {
		repo := openSQLite(t)
		var calls, last int
		l := &storage.Loader{
			Repo:            repo,
			Bulk:            bulk,
			ChunkSize:       2,
			ContinueOnError: true,
			Progress:        func(done, total int) { calls++; last = done },
		}

		res, err := l.Load(context.Background(), peopleJob())
		if err != nil {
			t.Fatalf("bulk=%v: Load: %v", bulk, err)
		}
		if res.Processed != 5 || res.Inserted != 4 || len(res.Errors) != 1 {
			t.Fatalf("bulk=%v: result = %+v", bulk, res)
		}
		if e := res.Errors[0]; e.Index != 3 || e.Message == "" || e.Row[0] != "d" {
			t.Fatalf("bulk=%v: row error = %+v", bulk, e)
		}
		if calls == 0 || last != 5 {
			t.Fatalf("bulk=%v: progress calls=%d last=%d", bulk, calls, last)
		}

		vals, err := repo.ColumnValues(context.Background(), "people", "code")
		if err != nil {
			t.Fatalf("bulk=%v: ColumnValues: %v", bulk, err)
		}
		if len(vals) != 4 {
			t.Fatalf("bulk=%v: stored codes = %v", bulk, vals)
		}
	}
}

func TestLoaderDryRun(t *testing.T) {
	t.Parallel()

	var progress []int
	l := &storage.Loader{DryRun: true, Progress: func(done, _ int) { progress = append(progress, done) }}
	res, err := l.Load(context.Background(), peopleJob())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Processed != 5 || res.Inserted != 0 || len(res.Errors) != 0 {
		t.Fatalf("dry run result = %+v", res)
	}
	if len(progress) != 1 || progress[0] != 5 {
		t.Fatalf("progress = %v, want one call with 5", progress)
	}
}

func TestLoaderEmptyRowsStillCreatesTable(t *testing.T) {
	t.Parallel()

	repo := openSQLite(t)
	job := peopleJob()
	job.Rows = nil
	res, err := (&storage.Loader{Repo: repo, Bulk: true}).Load(context.Background(), job)
	if err != nil || res.Processed != 0 {
		t.Fatalf("Load = %+v, %v", res, err)
	}
	if _, err := repo.ColumnValues(context.Background(), "people", "code"); err != nil {
		t.Fatalf("table not created: %v", err)
	}
}
