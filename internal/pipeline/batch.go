package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tabload/internal/ddl"
	"tabload/internal/deps"
	"tabload/internal/logging"
	"tabload/internal/parser"
	"tabload/internal/report"
	"tabload/internal/schema"
	"tabload/internal/storage"
	"tabload/internal/transformer"
	"tabload/internal/validate"
)

// RunBatch decodes every recognized file under opts.Input (or the single file
// it names) and loads each as its own table.
func (r *Runner) RunBatch(ctx context.Context, opts Options) (*report.Batch, error) {
	log := logging.OrDiscard(r.Logger)

	var results []parser.Result
	err := r.stage(opts.job(), "parse", log, func() error {
		fi, err := os.Stat(opts.Input)
		if err != nil {
			return fmt.Errorf("batch input: %w", err)
		}
		if fi.IsDir() {
			results, err = parser.ReadDir(ctx, opts.Input, opts.Parse, opts.ParseConcurrency)
		} else {
			results, err = parser.ReadFiles(ctx, []string{opts.Input}, opts.Parse, opts.ParseConcurrency)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no input files in %s", ErrNoRows, opts.Input)
	}

	ins := make([]Input, len(results))
	for i, res := range results {
		ins[i] = FromParsed(res)
		log.Info("decoded", "path", res.Path, "format", res.Meta.Format, "rows", res.Meta.RowCount)
	}
	return r.LoadBatch(ctx, ins, opts)
}

// LoadBatch loads already decoded tables. Tables are loaded one after another,
// each in its own transaction; a failed table is recorded in the report and,
// unless opts.AbortBatchOnFailure is set, the rest still load. The returned
// error is the first table failure, if any.
func (r *Runner) LoadBatch(ctx context.Context, ins []Input, opts Options) (*report.Batch, error) {
	start := time.Now()
	job := opts.job()
	runID := report.NewRunID()
	log := logging.OrDiscard(r.Logger).With("run", runID, "mode", report.ModeBatch)

	tcfg, err := transformer.LoadConfig(opts.Transform)
	if err != nil {
		return nil, err
	}

	rep := report.NewBatch(runID)
	rep.DryRun = opts.offline()
	dir := opts.outputDir()
	finish := func(err error) (*report.Batch, error) {
		rep.ExecutionMs = time.Since(start).Milliseconds()
		rep.ReportPath = opts.ReportOut
		if rep.ReportPath == "" {
			rep.ReportPath = filepath.Join(dir, "batch_report.json")
		}
		if werr := report.WriteJSON(rep.ReportPath, rep); werr != nil {
			return rep, errors.Join(err, werr)
		}
		return rep, err
	}

	used := map[string]bool{}
	var tables []*table
	for _, in := range ins {
		name := uniqueName(used, schema.DeriveTableName(in.Path, in.Name))
		if len(in.Rows) == 0 {
			log.Warn("skipping empty input", "path", in.Path, "table", name)
			rep.Add(report.Table{Table: name, Source: in.Path, Failure: ErrNoRows.Error()})
			continue
		}
		tables = append(tables, r.prepare(job, in, tcfg, name, log))
	}
	if len(tables) == 0 {
		return finish(ErrNoRows)
	}

	var fks []deps.ForeignKey
	if opts.DetectFKs || opts.SortDeps {
		_ = r.stage(job, "deps", log, func() error {
			dt := make([]deps.Table, len(tables))
			for i, t := range tables {
				dt[i] = deps.Table{Name: t.name, Schema: t.schema}
			}
			res := deps.Resolve(dt)
			fks = res.ForeignKeys
			rep.Cyclic = res.Cyclic
			if res.Cyclic {
				log.Warn("foreign key cycle; keeping input order")
			} else if opts.SortDeps {
				tables = reorder(tables, res.Order)
			}
			return nil
		})
	}
	rep.ForeignKeys = len(fks)
	rep.ForeignKeyEdges = fks
	for _, t := range tables {
		rep.LoadOrder = append(rep.LoadOrder, t.name)
	}

	repo, err := r.open(ctx, opts)
	if err != nil {
		return finish(err)
	}
	d, err := ddl.ForKind(opts.Storage.Kind)
	if err != nil {
		return finish(err)
	}
	if repo != nil {
		defer repo.Close()
		d = repo.Dialect()
	}

	if opts.Validate {
		var issues []validate.Issue
		data := make([]validate.TableData, len(tables))
		for i, t := range tables {
			issues = append(issues, validate.Check(t.rows, t.schema, validate.Options{Duplicates: true, Values: true, Table: t.name})...)
			data[i] = validate.TableData{Name: t.name, Rows: t.rows, Schema: t.schema}
		}
		if len(fks) > 0 {
			var src validate.ValueSource
			if repo != nil {
				src = repo
			}
			issues = append(issues, validate.Referential(ctx, data, fks, src)...)
		}
		rep.ValidationIssues = len(issues)
		path, err := r.gate(job, opts, issues, log)
		rep.ValidationPath = path
		if err != nil {
			return finish(err)
		}
	}

	err = r.stage(job, "ddl", log, func() error {
		for _, t := range tables {
			t.ddl = ddl.CreateTable(d, t.name, t.schema)
			if err := ddl.WriteFile(filepath.Join(dir, t.name+"_schema.sql"), t.ddl); err != nil {
				return err
			}
			if opts.Procedures {
				if err := writeProcedures(d, filepath.Join(dir, t.name+"_procedures.sql"), t, log); err != nil {
					return err
				}
			}
		}
		if len(fks) > 0 {
			rep.ForeignKeysPath = filepath.Join(dir, "foreign_keys.sql")
			return ddl.WriteFile(rep.ForeignKeysPath, ddl.ForeignKeyScript(d, fks))
		}
		return nil
	})
	if err != nil {
		return finish(err)
	}

	var first error
	for _, t := range tables {
		entry, err := r.loadTable(ctx, repo, d, dir, opts, t, log)
		rep.Add(entry)
		if err == nil {
			continue
		}
		if first == nil {
			first = fmt.Errorf("table %s: %w", t.name, err)
		}
		if opts.AbortBatchOnFailure {
			log.Error("aborting batch", "table", t.name)
			break
		}
	}
	log.Info("batch done", "tables", rep.TotalTables, "rows", rep.TotalRows,
		"inserted", rep.TotalInserted, "errors", rep.TotalErrors, "failed", rep.FailedTables)
	return finish(first)
}

// loadTable loads one prepared table and describes the outcome.
func (r *Runner) loadTable(ctx context.Context, repo storage.Repository, d ddl.Dialect, dir string, opts Options, t *table, log *slog.Logger) (report.Table, error) {
	log = log.With("table", t.name)
	entry := report.Table{
		Table:   t.name,
		Source:  t.source,
		Rows:    len(t.rows),
		DDLPath: filepath.Join(dir, t.name+"_schema.sql"),
	}

	aligned := transformer.Align(t.rows, t.schema)
	defer transformer.FreeAll(aligned)

	if opts.DryRun {
		if err := writeInserts(d, filepath.Join(dir, t.name+"_inserts.sql"), t, aligned, opts); err != nil {
			entry.Failure = err.Error()
			return entry, err
		}
	}

	res, err := r.load(ctx, repo, opts, t, aligned, log)
	entry.Inserted = res.Inserted
	entry.Errors = len(res.Errors)
	entry.RowErrors = res.Errors
	if err != nil {
		entry.Failure = err.Error()
	}
	return entry, err
}

// uniqueName suffixes name with _2, _3, ... until it is unused.
func uniqueName(used map[string]bool, name string) string {
	out := name
	for n := 2; used[out]; n++ {
		out = name + "_" + strconv.Itoa(n)
	}
	used[out] = true
	return out
}

// reorder returns tables in the order names lists them. Tables missing from
// names keep their relative order at the end.
func reorder(tables []*table, names []string) []*table {
	byName := make(map[string]*table, len(tables))
	for _, t := range tables {
		byName[t.name] = t
	}
	out := make([]*table, 0, len(tables))
	for _, n := range names {
		if t, ok := byName[n]; ok {
			out = append(out, t)
			delete(byName, n)
		}
	}
	for _, t := range tables {
		if _, ok := byName[t.name]; ok {
			out = append(out, t)
		}
	}
	return out
}
