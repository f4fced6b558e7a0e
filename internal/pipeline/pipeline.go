// Package pipeline orchestrates a tabload run: decode, transform, infer,
// validate, render artifacts, load and report. It is the only package that
// knows both single-table and batch mode.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tabload/internal/ddl"
	"tabload/internal/logging"
	"tabload/internal/metrics"
	"tabload/internal/parser"
	"tabload/internal/report"
	"tabload/internal/schema"
	"tabload/internal/storage"
	"tabload/internal/transformer"
	"tabload/internal/validate"
)

var (
	// ErrNoRows means the input decoded to zero rows.
	ErrNoRows = errors.New("no rows to load")
	// ErrUnknownFormat means no decoder matched the input.
	ErrUnknownFormat = parser.ErrUnknownFormat
	// ErrValidationFailed means fail-fast was requested and validation
	// found error-severity issues.
	ErrValidationFailed = errors.New("validation failed")
)

// Input is one decoded table.
type Input struct {
	// Name is the table name; empty derives it from Path.
	Name   string
	Path   string
	Header []string
	Rows   []schema.Row
	Meta   parser.Meta
}

// FromParsed wraps a decoded file.
func FromParsed(res parser.Result) Input {
	return Input{Path: res.Path, Header: res.Header, Rows: res.Rows, Meta: res.Meta}
}

// Runner executes runs. The zero value is usable and connects through
// storage.New.
type Runner struct {
	// NewRepository opens the destination; nil means storage.New.
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	Logger        *slog.Logger
	// Progress receives per-table load progress.
	Progress func(table string, done, total int)
}

// NewDefaultRunner returns a Runner that connects through the storage
// registry and logs to logger.
func NewDefaultRunner(logger *slog.Logger) *Runner {
	return &Runner{
		NewRepository: storage.New,
		Logger:        logger,
	}
}

// table is the per-table state of a run.
type table struct {
	name   string
	source string
	meta   parser.Meta
	rows   []schema.Row
	schema schema.Schema
	ddl    string
}

// Run decodes opts.Input and loads it as one table.
func (r *Runner) Run(ctx context.Context, opts Options) (*report.Run, error) {
	log := logging.OrDiscard(r.Logger)

	var res parser.Result
	err := r.stage(opts.job(), "parse", log, func() error {
		var err error
		res, err = parser.ParseFile(opts.Input, opts.Parse)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("decoded", "path", opts.Input, "format", res.Meta.Format,
		"encoding", res.Meta.Encoding, "rows", res.Meta.RowCount)

	in := FromParsed(res)
	in.Name = opts.Table
	return r.LoadRows(ctx, in, opts)
}

// LoadRows loads already decoded rows as one table. The returned report is
// non-nil whenever the run got past input checks, including on load errors.
func (r *Runner) LoadRows(ctx context.Context, in Input, opts Options) (*report.Run, error) {
	start := time.Now()
	job := opts.job()
	runID := report.NewRunID()
	log := logging.OrDiscard(r.Logger).With("run", runID)

	if len(in.Rows) == 0 {
		return nil, ErrNoRows
	}
	d, err := ddl.ForKind(opts.Storage.Kind)
	if err != nil {
		return nil, err
	}
	tcfg, err := transformer.LoadConfig(opts.Transform)
	if err != nil {
		return nil, err
	}

	name := schema.DeriveTableName(in.Path, in.Name)
	t := r.prepare(job, in, tcfg, name, log)
	log = log.With("table", t.name)

	rep := &report.Run{
		RunID:        runID,
		Table:        t.name,
		SourceFormat: in.Meta.Format,
		Encoding:     in.Meta.Encoding,
		Delimiter:    in.Meta.Delimiter,
		RowCount:     len(t.rows),
		PrimaryKeys:  t.schema.PrimaryKeys,
		DryRun:       opts.offline(),
	}
	finish := func(err error) (*report.Run, error) {
		rep.ExecutionMs = time.Since(start).Milliseconds()
		rep.ReportPath = opts.ReportOut
		if werr := report.WriteJSON(opts.ReportOut, rep); werr != nil {
			return rep, errors.Join(err, werr)
		}
		return rep, err
	}

	if opts.Validate {
		issues := validate.Check(t.rows, t.schema, validate.Options{Duplicates: true, Values: true, Table: t.name})
		rep.ValidationIssues = len(issues)
		path, err := r.gate(job, opts, issues, log)
		rep.ValidationPath = path
		if err != nil {
			return finish(err)
		}
	}

	repo, err := r.open(ctx, opts)
	if err != nil {
		return finish(err)
	}
	if repo != nil {
		defer repo.Close()
		d = repo.Dialect()
	}

	var aligned []*transformer.Row
	err = r.stage(job, "ddl", log, func() error {
		t.ddl = ddl.CreateTable(d, t.name, t.schema)
		if err := ddl.WriteFile(opts.DDLOut, t.ddl); err != nil {
			return err
		}
		rep.DDLPath = opts.DDLOut

		if p := opts.proceduresPath(t.name); p != "" {
			if err := writeProcedures(d, p, t, log); err != nil {
				return err
			}
			rep.ProceduresPath = p
		}

		aligned = transformer.Align(t.rows, t.schema)
		if p := opts.insertPath(t.name); p != "" {
			if err := writeInserts(d, p, t, aligned, opts); err != nil {
				return err
			}
			rep.InsertScriptPath = p
		}
		return nil
	})
	defer transformer.FreeAll(aligned)
	if err != nil {
		return finish(err)
	}

	res, err := r.load(ctx, repo, opts, t, aligned, log)
	rep.Inserted = res.Inserted
	rep.Errors = len(res.Errors)
	rep.RowErrors = res.Errors
	return finish(err)
}

// prepare applies the transformation config and infers the schema.
func (r *Runner) prepare(job string, in Input, tcfg *transformer.Config, name string, log *slog.Logger) *table {
	t := &table{name: name, source: in.Path, meta: in.Meta, rows: in.Rows}
	header := in.Header

	if tcfg != nil {
		_ = r.stage(job, "transform", log, func() error {
			t.rows = tcfg.Apply(t.rows)
			header = tcfg.ApplyHeader(header)
			return nil
		})
	}
	_ = r.stage(job, "infer", log, func() error {
		t.schema = schema.Infer(t.rows, header)
		return nil
	})
	log.Debug("schema", "table", name, "columns", len(t.schema.Columns), "primary_keys", t.schema.PrimaryKeys)
	return t
}

// gate writes the validation report when issues exist and enforces the
// fail-fast policy. It returns the report path, if one was written.
func (r *Runner) gate(job string, opts Options, issues []validate.Issue, log *slog.Logger) (string, error) {
	var path string
	err := r.stage(job, "validate", log, func() error {
		if len(issues) == 0 {
			return nil
		}
		vr := validate.NewReport(issues)
		path = opts.validationPath()
		if err := report.WriteJSON(path, vr); err != nil {
			return err
		}
		log.Warn("validation issues", "errors", vr.ErrorCount, "warnings", vr.WarningCount, "report", path)
		if vr.HasErrors() && opts.StopOnError {
			return fmt.Errorf("%w: %d error(s), see %s", ErrValidationFailed, vr.ErrorCount, path)
		}
		return nil
	})
	return path, err
}

// open connects to the destination unless the run is offline.
func (r *Runner) open(ctx context.Context, opts Options) (storage.Repository, error) {
	if opts.offline() {
		return nil, nil
	}
	newRepo := r.NewRepository
	if newRepo == nil {
		newRepo = storage.New
	}
	repo, err := newRepo(ctx, opts.Storage)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return repo, nil
}

func (r *Runner) load(ctx context.Context, repo storage.Repository, opts Options, t *table, rows []*transformer.Row, log *slog.Logger) (storage.Result, error) {
	job := opts.job()
	l := storage.Loader{
		Repo:            repo,
		ChunkSize:       opts.ChunkSize,
		Bulk:            opts.Bulk,
		ContinueOnError: !opts.StopOnError,
		DryRun:          opts.offline(),
		Logger:          log,
	}
	if r.Progress != nil {
		name := t.name
		l.Progress = func(done, total int) { r.Progress(name, done, total) }
	}

	cols := t.schema.InsertColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	var res storage.Result
	err := r.stage(job, "load", log, func() error {
		var err error
		res, err = l.Load(ctx, storage.Job{Table: t.name, DDL: t.ddl, Columns: names, Rows: rows})
		return err
	})

	metrics.RecordRow(job, "processed", res.Processed)
	metrics.RecordRow(job, "inserted", res.Inserted)
	metrics.RecordRow(job, "failed", len(res.Errors))
	metrics.RecordTable(job, err)
	return res, err
}

// stage times fn, records it as a metrics step and logs the outcome.
func (r *Runner) stage(job, name string, log *slog.Logger, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.RecordStep(job, name, err, d)
	if err != nil {
		log.Error("stage failed", "stage", name, "duration", d.Truncate(time.Millisecond), "err", err)
		return err
	}
	log.Debug("stage ok", "stage", name, "duration", d.Truncate(time.Millisecond))
	return nil
}

func writeProcedures(d ddl.Dialect, path string, t *table, log *slog.Logger) error {
	if d.Name != ddl.MySQL.Name {
		log.Warn("stored procedures are rendered in MySQL syntax", "dialect", d.Name)
	}
	procs := ddl.CRUDProcedures(t.name, t.schema)
	if err := ddl.WriteFile(path, ddl.ProcedureScript(procs)); err != nil {
		return err
	}
	log.Info("procedures written", "path", path, "count", len(procs))
	return nil
}

func writeInserts(d ddl.Dialect, path string, t *table, rows []*transformer.Row, opts Options) error {
	cols := t.schema.InsertColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	script := ddl.InsertScript(d, t.name, names, transformer.Values(rows), opts.Bulk, opts.ChunkSize)
	return ddl.WriteFile(path, script)
}
