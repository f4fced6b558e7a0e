// Command tabload loads a CSV, JSON, XML or HTML table file (or a directory
// of them with --batch) into a relational database, inferring the schema on
// the way. The run report is printed to stdout as JSON; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"tabload/internal/config"
	"tabload/internal/logging"
	"tabload/internal/metrics"
	"tabload/internal/metrics/datadog"
	"tabload/internal/metrics/prompush"
	"tabload/internal/parser"
	"tabload/internal/pipeline"

	// register every storage backend; --kind picks one at runtime.
	_ "tabload/internal/storage/all"
)

type cliFlags struct {
	input     string
	format    string
	table     string
	encoding  string
	delimiter string
	selector  string
	transform string

	kind     string
	host     string
	port     int
	user     string
	password string
	database string
	dsn      string

	bulk      bool
	chunkSize int

	ddlOut        string
	insertOut     string
	reportOut     string
	validationOut string
	proceduresOut string
	outputDir     string
	procedures    bool

	dryRun          bool
	skipLoad        bool
	continueOnError bool
	stopOnError     bool
	validate        bool

	batch      bool
	detectFKs  bool
	sortDeps   bool
	abortBatch bool

	metricsBackend string
	logLevel       string
	envFile        string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &cliFlags{}
	cmd := &cobra.Command{
		Use:   "tabload",
		Short: "Load tabular files into a SQL database with schema inference",
		Long: `tabload reads CSV, JSON, XML or HTML table input, infers column types and
primary keys, renders CREATE TABLE and INSERT scripts, and loads the rows into
MySQL, PostgreSQL, SQL Server or SQLite in one transaction per table.

Connection defaults come from the environment (TABLOAD_DB_*, DB_*, .env);
flags override them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "input file, or directory with --batch")
	fl.StringVarP(&f.format, "format", "f", "", "input format: csv|json|xml|html (detected when empty)")
	fl.StringVarP(&f.table, "table", "t", "", "destination table name (sanitized; single-file mode)")
	fl.StringVar(&f.encoding, "encoding", "", "force the input text encoding (utf-8, latin1, windows-1252)")
	fl.StringVar(&f.delimiter, "delimiter", "", "force the CSV delimiter (detected when empty)")
	fl.StringVar(&f.selector, "selector", "", "CSS selector of the HTML table to read")
	fl.StringVar(&f.transform, "transform", "", "transformation config JSON applied before inference")

	fl.StringVar(&f.kind, "kind", "", "destination kind: mysql|postgres|mssql|sqlite (env TABLOAD_DB_KIND)")
	fl.StringVarP(&f.host, "host", "H", "", "database host (env TABLOAD_DB_HOST)")
	fl.IntVarP(&f.port, "port", "P", 0, "database port; 0 uses the backend default (env TABLOAD_DB_PORT)")
	fl.StringVarP(&f.user, "user", "u", "", "database user (env TABLOAD_DB_USER)")
	fl.StringVarP(&f.password, "password", "p", "", "database password (env TABLOAD_DB_PASSWORD)")
	fl.StringVarP(&f.database, "database", "d", "", "database name, or the SQLite file (env TABLOAD_DB_NAME)")
	fl.StringVar(&f.dsn, "dsn", "", "driver DSN; overrides the other connection flags (env TABLOAD_DSN)")

	fl.BoolVar(&f.bulk, "bulk", true, "insert in multi-row chunks")
	fl.IntVar(&f.chunkSize, "chunk-size", 0, "rows per bulk INSERT (env TABLOAD_CHUNK_SIZE)")

	fl.StringVar(&f.ddlOut, "ddl-out", filepath.Join("output", "schema.sql"), "where to write the CREATE TABLE script")
	fl.StringVar(&f.insertOut, "insert-out", "", "where to write the INSERT script (default <output-dir>/<table>_inserts.sql on --dry-run)")
	fl.StringVar(&f.reportOut, "report-out", filepath.Join("output", "report.json"), "where to write the run report")
	fl.StringVar(&f.validationOut, "validation-out", "", "where to write the validation report (default <output-dir>/validation_report.json)")
	fl.StringVar(&f.proceduresOut, "procedures-out", "", "write MySQL CRUD stored procedures to this path")
	fl.BoolVar(&f.procedures, "procedures", false, "write MySQL CRUD stored procedures to <output-dir>/<table>_procedures.sql")
	fl.StringVar(&f.outputDir, "output-dir", "", "directory for default-named artifacts (env TABLOAD_OUTPUT_DIR)")

	fl.BoolVar(&f.dryRun, "dry-run", false, "render DDL and INSERT scripts without connecting")
	fl.BoolVar(&f.skipLoad, "skip-load", false, "render DDL only, without connecting")
	fl.BoolVar(&f.continueOnError, "continue-on-error", true, "skip failing rows and load the rest")
	fl.BoolVar(&f.stopOnError, "stop-on-error", false, "roll back the table on the first failing row; wins over --continue-on-error")
	fl.BoolVar(&f.validate, "validate", false, "check duplicates, values and foreign keys before loading")

	fl.BoolVar(&f.batch, "batch", false, "load every table file in --input as its own table")
	fl.BoolVar(&f.detectFKs, "detect-fks", false, "detect foreign keys between batch tables from column names")
	fl.BoolVar(&f.sortDeps, "sort-deps", false, "load referenced tables first (implies --detect-fks)")
	fl.BoolVar(&f.abortBatch, "abort-batch-on-failure", false, "stop the batch at the first table that fails to load")

	fl.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: none|datadog|pushgateway (env METRICS_BACKEND)")
	fl.StringVar(&f.logLevel, "log-level", "", "debug|info|warn|error (env LOG_LEVEL)")
	fl.StringVar(&f.envFile, "env-file", ".env", "dotenv file read before the environment; missing is fine")

	_ = cmd.MarkFlagRequired("input")

	cmd.AddCommand(newProbeCmd(stdout))
	return cmd
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, f *cliFlags, stdout, stderr io.Writer) error {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, f, cfg)

	offline := f.dryRun || f.skipLoad
	issues := cfg.Validate(offline)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errors.New("configuration is invalid")
	}

	log := logging.Setup(stderr, cfg.Logging.Level, cfg.Logging.Format)
	log.Debug("config", "config", cfg.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	closeMetrics := setupMetrics(ctx, cfg, log)
	defer closeMetrics()

	opts, err := buildOptions(cmd, f, cfg)
	if err != nil {
		return err
	}

	r := pipeline.NewDefaultRunner(log)
	r.Progress = func(table string, done, total int) {
		log.Debug("progress", "table", table, "done", done, "total", total)
	}

	var out any
	if f.batch {
		rep, rerr := r.RunBatch(ctx, opts)
		if rep != nil {
			out = rep
		}
		err = rerr
	} else {
		rep, rerr := r.Run(ctx, opts)
		if rep != nil {
			out = rep
		}
		err = rerr
	}

	if out != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if eerr := enc.Encode(out); eerr != nil {
			return errors.Join(err, eerr)
		}
	}
	return err
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, f *cliFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	set := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	set("kind", &cfg.Database.Kind, f.kind)
	set("host", &cfg.Database.Host, f.host)
	set("user", &cfg.Database.User, f.user)
	set("password", &cfg.Database.Password, f.password)
	set("database", &cfg.Database.Name, f.database)
	set("dsn", &cfg.Database.DSN, f.dsn)
	set("metrics-backend", &cfg.Metrics.Backend, f.metricsBackend)
	set("log-level", &cfg.Logging.Level, f.logLevel)
	set("output-dir", &cfg.Load.OutputDir, f.outputDir)
	if changed("port") {
		cfg.Database.Port = f.port
	}
	if changed("chunk-size") {
		cfg.Load.ChunkSize = f.chunkSize
	}
}

func buildOptions(cmd *cobra.Command, f *cliFlags, cfg *config.Config) (pipeline.Options, error) {
	var delim rune
	if f.delimiter != "" {
		if f.delimiter == `\t` {
			f.delimiter = "\t"
		}
		if utf8.RuneCountInString(f.delimiter) != 1 {
			return pipeline.Options{}, fmt.Errorf("--delimiter must be a single character, got %q", f.delimiter)
		}
		delim, _ = utf8.DecodeRuneInString(f.delimiter)
	}

	opts := pipeline.Options{
		Input:     f.input,
		Table:     f.table,
		Transform: f.transform,
		Parse: parser.Options{
			Format:    f.format,
			Encoding:  f.encoding,
			Delimiter: delim,
			Selector:  f.selector,
		},
		Storage:             cfg.Storage(),
		Bulk:                f.bulk,
		ChunkSize:           cfg.Load.ChunkSize,
		StopOnError:         f.stopOnError || !f.continueOnError,
		DryRun:              f.dryRun,
		SkipLoad:            f.skipLoad,
		Validate:            f.validate,
		Procedures:          f.procedures,
		DDLOut:              f.ddlOut,
		InsertOut:           f.insertOut,
		ReportOut:           f.reportOut,
		ValidationOut:       f.validationOut,
		ProceduresOut:       f.proceduresOut,
		OutputDir:           cfg.Load.OutputDir,
		DetectFKs:           f.detectFKs,
		SortDeps:            f.sortDeps,
		AbortBatchOnFailure: f.abortBatch,
		ParseConcurrency:    cfg.Load.ParseConcurrency,
		Job:                 cfg.Metrics.Job,
	}
	// Batch artifacts are per table; only an explicit --report-out names the
	// batch report.
	if f.batch && !cmd.Flags().Changed("report-out") {
		opts.ReportOut = ""
	}
	return opts, nil
}

// setupMetrics installs the configured backend and returns its shutdown.
// Failures leave the no-op backend in place.
func setupMetrics(ctx context.Context, cfg *config.Config, log *slog.Logger) func() {
	nop := func() {}
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(cfg.Metrics.Job, cfg.Metrics.PushgatewayURL)
		if err != nil {
			log.Warn("metrics: pushgateway init failed; using nop", "err", err)
			return nop
		}
		log.Info("metrics", "backend", "pushgateway", "url", cfg.Metrics.PushgatewayURL, "job", cfg.Metrics.Job)
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn("metrics: flush failed", "err", err)
			}
			metrics.SetBackend(nil)
		}

	case "datadog":
		b, err := datadog.NewBackend(context.WithoutCancel(ctx), datadog.Options{
			JobName:    cfg.Metrics.Job,
			Tags:       cfg.Metrics.Tags,
			FlushEvery: cfg.Metrics.FlushEvery,
		})
		if err != nil {
			log.Warn("metrics: datadog init failed; using nop", "err", err)
			return nop
		}
		log.Info("metrics", "backend", "datadog", "job", cfg.Metrics.Job, "tags", cfg.Metrics.Tags)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				log.Warn("metrics: datadog close failed", "err", err)
			}
			metrics.SetBackend(nil)
		}
	}
	log.Debug("metrics disabled", "backend", cfg.Metrics.Backend)
	return nop
}
