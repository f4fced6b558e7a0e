package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"tabload/internal/ddl"
	"tabload/internal/transformer"
)

// ErrLoadAborted wraps the driver error that rolled back a fail-fast load.
var ErrLoadAborted = errors.New("load aborted")

const savepointName = "tabload_chunk"

// Job is one table to load.
type Job struct {
	Table string
	// DDL runs first. It is part of the load transaction when the dialect's
	// DDL is transactional; otherwise it runs on its own before Begin and a
	// rollback leaves the table in place. Empty skips it.
	DDL string
	// Columns are the insert column names; every Row.V is aligned with them.
	Columns []string
	Rows    []*transformer.Row
}

// RowError records one row that could not be inserted.
type RowError struct {
	// Index is the 0-based ordinal of the row in the input.
	Index   int    `json:"index"`
	Message string `json:"message"`
	Row     []any  `json:"row"`
}

// Result is the accounting of one Load.
type Result struct {
	Processed int        `json:"processed"`
	Inserted  int        `json:"inserted"`
	Errors    []RowError `json:"errors"`
}

// ProgressFunc is called after every successful chunk or row with the
// running count of processed rows and the total.
type ProgressFunc func(done, total int)

// Loader inserts rows into one table per transaction.
//
// Policies:
//   - Fail-fast (default): the first failing statement rolls back the whole
//     table, Result.Inserted is 0 and the error wraps ErrLoadAborted.
//   - ContinueOnError: a failed chunk is retried row by row; failing rows are
//     collected as RowErrors and the rest commit.
//   - DryRun: no connection is used; every row counts as processed.
//
// Under ContinueOnError each chunk runs under a savepoint so a failed
// statement leaves the transaction usable on every backend.
type Loader struct {
	Repo Repository
	// ChunkSize is rows per multi-row INSERT when Bulk is set; <=0 means
	// ddl.DefaultChunkSize. It shrinks to respect the dialect's MaxParams.
	ChunkSize       int
	Bulk            bool
	ContinueOnError bool
	DryRun          bool
	Progress        ProgressFunc
	Logger          *slog.Logger
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

func (l *Loader) chunkSize(d ddl.Dialect, ncols int) int {
	n := l.ChunkSize
	if n <= 0 {
		n = ddl.DefaultChunkSize
	}
	if !l.Bulk {
		n = 1
	}
	if ncols > 0 && d.MaxParams > 0 && n*ncols > d.MaxParams {
		n = max(1, d.MaxParams/ncols)
	}
	return n
}

// Load runs job in a single transaction.
func (l *Loader) Load(ctx context.Context, job Job) (Result, error) {
	log := l.logger().With("table", job.Table)
	total := len(job.Rows)

	if l.DryRun {
		if l.Progress != nil {
			l.Progress(total, total)
		}
		log.Info("dry run", "stage", "load", "rows", total)
		return Result{Processed: total}, nil
	}
	if l.Repo == nil {
		return Result{}, fmt.Errorf("storage: loader has no repository")
	}

	start := time.Now()
	d := l.Repo.Dialect()
	if job.DDL != "" && !d.TransactionalDDL {
		if err := l.Repo.Exec(ctx, job.DDL); err != nil {
			log.Error("load aborted", "stage", "load", "err", err)
			return Result{}, fmt.Errorf("%w: table %s: create table: %w", ErrLoadAborted, job.Table, err)
		}
	}
	tx, err := l.Repo.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin %s: %w", job.Table, err)
	}

	abort := func(res Result, cause error) (Result, error) {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error("rollback failed", "err", rbErr)
		}
		res.Inserted = 0
		log.Error("load aborted", "stage", "load", "processed", res.Processed, "err", cause)
		return res, fmt.Errorf("%w: table %s: %w", ErrLoadAborted, job.Table, cause)
	}

	if job.DDL != "" && d.TransactionalDDL {
		if err := tx.Exec(ctx, job.DDL); err != nil {
			return abort(Result{}, fmt.Errorf("create table: %w", err))
		}
	}

	var res Result
	size := l.chunkSize(d, len(job.Columns))
	for chunk := range slices.Chunk(job.Rows, size) {
		if err := ctx.Err(); err != nil {
			return abort(res, err)
		}

		err := l.insert(ctx, tx, d, job, chunk)
		if err == nil {
			res.Processed += len(chunk)
			res.Inserted += len(chunk)
			l.progress(res.Processed, total)
			continue
		}
		if !l.ContinueOnError {
			res.Processed += len(chunk)
			return abort(res, fmt.Errorf("rows %d-%d: %w", chunk[0].Line, chunk[len(chunk)-1].Line, err))
		}
		if errors.Is(err, errSavepoint) {
			return abort(res, err)
		}

		if len(chunk) > 1 {
			log.Warn("chunk failed, isolating rows", "first", chunk[0].Line, "rows", len(chunk), "err", err)
		}
		for _, r := range chunk {
			res.Processed++
			rowErr := err
			if len(chunk) > 1 {
				rowErr = l.insert(ctx, tx, d, job, []*transformer.Row{r})
			}
			if rowErr == nil {
				res.Inserted++
				l.progress(res.Processed, total)
				continue
			}
			if errors.Is(rowErr, errSavepoint) {
				return abort(res, rowErr)
			}
			res.Errors = append(res.Errors, RowError{
				Index:   r.Line,
				Message: rowErr.Error(),
				Row:     slices.Clone(r.V),
			})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		res.Inserted = 0
		return res, fmt.Errorf("%w: table %s: commit: %w", ErrLoadAborted, job.Table, err)
	}
	log.Info("loaded", "stage", "load",
		"processed", res.Processed, "inserted", res.Inserted, "failed", len(res.Errors),
		"duration", time.Since(start).Truncate(time.Millisecond))
	return res, nil
}

var errSavepoint = errors.New("savepoint")

// insert runs one INSERT for rows. Under ContinueOnError the statement is
// wrapped in a savepoint and a failure rolls back to it.
func (l *Loader) insert(ctx context.Context, tx Tx, d ddl.Dialect, job Job, rows []*transformer.Row) error {
	stmt := ddl.InsertStatement(d, job.Table, job.Columns, len(rows))
	args := make([]any, 0, len(rows)*len(job.Columns))
	for _, r := range rows {
		args = append(args, r.V...)
	}

	if !l.ContinueOnError {
		return tx.Exec(ctx, stmt, args...)
	}

	begin, rollback, release := d.Savepoint(savepointName)
	if err := tx.Exec(ctx, begin); err != nil {
		return fmt.Errorf("%w: %w", errSavepoint, err)
	}
	if err := tx.Exec(ctx, stmt, args...); err != nil {
		if rbErr := tx.Exec(ctx, rollback); rbErr != nil {
			return fmt.Errorf("%w: rollback to savepoint: %w", errSavepoint, rbErr)
		}
		// ROLLBACK TO keeps the savepoint open.
		if release != "" {
			if relErr := tx.Exec(ctx, release); relErr != nil {
				return fmt.Errorf("%w: release: %w", errSavepoint, relErr)
			}
		}
		return err
	}
	if release != "" {
		if err := tx.Exec(ctx, release); err != nil {
			return fmt.Errorf("%w: release: %w", errSavepoint, err)
		}
	}
	return nil
}

func (l *Loader) progress(done, total int) {
	if l.Progress != nil {
		l.Progress(done, total)
	}
}
