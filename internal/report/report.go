// Package report defines the JSON artifacts a tabload run writes: the
// single-table run report and the batch report. Validation reports are
// validate.Report values written through WriteJSON.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"tabload/internal/deps"
	"tabload/internal/storage"
)

// NewRunID returns a random identifier stamped on every report of a run.
func NewRunID() string {
	return uuid.NewString()
}

// Run is the single-table report.
type Run struct {
	RunID            string   `json:"runId"`
	Table            string   `json:"table"`
	SourceFormat     string   `json:"sourceFormat,omitempty"`
	Encoding         string   `json:"encoding,omitempty"`
	Delimiter        string   `json:"delimiter,omitempty"`
	RowCount         int      `json:"rowCount"`
	Inserted         int      `json:"inserted"`
	Errors           int      `json:"errors"`
	DDLPath          string   `json:"ddlPath,omitempty"`
	InsertScriptPath string   `json:"insertScriptPath,omitempty"`
	ProceduresPath   string   `json:"proceduresPath,omitempty"`
	ReportPath       string   `json:"reportPath,omitempty"`
	ValidationPath   string   `json:"validationReportPath,omitempty"`
	ExecutionMs      int64    `json:"executionMs"`
	PrimaryKeys      []string `json:"primaryKeys"`
	ValidationIssues int      `json:"validationIssues"`
	DryRun           bool     `json:"dryRun,omitempty"`

	// RowErrors are the rows the loader skipped under ContinueOnError.
	RowErrors []storage.RowError `json:"rowErrors,omitempty"`
}

// Table is one entry of a batch report.
type Table struct {
	Table    string `json:"table"`
	Source   string `json:"source,omitempty"`
	Rows     int    `json:"rows"`
	Inserted int    `json:"inserted"`
	Errors   int    `json:"errors"`
	DDLPath  string `json:"ddlPath,omitempty"`
	// Failure is set when the table's load was aborted.
	Failure   string             `json:"failure,omitempty"`
	RowErrors []storage.RowError `json:"rowErrors,omitempty"`
}

// ModeBatch is Batch.Mode.
const ModeBatch = "batch"

// Batch aggregates a multi-table run.
type Batch struct {
	RunID            string  `json:"runId"`
	Mode             string  `json:"mode"`
	TotalTables      int     `json:"totalTables"`
	TotalRows        int     `json:"totalRows"`
	TotalInserted    int     `json:"totalInserted"`
	TotalErrors      int     `json:"totalErrors"`
	Tables           []Table `json:"tables"`
	ForeignKeys      int     `json:"foreignKeys"`
	ValidationIssues int     `json:"validationIssues"`
	ExecutionMs      int64   `json:"executionMs"`

	LoadOrder       []string          `json:"loadOrder"`
	Cyclic          bool              `json:"cyclicDependencies,omitempty"`
	ForeignKeyEdges []deps.ForeignKey `json:"foreignKeyEdges,omitempty"`
	ForeignKeysPath string            `json:"foreignKeysPath,omitempty"`
	ValidationPath  string            `json:"validationReportPath,omitempty"`
	ReportPath      string            `json:"reportPath,omitempty"`
	FailedTables    int               `json:"failedTables"`
	DryRun          bool              `json:"dryRun,omitempty"`
}

// NewBatch starts an empty batch report.
func NewBatch(runID string) *Batch {
	return &Batch{RunID: runID, Mode: ModeBatch, Tables: []Table{}, LoadOrder: []string{}}
}

// Add appends t and updates the totals.
func (b *Batch) Add(t Table) {
	b.Tables = append(b.Tables, t)
	b.TotalTables++
	b.TotalRows += t.Rows
	b.TotalInserted += t.Inserted
	b.TotalErrors += t.Errors
	if t.Failure != "" {
		b.FailedTables++
	}
}

// WriteJSON writes v as indented JSON to path, creating parent directories.
// An empty path is a no-op.
func WriteJSON(path string, v any) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
