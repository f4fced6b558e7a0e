package pipeline

import (
	"path/filepath"

	"tabload/internal/parser"
	"tabload/internal/storage"
)

// Options describe one run. The zero value loads with isolate-and-continue,
// single-row inserts and no artifacts.
type Options struct {
	// Input is a file, or in batch mode a directory (or a single file).
	Input string `json:"input"`
	// Table overrides the table name derived from Input (single mode only).
	Table string         `json:"table,omitempty"`
	Parse parser.Options `json:"parse"`
	// Transform is a transformer.Config JSON file; missing means none.
	Transform string `json:"transform,omitempty"`

	Storage storage.Config `json:"storage"`

	Bulk      bool `json:"bulk"`
	ChunkSize int  `json:"chunkSize,omitempty"`
	// StopOnError selects fail-fast: the first failing row rolls back the
	// table, and error-severity validation issues abort before loading.
	StopOnError bool `json:"stopOnError"`
	// DryRun renders every artifact (including the insert script) without
	// touching the destination.
	DryRun bool `json:"dryRun"`
	// SkipLoad is DryRun without the implied insert script.
	SkipLoad bool `json:"skipLoad"`

	Validate bool `json:"validate"`
	// Procedures renders MySQL CRUD stored procedures for each table.
	Procedures bool `json:"procedures"`

	// Artifact paths; empty skips the artifact unless noted.
	DDLOut string `json:"ddlOut,omitempty"`
	// InsertOut defaults to <OutputDir>/<table>_inserts.sql on dry runs.
	InsertOut     string `json:"insertOut,omitempty"`
	ReportOut     string `json:"reportOut,omitempty"`
	ValidationOut string `json:"validationOut,omitempty"`
	ProceduresOut string `json:"proceduresOut,omitempty"`
	// OutputDir receives default-named artifacts. Empty means the directory
	// of DDLOut, or "output".
	OutputDir string `json:"outputDir,omitempty"`

	// Batch mode.
	DetectFKs bool `json:"detectFks"`
	// SortDeps reorders tables so referenced tables load first. It implies
	// DetectFKs.
	SortDeps bool `json:"sortDeps"`
	// AbortBatchOnFailure stops the batch at the first table whose load
	// fails; otherwise the remaining tables still load.
	AbortBatchOnFailure bool `json:"abortBatchOnFailure"`
	ParseConcurrency    int  `json:"parseConcurrency,omitempty"`

	// Job labels metrics; defaults to "tabload".
	Job string `json:"job,omitempty"`
}

// DefaultOutputDir is used when neither OutputDir nor DDLOut is set.
const DefaultOutputDir = "output"

func (o Options) outputDir() string {
	switch {
	case o.OutputDir != "":
		return o.OutputDir
	case o.DDLOut != "":
		return filepath.Dir(o.DDLOut)
	}
	return DefaultOutputDir
}

func (o Options) job() string {
	if o.Job == "" {
		return "tabload"
	}
	return o.Job
}

// offline reports whether the run never connects for loading.
func (o Options) offline() bool { return o.DryRun || o.SkipLoad }

func (o Options) validationPath() string {
	if o.ValidationOut != "" {
		return o.ValidationOut
	}
	return filepath.Join(o.outputDir(), "validation_report.json")
}

func (o Options) insertPath(table string) string {
	if o.InsertOut != "" {
		return o.InsertOut
	}
	if o.DryRun {
		return filepath.Join(o.outputDir(), table+"_inserts.sql")
	}
	return ""
}

func (o Options) proceduresPath(table string) string {
	if !o.Procedures && o.ProceduresOut == "" {
		return ""
	}
	if o.ProceduresOut != "" {
		return o.ProceduresOut
	}
	return filepath.Join(o.outputDir(), table+"_procedures.sql")
}
