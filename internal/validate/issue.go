// Package validate inspects rows against an inferred schema before loading.
//
// It produces Issues and never fails: whether an error-severity Issue blocks
// a load is the caller's decision (see Report.HasErrors).
package validate

import (
	"fmt"
	"time"
)

// Severity of an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue types.
const (
	TypeDuplicate              = "duplicate"
	TypeInvalidDate            = "invalid_date"
	TypeDateOutOfRange         = "date_out_of_range"
	TypeUnparseableDate        = "unparseable_date"
	TypeInvalidNumber          = "invalid_number"
	TypeInvalidBoolean         = "invalid_boolean"
	TypeNegativeValue          = "negative_value"
	TypeIntOverflow            = "int_overflow"
	TypeStringTooLong          = "string_too_long"
	TypeMissingReferencedTable = "missing_referenced_table"
	TypeOrphanForeignKey       = "orphan_foreign_key"
)

// Issue is one validation finding. Index is the 0-based row ordinal and is
// nil for table-level findings.
type Issue struct {
	Type            string   `json:"type"`
	Severity        Severity `json:"severity"`
	Table           string   `json:"table,omitempty"`
	Column          string   `json:"column"`
	Index           *int     `json:"index,omitempty"`
	Value           any      `json:"value,omitempty"`
	Message         string   `json:"message"`
	FirstOccurrence *int     `json:"firstOccurrence,omitempty"`
}

// Error implements error so an Issue can travel as one.
func (i Issue) Error() string {
	if i.Index != nil {
		return fmt.Sprintf("%s %s at row %d: %s", i.Severity, i.Type, *i.Index, i.Message)
	}
	return fmt.Sprintf("%s %s: %s", i.Severity, i.Type, i.Message)
}

func ptr(i int) *int { return &i }

// Report summarizes issues for the validation artifact.
type Report struct {
	Timestamp    time.Time      `json:"timestamp"`
	TotalIssues  int            `json:"totalIssues"`
	ErrorCount   int            `json:"errorCount"`
	WarningCount int            `json:"warningCount"`
	IssuesByType map[string]int `json:"issuesByType"`
	Issues       []Issue        `json:"issues"`
}

// NewReport counts issues by severity and type.
func NewReport(issues []Issue) Report {
	r := Report{
		Timestamp:    time.Now().UTC(),
		TotalIssues:  len(issues),
		IssuesByType: make(map[string]int),
		Issues:       issues,
	}
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	for _, is := range issues {
		switch is.Severity {
		case SeverityError:
			r.ErrorCount++
		case SeverityWarning:
			r.WarningCount++
		}
		r.IssuesByType[is.Type]++
	}
	return r
}

// HasErrors reports whether any issue has error severity.
func (r Report) HasErrors() bool { return r.ErrorCount > 0 }
