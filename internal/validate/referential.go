package validate

import (
	"context"
	"fmt"
	"strconv"

	"tabload/internal/deps"
	"tabload/internal/schema"
)

// TableData is one table of a batch as seen by the referential check.
type TableData struct {
	Name   string
	Rows   []schema.Row
	Schema schema.Schema
}

// ValueSource reads the distinct values of a column from the destination.
// It is consulted for referenced tables that are not part of the batch.
type ValueSource interface {
	ColumnValues(ctx context.Context, table, column string) ([]any, error)
}

// Referential checks that every foreign key value exists in the referenced
// column. Referenced values come from the batch rows when the table is in
// tables, otherwise from src. A referenced table found in neither place is a
// missing_referenced_table error.
//
// A referenced identity column has no values in the batch rows. The values
// already stored in the destination are read through src when it is set,
// and the batch rows are assumed to take the next n identities after the
// largest stored one (1..n for an empty or missing table).
func Referential(ctx context.Context, tables []TableData, fks []deps.ForeignKey, src ValueSource) []Issue {
	byName := make(map[string]TableData, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	var issues []Issue
	cache := make(map[string]map[string]bool)
	for _, fk := range fks {
		child, ok := byName[fk.Table]
		if !ok {
			continue
		}
		key := fk.ReferencesTable + "." + fk.ReferencesColumn
		valid, ok := cache[key]
		if !ok {
			var err error
			valid, err = referencedValues(ctx, byName, fk, src)
			if err != nil {
				issues = append(issues, Issue{
					Type:     TypeMissingReferencedTable,
					Severity: SeverityError,
					Table:    fk.Table,
					Column:   fk.Column,
					Message:  fmt.Sprintf("referenced table %q not found: %v", fk.ReferencesTable, err),
				})
				continue
			}
			cache[key] = valid
		}

		col, ok := child.Schema.Column(fk.Column)
		if !ok {
			continue
		}
		for i, r := range child.Rows {
			v := r[col.RawName]
			if schema.IsNullish(v) {
				continue
			}
			if valid[schema.Classify(v).Key()] {
				continue
			}
			issues = append(issues, Issue{
				Type:     TypeOrphanForeignKey,
				Severity: SeverityError,
				Table:    fk.Table,
				Column:   fk.Column,
				Index:    ptr(i),
				Value:    v,
				Message: fmt.Sprintf("foreign key %s.%s references a missing value in %s.%s: %v",
					fk.Table, fk.Column, fk.ReferencesTable, fk.ReferencesColumn, v),
			})
		}
	}
	return issues
}

func referencedValues(ctx context.Context, byName map[string]TableData, fk deps.ForeignKey, src ValueSource) (map[string]bool, error) {
	valid := make(map[string]bool)
	if parent, ok := byName[fk.ReferencesTable]; ok {
		col, ok := parent.Schema.Column(fk.ReferencesColumn)
		if !ok {
			return nil, fmt.Errorf("column %q missing", fk.ReferencesColumn)
		}
		if col.AutoIncrement {
			return identityValues(ctx, fk, len(parent.Rows), src), nil
		}
		for _, r := range parent.Rows {
			if v := r[col.RawName]; !schema.IsNullish(v) {
				valid[schema.Classify(v).Key()] = true
			}
		}
		return valid, nil
	}

	if src == nil {
		return nil, fmt.Errorf("not part of the batch")
	}
	vals, err := src.ColumnValues(ctx, fk.ReferencesTable, fk.ReferencesColumn)
	if err != nil {
		return nil, err
	}
	for _, v := range vals {
		if !schema.IsNullish(v) {
			valid[schema.Classify(v).Key()] = true
		}
	}
	return valid, nil
}

// identityValues lists the identities a referenced table will hold after n
// rows are appended to whatever the destination already stores.
func identityValues(ctx context.Context, fk deps.ForeignKey, n int, src ValueSource) map[string]bool {
	valid := make(map[string]bool, n)
	var last int64
	if src != nil {
		// The table may not exist yet; that is the empty case.
		stored, err := src.ColumnValues(ctx, fk.ReferencesTable, fk.ReferencesColumn)
		if err == nil {
			for _, v := range stored {
				cv := schema.Classify(v)
				if cv.Kind == schema.KindNull {
					continue
				}
				valid[cv.Key()] = true
				switch cv.Kind {
				case schema.KindInteger:
					last = max(last, cv.Int)
				case schema.KindBoolean:
					if cv.Bool {
						last = max(last, 1)
					}
				}
			}
		}
	}
	for i := int64(1); i <= int64(n); i++ {
		valid[strconv.FormatInt(last+i, 10)] = true
	}
	return valid
}
