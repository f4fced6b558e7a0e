package validate

import (
	"context"
	"errors"
	"slices"
	"testing"

	"tabload/internal/deps"
	"tabload/internal/schema"
)

func issuesOfType(issues []Issue, typ string) []Issue {
	var out []Issue
	for _, is := range issues {
		if is.Type == typ {
			out = append(out, is)
		}
	}
	return out
}

func TestDuplicates(t *testing.T) {
	t.Parallel()

	s := schema.Schema{Columns: []schema.Column{
		{Name: "code", RawName: "Code", Unique: true, PrimaryKey: true, SQLType: "VARCHAR(5)"},
		{Name: "note", RawName: "Note", SQLType: "VARCHAR(5)"},
	}}
	rows := []schema.Row{
		{"Code": "A", "Note": "x"},
		{"Code": "B", "Note": "x"},
		{"Code": "", "Note": "x"},
		{"Code": "A"},
		{"Code": ""},
	}
	got := Duplicates(rows, s)
	if len(got) != 1 {
		t.Fatalf("Duplicates = %+v, want one issue", got)
	}
	d := got[0]
	if d.Severity != SeverityError || *d.Index != 3 || *d.FirstOccurrence != 0 || d.Column != "code" {
		t.Fatalf("duplicate issue = %+v", d)
	}
}

func TestValues(t *testing.T) {
	t.Parallel()

	s := schema.Schema{Columns: []schema.Column{
		{Name: "status", RawName: "status", SQLType: schema.SQLBoolean, Kind: schema.KindBoolean},
		{Name: "born", RawName: "born", SQLType: schema.SQLDate},
		{Name: "unit_price", RawName: "unit_price", SQLType: "DECIMAL(8,2)"},
		{Name: "n", RawName: "n", SQLType: schema.SQLInt},
		{Name: "code", RawName: "code", SQLType: "VARCHAR(3)"},
	}}

	tests := []struct {
		name string
		row  schema.Row
		want map[string]Severity
	}{
		{"clean", schema.Row{"status": "SI", "born": "2000-01-01", "unit_price": "1,50", "n": "7", "code": "abc"}, nil},
		{"boolean token", schema.Row{"status": "sí"}, nil},
		{"invalid boolean", schema.Row{"status": "maybe"}, map[string]Severity{TypeInvalidBoolean: SeverityError}},
		{"february 30", schema.Row{"born": "2021-02-30"}, map[string]Severity{TypeInvalidDate: SeverityError}},
		{"before 1900", schema.Row{"born": "1899-12-31"}, map[string]Severity{TypeDateOutOfRange: SeverityWarning}},
		{"unparseable date", schema.Row{"born": "yesterday"}, map[string]Severity{TypeUnparseableDate: SeverityError}},
		{"bad number", schema.Row{"unit_price": "cheap"}, map[string]Severity{TypeInvalidNumber: SeverityError}},
		{"negative price", schema.Row{"unit_price": "-3"}, map[string]Severity{TypeNegativeValue: SeverityWarning}},
		{"int overflow", schema.Row{"n": "3000000000"}, map[string]Severity{TypeIntOverflow: SeverityError}},
		{"negative n is fine", schema.Row{"n": "-3"}, nil},
		{"too long", schema.Row{"code": "abcd"}, map[string]Severity{TypeStringTooLong: SeverityError}},
		{"blank skipped", schema.Row{"born": "", "n": "null"}, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Values([]schema.Row{tt.row}, s)
			if len(got) != len(tt.want) {
				t.Fatalf("Values = %+v, want %v", got, tt.want)
			}
			for _, is := range got {
				sev, ok := tt.want[is.Type]
				if !ok || sev != is.Severity {
					t.Fatalf("unexpected issue %+v, want %v", is, tt.want)
				}
			}
		})
	}
}

func TestCheckAndReport(t *testing.T) {
	t.Parallel()

	s := schema.Schema{Columns: []schema.Column{
		{Name: "id", RawName: "id", SQLType: schema.SQLInt, Unique: true, PrimaryKey: true},
		{Name: "born", RawName: "born", SQLType: schema.SQLDate},
	}}
	rows := []schema.Row{{"id": "1", "born": "1850-01-01"}, {"id": "1", "born": "2001-01-01"}}

	issues := Check(rows, s, Options{Duplicates: true, Values: true, Table: "people"})
	rep := NewReport(issues)
	if rep.TotalIssues != 2 || rep.ErrorCount != 1 || rep.WarningCount != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if !rep.HasErrors() {
		t.Fatalf("HasErrors = false")
	}
	if rep.IssuesByType[TypeDuplicate] != 1 || rep.IssuesByType[TypeDateOutOfRange] != 1 {
		t.Fatalf("IssuesByType = %v", rep.IssuesByType)
	}
	for _, is := range issues {
		if is.Table != "people" {
			t.Fatalf("table not stamped: %+v", is)
		}
	}

	if empty := NewReport(nil); empty.HasErrors() || empty.Issues == nil {
		t.Fatalf("empty report = %+v", empty)
	}
}

type fakeSource struct {
	values map[string][]any
}

func (f fakeSource) ColumnValues(_ context.Context, table, column string) ([]any, error) {
	v, ok := f.values[table+"."+column]
	if !ok {
		return nil, errors.New("no such table")
	}
	return v, nil
}

func TestReferential(t *testing.T) {
	t.Parallel()

	customers := TableData{
		Name: "customers",
		Rows: []schema.Row{{"ID": "1"}, {"ID": "2"}},
		Schema: schema.Schema{Columns: []schema.Column{
			{Name: "id", RawName: "ID", SQLType: schema.SQLInt, PrimaryKey: true, Unique: true},
		}},
	}
	orders := TableData{
		Name: "orders",
		Rows: []schema.Row{{"cust": "1"}, {"cust": 2.0}, {"cust": "9"}, {"cust": ""}, {"region": "7"}},
		Schema: schema.Schema{Columns: []schema.Column{
			{Name: "customer_id", RawName: "cust", SQLType: schema.SQLInt},
			{Name: "region_id", RawName: "region", SQLType: schema.SQLInt},
		}},
	}
	fks := []deps.ForeignKey{
		{Table: "orders", Column: "customer_id", ReferencesTable: "customers", ReferencesColumn: "id"},
		{Table: "orders", Column: "region_id", ReferencesTable: "regions", ReferencesColumn: "id"},
	}

	issues := Referential(context.Background(), []TableData{orders, customers}, fks, nil)
	orphans := issuesOfType(issues, TypeOrphanForeignKey)
	if len(orphans) != 1 || *orphans[0].Index != 2 {
		t.Fatalf("orphans = %+v", orphans)
	}
	if missing := issuesOfType(issues, TypeMissingReferencedTable); len(missing) != 1 {
		t.Fatalf("missing table issues = %+v", missing)
	}

	src := fakeSource{values: map[string][]any{"regions.id": {int64(7)}}}
	issues = Referential(context.Background(), []TableData{orders, customers}, fks, src)
	if got := len(issuesOfType(issues, TypeMissingReferencedTable)); got != 0 {
		t.Fatalf("destination lookup should resolve regions: %+v", issues)
	}
	if got := len(issuesOfType(issues, TypeOrphanForeignKey)); got != 1 {
		t.Fatalf("orphans with source = %d", got)
	}
}

func TestReferentialIdentityParent(t *testing.T) {
	t.Parallel()

	parent := TableData{
		Name: "teams",
		Rows: []schema.Row{{"name": "a"}, {"name": "a"}},
		Schema: schema.Schema{Columns: []schema.Column{
			{Name: "id", RawName: "id", SQLType: schema.SQLInt, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", RawName: "name", SQLType: "VARCHAR(1)"},
		}},
	}
	child := TableData{
		Name:   "players",
		Rows:   []schema.Row{{"team_id": "2"}, {"team_id": "3"}},
		Schema: schema.Schema{Columns: []schema.Column{{Name: "team_id", RawName: "team_id", SQLType: schema.SQLInt}}},
	}
	fks := []deps.ForeignKey{{Table: "players", Column: "team_id", ReferencesTable: "teams", ReferencesColumn: "id"}}

	issues := Referential(context.Background(), []TableData{parent, child}, fks, nil)
	if len(issues) != 1 || *issues[0].Index != 1 {
		t.Fatalf("issues = %+v", issues)
	}
}

func TestReferentialIdentityParentWithStoredRows(t *testing.T) {
	t.Parallel()

	parent := TableData{
		Name: "teams",
		Rows: []schema.Row{{"name": "c"}, {"name": "d"}},
		Schema: schema.Schema{Columns: []schema.Column{
			{Name: "id", RawName: "id", SQLType: schema.SQLInt, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", RawName: "name", SQLType: "VARCHAR(1)"},
		}},
	}
	child := TableData{
		Name: "players",
		Rows: []schema.Row{{"team_id": "4"}, {"team_id": "11"}, {"team_id": "12"}, {"team_id": "13"}, {"team_id": "1"}},
		Schema: schema.Schema{Columns: []schema.Column{{Name: "team_id", RawName: "team_id", SQLType: schema.SQLInt}}},
	}
	fks := []deps.ForeignKey{{Table: "players", Column: "team_id", ReferencesTable: "teams", ReferencesColumn: "id"}}

	tests := []struct {
		name        string
		src         ValueSource
		wantOrphans []int
	}{
		// Stored ids 4 and 10; the two batch rows become 11 and 12.
		{"stored rows", fakeSource{values: map[string][]any{"teams.id": {int64(4), int64(10)}}}, []int{3, 4}},
		// Table not created yet; the batch rows become 1 and 2.
		{"missing table", fakeSource{}, []int{0, 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			issues := Referential(context.Background(), []TableData{parent, child}, fks, tt.src)
			var got []int
			for _, is := range issuesOfType(issues, TypeOrphanForeignKey) {
				got = append(got, *is.Index)
			}
			if !slices.Equal(got, tt.wantOrphans) {
				t.Fatalf("orphan rows = %v, want %v (issues %+v)", got, tt.wantOrphans, issues)
			}
			if len(issues) != len(tt.wantOrphans) {
				t.Fatalf("unexpected issues: %+v", issues)
			}
		})
	}
}
