package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"tabload/internal/config"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errb bytes.Buffer
	cmd := newRootCmd(&out, &errb)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errb.String(), err
}

// baseArgs keeps a run away from the developer's .env and metrics setup.
func baseArgs(dir string) []string {
	return []string{
		"--env-file", filepath.Join(dir, "missing.env"),
		"--metrics-backend", "none",
		"--output-dir", dir,
	}
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestDryRunPrintsReport(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "people.csv", "code;name\na1;Ana\nb2;Bo\n")

	args := append(baseArgs(dir),
		"--input", in,
		"--dry-run",
		"--kind", "postgres",
		"--ddl-out", filepath.Join(dir, "schema.sql"),
		"--report-out", filepath.Join(dir, "report.json"),
	)
	stdout, stderr, err := execute(t, args...)
	if err != nil {
		t.Fatalf("execute: %v\nstderr: %s", err, stderr)
	}

	var rep map[string]any
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if rep["table"] != "people" || rep["rowCount"] != float64(2) || rep["dryRun"] != true || rep["delimiter"] != ";" {
		t.Errorf("report = %v", rep)
	}
	for _, f := range []string{"schema.sql", "report.json", "people_inserts.sql"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("%s: %v", f, err)
		}
	}
}

func TestBatchDryRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	if err := os.Mkdir(in, 0o755); err != nil {
		t.Fatal(err)
	}
	writeInput(t, in, "customers.csv", "id,name\n1,Ana\n2,Bo\n")
	writeInput(t, in, "orders.csv", "id,customer_id\na,1\nb,2\n")

	args := append(baseArgs(dir), "--input", in, "--batch", "--skip-load", "--sort-deps", "--validate")
	stdout, stderr, err := execute(t, args...)
	if err != nil {
		t.Fatalf("execute: %v\nstderr: %s", err, stderr)
	}

	var rep struct {
		Mode        string   `json:"mode"`
		TotalTables int      `json:"totalTables"`
		ForeignKeys int      `json:"foreignKeys"`
		LoadOrder   []string `json:"loadOrder"`
		ReportPath  string   `json:"reportPath"`
	}
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if rep.Mode != "batch" || rep.TotalTables != 2 || rep.ForeignKeys != 1 {
		t.Errorf("report = %+v", rep)
	}
	if rep.ReportPath != filepath.Join(dir, "batch_report.json") {
		t.Errorf("ReportPath = %q", rep.ReportPath)
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "people.csv", "code,name\na1,Ana\n")

	tests := []struct {
		name       string
		args       []string
		wantErr    string
		wantStderr string
	}{
		{"missing_input", baseArgs(dir), "input", ""},
		{"bad_chunk_size", append(baseArgs(dir), "--input", in, "--dry-run", "--chunk-size", "0"), "configuration is invalid", "TABLOAD_CHUNK_SIZE"},
		{"bad_delimiter", append(baseArgs(dir), "--input", in, "--dry-run", "--delimiter", "ab"), "--delimiter", ""},
		{"missing_file", append(baseArgs(dir), "--input", filepath.Join(dir, "nope.csv"), "--dry-run"), "nope.csv", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, stderr, err := execute(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want it to mention %q", err, tc.wantErr)
			}
			if !strings.Contains(stderr, tc.wantStderr) {
				t.Errorf("stderr = %q, want %q", stderr, tc.wantStderr)
			}
		})
	}
}

func TestBuildOptionsErrorPolicy(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	tests := []struct {
		name     string
		cont     bool
		stop     bool
		wantStop bool
	}{
		{"default_continue", true, false, false},
		{"stop_wins", true, true, true},
		{"no_continue", false, false, true},
	}
	for _, tc := range tests {
		opts, err := buildOptions(&cobra.Command{}, &cliFlags{continueOnError: tc.cont, stopOnError: tc.stop}, cfg)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if opts.StopOnError != tc.wantStop {
			t.Errorf("%s: StopOnError = %v, want %v", tc.name, opts.StopOnError, tc.wantStop)
		}
	}

	opts, err := buildOptions(&cobra.Command{}, &cliFlags{delimiter: `\t`}, cfg)
	if err != nil || opts.Parse.Delimiter != '\t' {
		t.Errorf("tab delimiter = %q, %v", opts.Parse.Delimiter, err)
	}
}

func TestProbeCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "people.csv", "code,name\na1,Ana\nb2,Bo\n")

	stdout, _, err := execute(t, "probe", "--input", in, "--kind", "sqlite")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	var res struct {
		Table       string   `json:"table"`
		PrimaryKeys []string `json:"primaryKeys"`
		DDL         string   `json:"ddl"`
	}
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if res.Table != "people" || len(res.PrimaryKeys) != 1 || !strings.Contains(res.DDL, "CREATE TABLE") {
		t.Errorf("probe result = %+v", res)
	}

	stdout, _, err = execute(t, "probe", "--input", in, "--report")
	if err != nil {
		t.Fatalf("probe --report: %v", err)
	}
	if !strings.HasPrefix(stdout, "table people:") {
		t.Errorf("report = %q", stdout)
	}
}
