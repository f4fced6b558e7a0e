package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tabload/internal/probe"
)

func newProbeCmd(stdout io.Writer) *cobra.Command {
	var (
		opts   probe.Options
		report bool
	)
	cmd := &cobra.Command{
		Use:   "probe --input FILE",
		Short: "Preview the inferred schema of a file without loading it",
		Long: `probe reads the head of a CSV file (or the whole of a JSON, XML or HTML file),
infers the table schema and prints it as JSON together with the CREATE TABLE
statement. With --report it prints a per-column uniqueness table instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := probe.Probe(opts)
			if err != nil {
				return err
			}
			if report {
				_, err = fmt.Fprintln(stdout, probe.Report(res))
				return err
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&opts.Path, "input", "i", "", "file to probe")
	fl.IntVar(&opts.Bytes, "bytes", probe.DefaultBytes, "CSV bytes to sample from the start of the file")
	fl.StringVarP(&opts.Parse.Format, "format", "f", "", "input format: csv|json|xml|html (detected when empty)")
	fl.StringVar(&opts.Parse.Encoding, "encoding", "", "force the input text encoding")
	fl.StringVar(&opts.Parse.Selector, "selector", "", "CSS selector of the HTML table to read")
	fl.StringVarP(&opts.Table, "table", "t", "", "table name for the rendered DDL")
	fl.StringVar(&opts.Kind, "kind", "", "SQL dialect of the rendered DDL: mysql|postgres|mssql|sqlite")
	fl.BoolVar(&report, "report", false, "print the uniqueness report instead of JSON")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
