package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ocrdash/internal/exporter"
	"ocrdash/internal/services"
	"ocrdash/pkg/contracts/domain"
)

type summaryOutput struct {
	Source  string                `json:"source"`
	Filters string                `json:"filters,omitempty"`
	Summary *services.SummaryView `json:"summary"`
	Groups  *services.GroupsView  `json:"groups,omitempty"`
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var (
		flags    loadFlags
		groupBy  string
		sorted   bool
		asJSON   bool
		out      string
		appendTo bool
	)

	cmd := &cobra.Command{
		Use:   "summary FILE",
		Short: "Summarize accuracy of the filtered records",
		Long: `Summary counts correct, partial and wrong records among the filtered ones.
With --group-by it also breaks accuracy down per value of a text column.
With --out the summary row (or the group table) is written to a CSV file; a
bare file name lands in the configured exports directory. --append adds to
an existing file instead of replacing it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var by domain.Field
			if groupBy != "" {
				f, err := domain.ParseField(groupBy)
				if err != nil {
					return fmt.Errorf("invalid --group-by: %w", err)
				}
				by = f
			}

			ws, err := opts.open(cmd.Context(), args[0], &flags)
			if err != nil {
				return err
			}
			defer ws.Close()

			result := summaryOutput{Source: ws.session.Filename, Filters: flags.params.Describe()}
			if result.Summary, err = ws.service.Summary(cmd.Context(), ws.session.ID, ws.spec); err != nil {
				return err
			}
			if by != "" {
				if result.Groups, err = ws.service.Groups(cmd.Context(), ws.session.ID, ws.spec, by, sorted); err != nil {
					return err
				}
			}

			if out != "" {
				if err := opts.writeSummary(out, appendTo, result); err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(opts.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			if result.Summary.Empty {
				fmt.Fprintln(opts.stdout, opts.report.Notice(result.Summary.Notice))
			}
			title := "Summary of " + result.Source
			if result.Filters != "" {
				title += " (" + result.Filters + ")"
			}
			fmt.Fprintln(opts.stdout, opts.report.Summary(title, result.Summary.Summary))
			if result.Groups != nil && len(result.Groups.Groups) > 0 {
				headers, rows := exporter.GroupTable(result.Groups.Field, result.Groups.Groups)
				fmt.Fprintln(opts.stdout, opts.report.Table(headers, rows))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&groupBy, "group-by", "", "text column to break accuracy down by (test_id, question, status, ...)")
	cmd.Flags().BoolVar(&sorted, "sorted", false, "order groups by value instead of first appearance")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write the result to this CSV file")
	cmd.Flags().BoolVar(&appendTo, "append", false, "append to --out instead of replacing it")
	return cmd
}

func (o *rootOptions) writeSummary(path string, appendTo bool, result summaryOutput) error {
	writer := exporter.NewCSVWriter(o.paths, o.logger)

	headers := exporter.SummaryHeaders
	rows := [][]string{exporter.SummaryRow(time.Now(), result.Source, result.Filters, result.Summary.Summary)}
	if result.Groups != nil {
		headers, rows = exporter.GroupTable(result.Groups.Field, result.Groups.Groups)
	}

	written, err := writer.WriteCSV(path, exporter.WriteOptions{
		Headers:   headers,
		Records:   rows,
		Append:    appendTo,
		BOMPrefix: o.cfg.Export.BOM,
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(o.stderr, o.report.Notice("wrote "+written))
	return nil
}
