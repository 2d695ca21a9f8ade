package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocrdash/internal/dataprocessing"
	"ocrdash/internal/services"
	"ocrdash/internal/validation"
	"ocrdash/pkg/contracts/domain"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		flags     loadFlags
		out       string
		format    string
		columns   string
		bom       bool
		precision int
		highlight bool
	)

	cmd := &cobra.Command{
		Use:   "export FILE --out PATH",
		Short: "Export the filtered records as CSV or xlsx",
		Long: `Export writes the records that pass the filters to --out. The format follows
the extension of --out unless --format is given. A bare file name is written
to the configured exports directory; paths with a directory part are taken
as given. Nothing is written when no record passes the filters.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.ExportRequest{Format: format, Highlight: highlight}
			if req.Format == "" {
				f, err := dataprocessing.FormatFromFilename(out)
				if err != nil {
					return fmt.Errorf("cannot infer the export format from %q, use --format", out)
				}
				req.Format = string(f)
			}

			cols, err := domain.ParseFields(columns)
			if err != nil {
				return fmt.Errorf("invalid --columns: %w", err)
			}
			req.Columns = cols
			if cmd.Flags().Changed("bom") {
				req.BOM = &bom
			}
			if cmd.Flags().Changed("precision") {
				req.Precision = &precision
			}

			target := opts.paths.GetExportPath(out)
			if err := validation.NewFileValidator(0, opts.logger).ValidateOutputFile(target); err != nil {
				return fmt.Errorf("invalid --out: %v", err)
			}

			ws, err := opts.open(cmd.Context(), args[0], &flags)
			if err != nil {
				return err
			}
			defer ws.Close()

			res, err := ws.service.Export(cmd.Context(), ws.session.ID, ws.spec, req)
			if dataprocessing.IsEmptyResult(err) {
				fmt.Fprintln(opts.stdout, opts.report.Notice(services.NoticeEmpty+" Nothing was written."))
				return nil
			}
			if err != nil {
				return err
			}

			if err := os.WriteFile(target, res.Data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", target, err)
			}

			fmt.Fprintf(opts.stdout, "exported %d records to %s\n", res.Records, target)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().StringVar(&format, "format", "", "csv or xlsx (default: from the --out extension)")
	cmd.Flags().StringVar(&columns, "columns", "", "comma separated columns to export (default: all)")
	cmd.Flags().BoolVar(&bom, "bom", false, "prefix CSV output with a UTF-8 BOM for Excel")
	cmd.Flags().IntVar(&precision, "precision", -1, "decimals of numeric columns (-1: shortest)")
	cmd.Flags().BoolVar(&highlight, "highlight", false, "fill xlsx rows by status severity")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
