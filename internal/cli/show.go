package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocrdash/pkg/contracts/domain"
)

func newShowCommand(opts *rootOptions) *cobra.Command {
	var (
		flags   loadFlags
		columns string
	)

	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Show the filtered records with status highlight",
		Long: `Show renders the records that pass the filters as a table. Partially correct
rows are highlighted; a summary of the filtered records follows the table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := domain.ParseFields(columns)
			if err != nil {
				return fmt.Errorf("invalid --columns: %w", err)
			}

			ws, err := opts.open(cmd.Context(), args[0], &flags)
			if err != nil {
				return err
			}
			defer ws.Close()

			page, err := ws.service.Records(cmd.Context(), ws.session.ID, ws.spec)
			if err != nil {
				return err
			}
			if page.Empty {
				fmt.Fprintln(opts.stdout, opts.report.Notice(page.Notice))
				return nil
			}

			records := make([]domain.ResultRecord, len(page.Records))
			severities := make([]domain.Severity, len(page.Records))
			for i, rv := range page.Records {
				records[i] = rv.ResultRecord
				severities[i] = rv.Severity
			}
			fmt.Fprintln(opts.stdout, opts.report.Records(records, severities, cols))

			view, err := ws.service.Summary(cmd.Context(), ws.session.ID, ws.spec)
			if err != nil {
				return err
			}
			title := fmt.Sprintf("%s: %d of %d records", ws.session.Filename, page.Count, page.Total)
			fmt.Fprintln(opts.stdout, opts.report.Summary(title, view.Summary))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&columns, "columns", "", "comma separated columns to show (default: all)")
	return cmd
}
