package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"ocrdash/internal/app"
	"ocrdash/internal/infrastructure"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the results HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				opts.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				opts.cfg.Server.Port = port
			}

			application, err := app.NewApplication(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			err = application.Run(cmd.Context())
			return errors.Join(err, infrastructure.CloseLogFile())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}
