// Package cli implements the ocrdash command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"ocrdash/internal/config"
	"ocrdash/internal/dataprocessing"
	"ocrdash/internal/infrastructure"
	"ocrdash/internal/report"
	"ocrdash/internal/validation"
)

// Exit codes
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitLoadError   = 2
	ExitSchemaError = 3
)

// cliLogLevel keeps diagnostic logs off the terminal unless asked for.
const cliLogLevel = "warn"

type rootOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	paths  *config.Paths
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	report *report.Report
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "ocrdash",
		Short: "Inspect OCR/LLM extraction test results",
		Long: `ocrdash loads curated extraction test results (CSV or Excel), filters them,
highlights rows by status and summarizes accuracy.

Examples:
  ocrdash show resultados.xlsx --status parcial
  ocrdash summary resultados.csv --group-by question --sorted
  ocrdash export resultados.xlsx --test-id T1 --out t1.csv
  ocrdash serve --port 8090`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./config.yaml when present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newShowCommand(opts),
		newSummaryCommand(opts),
		newExportCommand(opts),
		newServeCommand(opts),
	)
	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	} else if cmd.Name() != "serve" {
		cfg.Logging.Level = cliLogLevel
	}
	o.cfg = cfg
	o.report = report.New(o.stdout)
	if o.paths, err = config.ResolvePaths("", cfg.Paths); err != nil {
		return err
	}

	// The server owns the global logger and may log to a file.
	if cmd.Name() == "serve" {
		o.logger, err = infrastructure.InitializeLogger(cfg.Logging)
		return err
	}
	o.logger = infrastructure.NewLogger(cfg.Logging, o.stderr)
	return nil
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(infrastructure.EnsureTraceID(ctx))
	if err == nil {
		return ExitOK
	}
	code, msg := describe(err)
	fmt.Fprintln(stderr, msg)
	return code
}

// describe maps an error to its exit code and the message shown to the user.
func describe(err error) (int, string) {
	var schemaErr *dataprocessing.SchemaError
	if errors.As(err, &schemaErr) {
		missing := make([]string, len(schemaErr.Missing))
		for i, f := range schemaErr.Missing {
			missing[i] = string(f)
		}
		msg := "error: the result file is missing required columns: " + strings.Join(missing, ", ")
		if len(schemaErr.Headers) > 0 {
			msg += "\nheaders found: " + strings.Join(schemaErr.Headers, ", ")
		}
		return ExitSchemaError, msg
	}

	var loadErr *dataprocessing.LoadError
	if errors.As(err, &loadErr) || errors.Is(err, validation.ErrInvalidFile) {
		return ExitLoadError, "error: cannot read the result file: " + err.Error()
	}

	return ExitFailure, "error: " + err.Error()
}
