package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ocrdash/internal/dataprocessing"
	"ocrdash/internal/services"
	"ocrdash/internal/session"
)

// loadFlags are the filter and loader flags shared by every file command.
type loadFlags struct {
	params  services.FilterParams
	sheet   string
	charset string
	format  string
}

func (f *loadFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.params.TestID, "test-id", "", "keep records of this test id")
	fs.StringVar(&f.params.Question, "question", "", "keep records of this question")
	fs.StringVar(&f.params.Status, "status", "", "keep records with this status")
	fs.StringVar(&f.params.Search, "search", "", "keep records whose extracted value contains this text")
	fs.StringVar(&f.params.TempMin, "temp-min", "", "minimum temperature (inclusive)")
	fs.StringVar(&f.params.TempMax, "temp-max", "", "maximum temperature (inclusive)")
	fs.StringVar(&f.params.TopPMin, "top-p-min", "", "minimum top_p (inclusive)")
	fs.StringVar(&f.params.TopPMax, "top-p-max", "", "maximum top_p (inclusive)")
	fs.StringVar(&f.params.From, "from", "", "first day, YYYY-MM-DD")
	fs.StringVar(&f.params.To, "to", "", "last day, YYYY-MM-DD")
	fs.StringVar(&f.sheet, "sheet", "", "worksheet to read (xlsx only)")
	fs.StringVar(&f.charset, "charset", "", "CSV charset: utf-8 or windows-1252")
	fs.StringVar(&f.format, "input-format", "", "input format when the extension is misleading: csv or xlsx")
}

// workspace is one loaded result file ready for views.
type workspace struct {
	service *services.ResultsService
	store   *session.MemoryStore
	session *session.Session
	spec    dataprocessing.FilterSpec
}

func (w *workspace) Close() {
	w.store.Close()
}

// open validates the filters, then loads path and reports its field issues
// as warnings.
func (o *rootOptions) open(ctx context.Context, path string, flags *loadFlags) (*workspace, error) {
	spec, err := flags.params.Spec()
	if err != nil {
		return nil, err
	}

	store := session.NewMemoryStore(session.StoreOptions{Logger: o.logger})
	svc, err := services.NewResultsService(store, services.ResultsServiceOptions{
		Loader:         o.cfg.Loader,
		Export:         o.cfg.Export,
		MaxUploadBytes: o.cfg.Upload.MaxBytes,
		Logger:         o.logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	sess, err := svc.OpenFile(ctx, path, services.LoadRequest{
		Format:  flags.format,
		Sheet:   flags.sheet,
		Charset: flags.charset,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	for _, issue := range sess.Issues {
		fmt.Fprintln(o.stderr, o.report.Warning(fmt.Sprintf("row %d: %s %q: %v", issue.Row, issue.Field, issue.Value, issue.Err)))
	}

	return &workspace{service: svc, store: store, session: sess, spec: spec}, nil
}
