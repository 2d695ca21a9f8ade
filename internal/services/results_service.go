package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ocrdash/internal/config"
	"ocrdash/internal/dataprocessing"
	apierrors "ocrdash/internal/errors"
	"ocrdash/internal/exporter"
	"ocrdash/internal/infrastructure"
	"ocrdash/internal/session"
	"ocrdash/internal/validation"
	"ocrdash/pkg/contracts/domain"
)

// ResultsServiceOptions configures a ResultsService.
type ResultsServiceOptions struct {
	Loader         config.LoaderConfig
	Export         config.ExportConfig
	MaxUploadBytes int64
	Metrics        *infrastructure.BusinessMetrics
	Tracer         trace.Tracer
	Logger         *slog.Logger
}

// ResultsService loads result files into sessions and derives views from them.
type ResultsService struct {
	store     session.Store
	validator *validation.FileValidator
	exporter  *exporter.ResultExporter
	loadOpts  dataprocessing.LoadOptions
	export    config.ExportConfig
	metrics   *infrastructure.BusinessMetrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewResultsService creates a results service backed by store.
func NewResultsService(store session.Store, opts ResultsServiceOptions) (*ResultsService, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "results_service")

	required := make([]domain.Field, 0, len(opts.Loader.Required))
	for _, name := range opts.Loader.Required {
		f, err := domain.ParseField(name)
		if err != nil {
			return nil, fmt.Errorf("invalid required column: %w", err)
		}
		required = append(required, f)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.InstrumentationName)
	}

	logger.Info("ResultsService initialized",
		slog.String("charset", opts.Loader.Charset),
		slog.Int("header_scan_rows", opts.Loader.HeaderScanRows),
		slog.Int64("max_upload_bytes", opts.MaxUploadBytes))

	return &ResultsService{
		store:     store,
		validator: validation.NewFileValidator(opts.MaxUploadBytes, logger),
		exporter:  exporter.NewResultExporter(logger),
		loadOpts: dataprocessing.LoadOptions{
			Charset:        opts.Loader.Charset,
			Required:       required,
			HeaderScanRows: opts.Loader.HeaderScanRows,
			Logger:         logger,
		},
		export:  opts.Export,
		metrics: opts.Metrics,
		tracer:  tracer,
		logger:  logger,
	}, nil
}

// SessionEvictHook returns the store callback that accounts for sessions
// dropped by expiry or capacity.
func SessionEvictHook(metrics *infrastructure.BusinessMetrics, logger *slog.Logger) session.EvictFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(s *session.Session, reason string) {
		metrics.SessionClosed(context.Background(), true)
		logger.Info("session evicted",
			slog.String("session_id", s.ID),
			slog.String("filename", s.Filename),
			slog.String("reason", reason))
	}
}

// LoadRequest describes one result file to load.
type LoadRequest struct {
	Filename string
	// Format overrides the format implied by the file extension.
	Format  string
	Sheet   string
	Charset string
	Size    int64
}

func (s *ResultsService) options(req LoadRequest) dataprocessing.LoadOptions {
	opts := s.loadOpts
	if req.Sheet != "" {
		opts.Sheet = req.Sheet
	}
	if req.Charset != "" {
		opts.Charset = req.Charset
	}
	return opts
}

func resolveFormat(req LoadRequest) (dataprocessing.Format, error) {
	if req.Format != "" {
		return dataprocessing.ParseFormat(req.Format)
	}
	return dataprocessing.FormatFromFilename(req.Filename)
}

// Upload validates and loads r into a new session.
func (s *ResultsService) Upload(ctx context.Context, r io.Reader, req LoadRequest) (*session.Session, error) {
	ctx, span := s.tracer.Start(ctx, "results.upload", trace.WithAttributes(
		attribute.String("file.name", req.Filename),
		attribute.Int64("file.size", req.Size),
	))
	defer span.End()

	if r == nil {
		return nil, ErrMissingFile
	}
	if err := s.validator.ValidateUpload(req.Filename, req.Size); err != nil {
		s.fail(ctx, span, "upload rejected", err)
		return nil, err
	}

	res, format, err := s.load(ctx, r, req)
	if err != nil {
		s.fail(ctx, span, "upload failed", err)
		return nil, err
	}

	return s.createSession(ctx, span, session.New(filepath.Base(req.Filename), format, req.Size, res))
}

func (s *ResultsService) createSession(ctx context.Context, span trace.Span, sess *session.Session) (*session.Session, error) {
	if err := s.store.Create(sess); err != nil {
		err = apierrors.Wrap(apierrors.KindSession, "store session", err)
		s.fail(ctx, span, "session create failed", err)
		return nil, err
	}
	s.metrics.SessionOpened(ctx)
	span.SetAttributes(attribute.String("session.id", sess.ID))

	ctx = infrastructure.WithSessionID(ctx, sess.ID)
	s.logger.InfoContext(ctx, "session created",
		slog.String("filename", sess.Filename),
		slog.Int("records", sess.Records),
		slog.Int("issues", len(sess.Issues)))
	return sess, nil
}

// LoadFile validates and loads a local result file without creating a session.
func (s *ResultsService) LoadFile(ctx context.Context, path string, req LoadRequest) (*dataprocessing.LoadResult, error) {
	ctx, span := s.tracer.Start(ctx, "results.load_file", trace.WithAttributes(
		attribute.String("file.path", path),
	))
	defer span.End()

	res, _, _, err := s.loadFile(ctx, span, path, req)
	return res, err
}

// OpenFile loads a local result file into a new session.
func (s *ResultsService) OpenFile(ctx context.Context, path string, req LoadRequest) (*session.Session, error) {
	ctx, span := s.tracer.Start(ctx, "results.open_file", trace.WithAttributes(
		attribute.String("file.path", path),
	))
	defer span.End()

	res, format, size, err := s.loadFile(ctx, span, path, req)
	if err != nil {
		return nil, err
	}
	return s.createSession(ctx, span, session.New(filepath.Base(path), format, size, res))
}

func (s *ResultsService) loadFile(ctx context.Context, span trace.Span, path string, req LoadRequest) (*dataprocessing.LoadResult, dataprocessing.Format, int64, error) {
	info, err := s.validator.ValidateResultFile(path)
	if err != nil {
		s.fail(ctx, span, "load rejected", err)
		return nil, "", 0, err
	}
	req.Filename = path
	req.Size = info.Size()

	f, err := os.Open(path)
	if err != nil {
		err = &dataprocessing.LoadError{Reason: dataprocessing.ReasonRead, Detail: path, Err: err}
		s.fail(ctx, span, "load failed", err)
		return nil, "", 0, err
	}
	defer f.Close()

	res, format, err := s.load(ctx, f, req)
	if err != nil {
		s.fail(ctx, span, "load failed", err)
		return nil, "", 0, err
	}
	return res, format, req.Size, nil
}

func (s *ResultsService) load(ctx context.Context, r io.Reader, req LoadRequest) (*dataprocessing.LoadResult, dataprocessing.Format, error) {
	format, err := resolveFormat(req)
	if err != nil {
		s.metrics.FileRejected(ctx, "unknown", failureReason(err))
		return nil, "", err
	}

	start := time.Now()
	res, err := dataprocessing.Load(ctx, r, format, s.options(req))
	if err != nil {
		s.metrics.FileRejected(ctx, string(format), failureReason(err))
		return nil, format, err
	}
	s.metrics.FileLoaded(ctx, string(format), req.Size, res.Set.Len(), len(res.Issues), time.Since(start))

	for _, issue := range res.Issues {
		s.logger.WarnContext(ctx, "field could not be parsed",
			slog.Int("row", issue.Row),
			slog.String("field", string(issue.Field)),
			slog.String("value", issue.Value))
	}
	infrastructure.AddSpanEvent(ctx, "results.loaded",
		attribute.String("format", string(format)),
		attribute.Int("records", res.Set.Len()),
		attribute.Int("issues", len(res.Issues)))
	return res, format, nil
}

// Get returns the metadata of a session.
func (s *ResultsService) Get(ctx context.Context, id string) (*session.Session, error) {
	return s.store.Get(id)
}

// Delete drops a session.
func (s *ResultsService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.metrics.SessionClosed(ctx, false)
	s.logger.InfoContext(infrastructure.WithSessionID(ctx, id), "session deleted")
	return nil
}

// List returns the live sessions, newest first.
func (s *ResultsService) List(ctx context.Context) []*session.Session {
	return s.store.List()
}

// RecordView is a record with its highlight class.
type RecordView struct {
	domain.ResultRecord
	Severity domain.Severity `json:"severity"`
}

// RecordsPage is the filtered record view of a session.
type RecordsPage struct {
	SessionID string       `json:"session_id"`
	Total     int          `json:"total"`
	Count     int          `json:"count"`
	Records   []RecordView `json:"records"`
	Empty     bool         `json:"empty"`
	Notice    string       `json:"notice,omitempty"`
}

// SummaryView is the aggregate of a filtered view.
type SummaryView struct {
	SessionID    string         `json:"session_id"`
	Summary      domain.Summary `json:"summary"`
	RatesDefined bool           `json:"rates_defined"`
	Empty        bool           `json:"empty"`
	Notice       string         `json:"notice,omitempty"`
}

// GroupsView is the grouped accuracy of a filtered view.
type GroupsView struct {
	SessionID string             `json:"session_id"`
	Field     domain.Field       `json:"field"`
	Groups    []domain.GroupStat `json:"groups"`
	Empty     bool               `json:"empty"`
	Notice    string             `json:"notice,omitempty"`
}

// OptionsView lists the values the dashboards offer as filter choices.
type OptionsView struct {
	SessionID string   `json:"session_id"`
	TestIDs   []string `json:"test_ids"`
	Questions []string `json:"questions"`
	Statuses  []string `json:"statuses"`
}

// view applies spec to the records of session id.
func (s *ResultsService) view(ctx context.Context, id string, spec dataprocessing.FilterSpec) (*session.Session, domain.ResultSet, error) {
	if err := spec.Validate(); err != nil {
		return nil, domain.ResultSet{}, err
	}
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, domain.ResultSet{}, err
	}
	return sess, dataprocessing.Apply(sess.Set(), spec), nil
}

// empty reports an empty view and returns its notice.
func (s *ResultsService) empty(ctx context.Context, set domain.ResultSet, operation string) (bool, string) {
	if err := dataprocessing.RequireRecords(set, operation); err != nil {
		s.metrics.EmptyView(ctx, operation)
		s.logger.InfoContext(ctx, "empty view", slog.String("operation", operation))
		return true, NoticeEmpty
	}
	return false, ""
}

// Records returns the records of a filtered view with their severities.
func (s *ResultsService) Records(ctx context.Context, id string, spec dataprocessing.FilterSpec) (*RecordsPage, error) {
	sess, set, err := s.view(ctx, id, spec)
	if err != nil {
		return nil, err
	}

	severities := dataprocessing.ClassifySet(set)
	records := make([]RecordView, set.Len())
	for i := range records {
		records[i] = RecordView{ResultRecord: set.At(i), Severity: severities[i]}
	}

	page := &RecordsPage{
		SessionID: sess.ID,
		Total:     sess.Records,
		Count:     set.Len(),
		Records:   records,
	}
	page.Empty, page.Notice = s.empty(ctx, set, "records")
	return page, nil
}

// Summary aggregates a filtered view.
func (s *ResultsService) Summary(ctx context.Context, id string, spec dataprocessing.FilterSpec) (*SummaryView, error) {
	sess, set, err := s.view(ctx, id, spec)
	if err != nil {
		return nil, err
	}
	sum := dataprocessing.Summarize(set)
	view := &SummaryView{SessionID: sess.ID, Summary: sum, RatesDefined: sum.RatesDefined()}
	view.Empty, view.Notice = s.empty(ctx, set, "summary")
	return view, nil
}

// Groups computes grouped accuracy of a filtered view by a text field.
func (s *ResultsService) Groups(ctx context.Context, id string, spec dataprocessing.FilterSpec, by domain.Field, sorted bool) (*GroupsView, error) {
	sess, set, err := s.view(ctx, id, spec)
	if err != nil {
		return nil, err
	}
	groups, err := dataprocessing.GroupAccuracy(set, by, sorted)
	if err != nil {
		return nil, err
	}
	view := &GroupsView{SessionID: sess.ID, Field: by, Groups: groups}
	view.Empty, view.Notice = s.empty(ctx, set, "groups")
	return view, nil
}

// Options lists the distinct test ids, questions and statuses of a session.
func (s *ResultsService) Options(ctx context.Context, id string) (*OptionsView, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	set := sess.Set()
	view := &OptionsView{SessionID: sess.ID}
	for _, o := range []struct {
		field domain.Field
		dst   *[]string
	}{
		{domain.FieldTestID, &view.TestIDs},
		{domain.FieldQuestion, &view.Questions},
		{domain.FieldStatus, &view.Statuses},
	} {
		values, err := dataprocessing.DistinctValues(set, o.field)
		if err != nil {
			return nil, err
		}
		*o.dst = values
	}
	return view, nil
}

// ExportRequest selects the shape of an export. Nil pointers take the
// configured defaults.
type ExportRequest struct {
	Format    string
	Columns   []domain.Field
	BOM       *bool
	Precision *int
	Highlight bool
}

// ExportResult is an encoded view ready to be sent or written.
type ExportResult struct {
	Data        []byte
	ContentType string
	Filename    string
	Format      dataprocessing.Format
	Records     int
}

// ExportOptions merges req onto the configured export defaults.
func (s *ResultsService) ExportOptions(req ExportRequest) exporter.ExportOptions {
	opts := exporter.ExportOptions{
		Columns:        req.Columns,
		BOM:            s.export.BOM,
		FloatPrecision: s.export.FloatPrecision,
		Sheet:          s.export.Sheet,
		Highlight:      req.Highlight,
	}
	if req.BOM != nil {
		opts.BOM = *req.BOM
	}
	if req.Precision != nil {
		opts.FloatPrecision = *req.Precision
	}
	return opts
}

// Export encodes a filtered view. An empty view yields a
// *dataprocessing.EmptyResultError and no data.
func (s *ResultsService) Export(ctx context.Context, id string, spec dataprocessing.FilterSpec, req ExportRequest) (*ExportResult, error) {
	ctx, span := s.tracer.Start(ctx, "results.export", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("export.format", req.Format),
	))
	defer span.End()

	format := dataprocessing.FormatCSV
	if req.Format != "" {
		f, err := dataprocessing.ParseFormat(req.Format)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedExport, req.Format)
		}
		format = f
	}
	if _, err := exporter.ResolveColumns(req.Columns); err != nil {
		return nil, err
	}

	sess, set, err := s.view(ctx, id, spec)
	if err != nil {
		return nil, err
	}
	if err := dataprocessing.RequireRecords(set, "export"); err != nil {
		s.metrics.EmptyView(ctx, "export")
		s.logger.InfoContext(infrastructure.WithSessionID(ctx, id), "export skipped, view is empty")
		return nil, err
	}

	data, err := s.exporter.ExportBytes(ctx, set, format, s.ExportOptions(req))
	if err != nil {
		err = apierrors.Wrap(apierrors.KindExport, "render export", err)
		s.fail(ctx, span, "export failed", err)
		return nil, err
	}
	s.metrics.Exported(ctx, string(format))

	return &ExportResult{
		Data:        data,
		ContentType: exporter.ContentType(format),
		Filename:    ExportFilename(sess.Filename, format),
		Format:      format,
		Records:     set.Len(),
	}, nil
}

// ExportFilename names the export of source in the given format.
func ExportFilename(source string, format dataprocessing.Format) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." {
		base = "results"
	}
	return base + "_filtered." + string(format)
}

// fail logs err and marks span as failed. Empty results are not failures.
func (s *ResultsService) fail(ctx context.Context, span trace.Span, msg string, err error) {
	if dataprocessing.IsEmptyResult(err) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	level := slog.LevelWarn
	if failureReason(err) == "internal" {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, msg, slog.String("error", err.Error()))
}

// failureReason labels an error for metrics. Anything that is not the
// caller's file or request is "internal".
func failureReason(err error) string {
	var loadErr *dataprocessing.LoadError
	var schemaErr *dataprocessing.SchemaError
	switch {
	case errors.Is(err, validation.ErrInvalidFile):
		return "invalid_file"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &loadErr):
		return strings.ReplaceAll(string(loadErr.Reason), " ", "_")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}
