package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrdash/internal/config"
	"ocrdash/internal/dataprocessing"
	"ocrdash/internal/exporter"
	"ocrdash/internal/session"
	"ocrdash/internal/shared/testutil"
	"ocrdash/internal/validation"
	"ocrdash/pkg/contracts/domain"
)

func newTestService(t *testing.T) (*ResultsService, *session.MemoryStore, *testutil.LogCapture) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	cfg := config.Default()

	store := session.NewMemoryStore(session.StoreOptions{TTL: time.Hour, Logger: logger})
	t.Cleanup(store.Close)

	svc, err := NewResultsService(store, ResultsServiceOptions{
		Loader:         cfg.Loader,
		Export:         cfg.Export,
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	})
	require.NoError(t, err)
	return svc, store, handler
}

func uploadFixture(t *testing.T, svc *ResultsService) *session.Session {
	t.Helper()
	sess, err := svc.Upload(context.Background(), strings.NewReader(testutil.ResultsCSV), LoadRequest{
		Filename: "resultados.csv",
		Size:     int64(len(testutil.ResultsCSV)),
	})
	require.NoError(t, err)
	return sess
}

func TestNewResultsService_InvalidRequired(t *testing.T) {
	cfg := config.Default()
	cfg.Loader.Required = []string{"question", "nonsense"}

	_, err := NewResultsService(session.NewMemoryStore(session.StoreOptions{}), ResultsServiceOptions{
		Loader: cfg.Loader,
		Logger: slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)),
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nonsense")
}

func TestResultsService_Upload(t *testing.T) {
	svc, store, handler := newTestService(t)

	sess := uploadFixture(t, svc)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "resultados.csv", sess.Filename)
	assert.Equal(t, dataprocessing.FormatCSV, sess.Format)
	assert.Equal(t, 6, sess.Records)
	assert.Equal(t, "Pergunta", sess.Columns[domain.FieldQuestion])
	assert.Equal(t, 1, store.Len())
	assert.True(t, handler.Has("session created"))
}

func TestResultsService_UploadXLSX(t *testing.T) {
	svc, _, _ := newTestService(t)
	data := testutil.ResultsWorkbook(t)

	sess, err := svc.Upload(context.Background(), bytes.NewReader(data), LoadRequest{
		Filename: "resultados.xlsx",
		Size:     int64(len(data)),
	})
	require.NoError(t, err)
	assert.Equal(t, dataprocessing.FormatXLSX, sess.Format)
	assert.Equal(t, "Resultados", sess.Sheet)
	assert.Equal(t, 6, sess.Records)
}

func TestResultsService_UploadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		req     LoadRequest
		checkFn func(t *testing.T, err error)
	}{
		{
			name: "unsupported extension",
			body: testutil.ResultsCSV,
			req:  LoadRequest{Filename: "results.json", Size: 10},
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, validation.ErrInvalidFile)
			},
		},
		{
			name: "too large",
			body: testutil.ResultsCSV,
			req:  LoadRequest{Filename: "results.csv", Size: 2 << 20},
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, validation.ErrInvalidFile)
			},
		},
		{
			name: "missing required column",
			body: "Pergunta,Valor\nCPF,123\n",
			req:  LoadRequest{Filename: "results.csv", Size: 20},
			checkFn: func(t *testing.T, err error) {
				var schemaErr *dataprocessing.SchemaError
				require.True(t, errors.As(err, &schemaErr))
				assert.Equal(t, []domain.Field{domain.FieldStatus}, schemaErr.Missing)
			},
		},
		{
			name: "format override",
			body: "not a workbook",
			req:  LoadRequest{Filename: "results.csv", Format: "xlsx", Size: 14},
			checkFn: func(t *testing.T, err error) {
				var loadErr *dataprocessing.LoadError
				assert.True(t, errors.As(err, &loadErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t)
			_, err := svc.Upload(context.Background(), strings.NewReader(tt.body), tt.req)
			require.Error(t, err)
			tt.checkFn(t, err)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestResultsService_UploadNilReader(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Upload(context.Background(), nil, LoadRequest{Filename: "a.csv", Size: 1})
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestResultsService_LoadFile(t *testing.T) {
	svc, store, _ := newTestService(t)
	path := testutil.WriteFile(t, t.TempDir(), "resultados.csv", testutil.ResultsCSV)

	res, err := svc.LoadFile(context.Background(), path, LoadRequest{})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Set.Len())
	assert.Equal(t, 0, store.Len(), "local loads do not create sessions")

	_, err = svc.LoadFile(context.Background(), path+".missing", LoadRequest{})
	assert.ErrorIs(t, err, validation.ErrInvalidFile)
}

func TestResultsService_OpenFile(t *testing.T) {
	svc, store, _ := newTestService(t)
	path := testutil.WriteFile(t, t.TempDir(), "resultados.csv", testutil.ResultsCSV)

	sess, err := svc.OpenFile(context.Background(), path, LoadRequest{})
	require.NoError(t, err)
	assert.Equal(t, "resultados.csv", sess.Filename)
	assert.Equal(t, dataprocessing.FormatCSV, sess.Format)
	assert.Equal(t, int64(len(testutil.ResultsCSV)), sess.Size)
	assert.Equal(t, 6, sess.Records)
	assert.Equal(t, 1, store.Len())

	unsupported := testutil.WriteFile(t, t.TempDir(), "broken.txt", testutil.ResultsCSV)
	_, err = svc.OpenFile(context.Background(), unsupported, LoadRequest{})
	assert.Error(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestResultsService_Records(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := uploadFixture(t, svc)

	page, err := svc.Records(context.Background(), sess.ID, dataprocessing.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, 6, page.Count)
	assert.False(t, page.Empty)
	assert.Empty(t, page.Notice)
	require.Len(t, page.Records, 6)
	assert.Equal(t, domain.SeverityNormal, page.Records[0].Severity)
	assert.Equal(t, domain.SeverityWarning, page.Records[1].Severity)

	page, err = svc.Records(context.Background(), sess.ID, dataprocessing.FilterSpec{TestID: "T2"})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, 2, page.Count)
	assert.Equal(t, "João Souza", page.Records[0].ExtractedValue)
}

func TestResultsService_EmptyViews(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := uploadFixture(t, svc)
	spec := dataprocessing.FilterSpec{TestID: "T9"}
	ctx := context.Background()

	page, err := svc.Records(ctx, sess.ID, spec)
	require.NoError(t, err)
	assert.True(t, page.Empty)
	assert.Equal(t, NoticeEmpty, page.Notice)
	assert.Empty(t, page.Records)

	sum, err := svc.Summary(ctx, sess.ID, spec)
	require.NoError(t, err)
	assert.True(t, sum.Empty)
	assert.False(t, sum.RatesDefined)
	assert.Equal(t, 0, sum.Summary.Total)
	assert.Zero(t, sum.Summary.CorrectRate)

	groups, err := svc.Groups(ctx, sess.ID, spec, domain.FieldQuestion, false)
	require.NoError(t, err)
	assert.True(t, groups.Empty)
	assert.Empty(t, groups.Groups)

	_, err = svc.Export(ctx, sess.ID, spec, ExportRequest{Format: "csv"})
	assert.True(t, dataprocessing.IsEmptyResult(err))
}

func TestResultsService_Summary(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := uploadFixture(t, svc)

	view, err := svc.Summary(context.Background(), sess.ID, dataprocessing.FilterSpec{})
	require.NoError(t, err)
	assert.Equal(t, 6, view.Summary.Total)
	assert.Equal(t, 3, view.Summary.Correct)
	assert.Equal(t, 3, view.Summary.Warning)
	assert.Equal(t, 0, view.Summary.Error)
	assert.InDelta(t, 0.5, view.Summary.CorrectRate, 1e-9)
	assert.True(t, view.RatesDefined)
}

func TestResultsService_Groups(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := uploadFixture(t, svc)

	view, err := svc.Groups(context.Background(), sess.ID, dataprocessing.FilterSpec{}, domain.FieldQuestion, true)
	require.NoError(t, err)
	require.Len(t, view.Groups, 2)
	assert.Equal(t, "CPF", view.Groups[0].Value)
	assert.Equal(t, 0, view.Groups[0].Correct)
	assert.Equal(t, "Nome do cliente", view.Groups[1].Value)
	assert.InDelta(t, 1.0, view.Groups[1].Rate, 1e-9)

	_, err = svc.Groups(context.Background(), sess.ID, dataprocessing.FilterSpec{}, domain.FieldTemperature, false)
	assert.ErrorIs(t, err, dataprocessing.ErrUnknownField)
}

func TestResultsService_Options(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := uploadFixture(t, svc)

	view, err := svc.Options(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2", "T3"}, view.TestIDs)
	assert.Equal(t, []string{"Nome do cliente", "CPF"}, view.Questions)
	assert.Equal(t, []string{"correto", "parcial", "Parcialmente correto", "não extraído"}, view.Statuses)
}

func TestResultsService_Export(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := uploadFixture(t, svc)
	ctx := context.Background()

	res, err := svc.Export(ctx, sess.ID, dataprocessing.FilterSpec{Question: "CPF"}, ExportRequest{
		Format:  "csv",
		Columns: []domain.Field{domain.FieldTestID, domain.FieldStatus},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, "resultados_filtered.csv", res.Filename)
	assert.Equal(t, exporter.ContentType(dataprocessing.FormatCSV), res.ContentType)
	assert.Equal(t, "test_id,status\nT1,parcial\nT2,Parcialmente correto\nT3,não extraído\n", string(res.Data))

	res, err = svc.Export(ctx, sess.ID, dataprocessing.FilterSpec{}, ExportRequest{Format: "xlsx", Highlight: true})
	require.NoError(t, err)
	assert.Equal(t, dataprocessing.FormatXLSX, res.Format)

	reloaded, err := dataprocessing.Load(ctx, bytes.NewReader(res.Data), dataprocessing.FormatXLSX, dataprocessing.DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, 6, reloaded.Set.Len())
}

func TestResultsService_ExportErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := uploadFixture(t, svc)
	ctx := context.Background()

	_, err := svc.Export(ctx, sess.ID, dataprocessing.FilterSpec{}, ExportRequest{Format: "pdf"})
	assert.ErrorIs(t, err, ErrUnsupportedExport)

	_, err = svc.Export(ctx, sess.ID, dataprocessing.FilterSpec{}, ExportRequest{
		Columns: []domain.Field{domain.FieldStatus, domain.FieldStatus},
	})
	assert.ErrorIs(t, err, exporter.ErrInvalidColumns)

	_, err = svc.Export(ctx, "missing", dataprocessing.FilterSpec{}, ExportRequest{})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestResultsService_ExportOptions(t *testing.T) {
	svc, _, _ := newTestService(t)

	opts := svc.ExportOptions(ExportRequest{})
	assert.False(t, opts.BOM)
	assert.Equal(t, -1, opts.FloatPrecision)
	assert.Equal(t, config.DefaultExportSheet, opts.Sheet)

	bom, precision := true, 3
	opts = svc.ExportOptions(ExportRequest{BOM: &bom, Precision: &precision})
	assert.True(t, opts.BOM)
	assert.Equal(t, 3, opts.FloatPrecision)
}

func TestResultsService_InvalidFilter(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := uploadFixture(t, svc)

	lo, hi := 0.9, 0.1
	spec := dataprocessing.FilterSpec{Temperature: dataprocessing.NewRange(&lo, &hi)}

	_, err := svc.Records(context.Background(), sess.ID, spec)
	assert.ErrorIs(t, err, dataprocessing.ErrInvalidFilter)
}

func TestResultsService_GetDeleteList(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	first := uploadFixture(t, svc)
	second := uploadFixture(t, svc)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	assert.Len(t, svc.List(ctx), 2)

	require.NoError(t, svc.Delete(ctx, first.ID))
	assert.ErrorIs(t, svc.Delete(ctx, first.ID), session.ErrSessionNotFound)
	_, err = svc.Get(ctx, first.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, 1, store.Len())

	_, err = svc.Get(ctx, second.ID)
	assert.NoError(t, err)
}

func TestSessionEvictHook(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	hook := SessionEvictHook(nil, logger)

	hook(&session.Session{ID: "abc", Filename: "a.csv"}, "expired")

	assert.True(t, handler.Has("session evicted"))
	assert.True(t, handler.HasAttr("reason", "expired"))
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		source string
		format dataprocessing.Format
		want   string
	}{
		{"run.xlsx", dataprocessing.FormatCSV, "run_filtered.csv"},
		{"dir/run.csv", dataprocessing.FormatXLSX, "run_filtered.xlsx"},
		{"", dataprocessing.FormatCSV, "results_filtered.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, ExportFilename(tt.source, tt.format))
		})
	}
}
