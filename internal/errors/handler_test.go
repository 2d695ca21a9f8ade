package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrdash/internal/dataprocessing"
	"ocrdash/internal/exporter"
	"ocrdash/internal/infrastructure"
	"ocrdash/internal/session"
	"ocrdash/internal/shared/testutil"
	"ocrdash/internal/validation"
	"ocrdash/pkg/contracts/domain"
)

func TestErrorHandler_ErrorToProblem(t *testing.T) {
	h := NewErrorHandler(nil, false)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/abc/records", nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "deadline",
			err:        fmt.Errorf("load cancelled: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "invalid param",
			err:        InvalidParam("temp_min", "must be a number"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "schema error",
			err:        fmt.Errorf("upload: %w", &dataprocessing.SchemaError{Missing: []domain.Field{domain.FieldStatus}}),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeDataSchema,
		},
		{
			name:       "load error",
			err:        &dataprocessing.LoadError{Reason: dataprocessing.ReasonMalformed},
			wantStatus: http.StatusBadRequest,
			wantType:   TypeDataUnreadable,
		},
		{
			name:       "upload too large",
			err:        fmt.Errorf("read upload: %w", &http.MaxBytesError{Limit: 1024}),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
		},
		{
			name:       "unknown session",
			err:        fmt.Errorf("%w: abc", session.ErrSessionNotFound),
			wantStatus: http.StatusNotFound,
			wantType:   TypeSessionNotFound,
		},
		{
			name:       "invalid filter",
			err:        fmt.Errorf("%w: temperature range is inverted", dataprocessing.ErrInvalidFilter),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidFilter,
		},
		{
			name:       "invalid columns",
			err:        fmt.Errorf("%w: unknown column \"x\"", exporter.ErrInvalidColumns),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidColumns,
		},
		{
			name:       "unknown field",
			err:        fmt.Errorf("%w: temperature", dataprocessing.ErrUnknownField),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidColumns,
		},
		{
			name:       "invalid file",
			err:        fmt.Errorf("%w: results.txt", validation.ErrInvalidFile),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "unsupported media",
			err:        UnsupportedContentType("text/plain", []string{"multipart/form-data"}),
			wantStatus: http.StatusUnsupportedMediaType,
			wantType:   TypeUnsupportedMedia,
		},
		{
			name:       "app error",
			err:        fmt.Errorf("export: %w", Wrap(KindExport, "encode xlsx", errors.New("disk full"))),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, req)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/sessions/abc/records", problem.Instance)
		})
	}
}

func TestErrorHandler_HandleError_SchemaExtensions(t *testing.T) {
	h := NewErrorHandler(nil, false)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req = req.WithContext(infrastructure.WithTraceID(req.Context(), "trace-1"))
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, &dataprocessing.SchemaError{
		Missing: []domain.Field{domain.FieldQuestion, domain.FieldStatus},
		Headers: []string{"Teste", "Valor"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TypeDataSchema, body["type"])
	assert.Equal(t, "trace-1", body["trace_id"])
	assert.Equal(t, []interface{}{"question", "status"}, body["missing"])
	assert.Equal(t, []interface{}{"Teste", "Valor"}, body["headers"])
}

func TestErrorHandler_HandleError_InvalidParams(t *testing.T) {
	h := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/abc/records", nil),
		InvalidParams(ParamError{Name: "from", Reason: "from must be a date (YYYY-MM-DD)"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeInvalidParams, body["error_code"])
	params := body["invalid_params"].([]interface{})
	require.Len(t, params, 1)
	assert.Equal(t, "from", params[0].(map[string]interface{})["name"])
	assert.NotContains(t, body, "details")
}

func TestErrorHandler_HandleError_HidesAppErrorCause(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	rec := httptest.NewRecorder()

	err := &AppError{Kind: KindStorage, Op: "write export", Err: errors.New("ENOSPC /srv/exports")}
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/abc/export", nil), err.With("path", "/srv/exports"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "ENOSPC")
	assert.Contains(t, rec.Body.String(), `"kind":"storage"`)
	testutil.AssertLogAttr(t, logs, "op", "write export")
	testutil.AssertLogAttr(t, logs, "path", "/srv/exports")
}

func TestStatusProblem(t *testing.T) {
	p := StatusProblem(http.StatusTooManyRequests, "slow down", "/api/sessions")
	assert.Equal(t, TypeRateLimit, p.Type)
	assert.Equal(t, "Too Many Requests", p.Title)
	assert.Equal(t, "about:blank", StatusProblem(http.StatusTeapot, "", "/").Type)
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	h := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), TypeNotFound)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPut, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "Method PUT is not allowed")
}

func TestErrorHandler_MiddlewareRecoversWithStack(t *testing.T) {
	h := NewErrorHandler(nil, true)
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "kaboom", body["panic"])
	assert.NotEmpty(t, body["stack"])
}

func TestErrorHandler_Middleware(t *testing.T) {
	h := NewErrorHandler(nil, false)

	passthrough := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	passthrough.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())

	panicky := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("nil map"))
	}))
	rec = httptest.NewRecorder()
	panicky.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), TypeInternal)
	assert.NotContains(t, rec.Body.String(), "nil map")
}

func TestErrorHandler_MiddlewareAbortsStartedResponse(t *testing.T) {
	h := NewErrorHandler(nil, false)
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("id,question\n"))
		panic("export writer broke")
	}))

	rec := httptest.NewRecorder()
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, "id,question\n", rec.Body.String())
}
