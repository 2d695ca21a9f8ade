package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"ocrdash/internal/dataprocessing"
	apierrors "ocrdash/internal/errors"
	"ocrdash/internal/infrastructure"
	"ocrdash/internal/middleware"
	"ocrdash/internal/services"
	"ocrdash/internal/session"
	"ocrdash/pkg/contracts/domain"
)

// multipartOverhead is the room left above the file size limit for the
// multipart envelope and the small form fields.
const multipartOverhead = 1 << 20

// ResultsHandler handles session and view requests with RFC 7807 errors
type ResultsHandler struct {
	service      ResultsServiceInterface
	validator    *middleware.RequestValidator
	maxBytes     int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(service ResultsServiceInterface, validator *middleware.RequestValidator, maxBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ResultsHandler {
	return &ResultsHandler{
		service:      service,
		validator:    validator,
		maxBytes:     maxBytes,
		logger:       logger.With(slog.String("component", "results_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the session routes
func (h *ResultsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListSessions)
	r.With(middleware.ContentTypeValidator("multipart/form-data")).Post("/", h.Upload)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(sessionScope)
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Get("/records", h.Records)
		r.Get("/summary", h.Summary)
		r.Get("/groups", h.Groups)
		r.Get("/options", h.Options)
		r.Get("/export", h.Export)
	})

	return r
}

// sessionScope tags the request context with the session id so every log
// line written while serving it carries session_id.
func sessionScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := infrastructure.WithSessionID(r.Context(), chi.URLParam(r, "id"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IssueView is one cell that failed to parse during an upload.
type IssueView struct {
	Row     int          `json:"row"`
	Field   domain.Field `json:"field"`
	Value   string       `json:"value"`
	Message string       `json:"message"`
}

// SessionResponse is the metadata of a session with its load issues.
type SessionResponse struct {
	*session.Session
	Issues []IssueView `json:"issues"`
}

func newSessionResponse(sess *session.Session) SessionResponse {
	issues := make([]IssueView, len(sess.Issues))
	for i, issue := range sess.Issues {
		issues[i] = IssueView{Row: issue.Row, Field: issue.Field, Value: issue.Value, Message: issue.Err.Error()}
	}
	return SessionResponse{Session: sess, Issues: issues}
}

// Upload handles POST /api/sessions
func (h *ResultsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.maxBytes + multipartOverhead
	if r.ContentLength > limit {
		h.errorHandler.HandleError(w, r, &http.MaxBytesError{Limit: limit})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.MalformedRequest(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		h.errorHandler.HandleError(w, r, apierrors.MissingFile("file"))
		return
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.MalformedRequest(err))
		return
	}
	defer file.Close()

	sess, err := h.service.Upload(r.Context(), file, services.LoadRequest{
		Filename: header.Filename,
		Format:   r.FormValue("format"),
		Sheet:    r.FormValue("sheet"),
		Charset:  r.FormValue("charset"),
		Size:     header.Size,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "upload accepted",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("session_id", sess.ID),
		slog.Int("records", sess.Records))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newSessionResponse(sess))
}

// ListSessions handles GET /api/sessions
func (h *ResultsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.service.List(r.Context())
	render.JSON(w, r, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession handles GET /api/sessions/{id}
func (h *ResultsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, newSessionResponse(sess))
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *ResultsHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// filterSpec validates the filter query parameters of r.
func (h *ResultsHandler) filterSpec(r *http.Request) (dataprocessing.FilterSpec, error) {
	params := services.FilterParamsFromQuery(r.URL.Query())
	if err := h.validator.ValidateStruct(params); err != nil {
		return dataprocessing.FilterSpec{}, err
	}
	return params.Spec()
}

// Records handles GET /api/sessions/{id}/records
func (h *ResultsHandler) Records(w http.ResponseWriter, r *http.Request) {
	spec, err := h.filterSpec(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	page, err := h.service.Records(r.Context(), chi.URLParam(r, "id"), spec)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

// Summary handles GET /api/sessions/{id}/summary
func (h *ResultsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	spec, err := h.filterSpec(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	view, err := h.service.Summary(r.Context(), chi.URLParam(r, "id"), spec)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

type groupsQuery struct {
	By     string `query:"by" validate:"omitempty,field"`
	Sorted string `query:"sorted" validate:"omitempty,boolean"`
}

// Groups handles GET /api/sessions/{id}/groups
func (h *ResultsHandler) Groups(w http.ResponseWriter, r *http.Request) {
	q := groupsQuery{
		By:     r.URL.Query().Get("by"),
		Sorted: r.URL.Query().Get("sorted"),
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	spec, err := h.filterSpec(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	by := domain.FieldQuestion
	if q.By != "" {
		if by, err = domain.ParseField(q.By); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidParam("by", err.Error()))
			return
		}
	}
	sorted, _ := strconv.ParseBool(q.Sorted)

	view, err := h.service.Groups(r.Context(), chi.URLParam(r, "id"), spec, by, sorted)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// Options handles GET /api/sessions/{id}/options
func (h *ResultsHandler) Options(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Options(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

type exportQuery struct {
	Format    string `query:"format" validate:"omitempty,oneof=csv xlsx"`
	Columns   string `query:"columns" validate:"fieldlist"`
	BOM       string `query:"bom" validate:"omitempty,boolean"`
	Precision string `query:"precision" validate:"omitempty,numeric"`
	Highlight string `query:"highlight" validate:"omitempty,boolean"`
}

func (q exportQuery) request() (services.ExportRequest, error) {
	req := services.ExportRequest{Format: q.Format}

	columns, err := domain.ParseFields(q.Columns)
	if err != nil {
		return req, apierrors.InvalidParam("columns", err.Error())
	}
	req.Columns = columns

	if q.BOM != "" {
		bom, _ := strconv.ParseBool(q.BOM)
		req.BOM = &bom
	}
	if q.Precision != "" {
		precision, err := strconv.Atoi(q.Precision)
		if err != nil || precision < -1 || precision > 15 {
			return req, apierrors.InvalidParam("precision", "precision must be an integer between -1 and 15")
		}
		req.Precision = &precision
	}
	req.Highlight, _ = strconv.ParseBool(q.Highlight)
	return req, nil
}

// Export handles GET /api/sessions/{id}/export
func (h *ResultsHandler) Export(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := exportQuery{
		Format:    query.Get("format"),
		Columns:   query.Get("columns"),
		BOM:       query.Get("bom"),
		Precision: query.Get("precision"),
		Highlight: query.Get("highlight"),
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	req, err := q.request()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	spec, err := h.filterSpec(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.Export(r.Context(), chi.URLParam(r, "id"), spec, req)
	if dataprocessing.IsEmptyResult(err) {
		w.Header().Set("X-Notice", services.NoticeEmpty)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Record-Count", strconv.Itoa(res.Records))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		h.logger.WarnContext(r.Context(), "export write failed",
			slog.String("error", err.Error()))
	}
}
