package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"

	"ocrdash/internal/dataprocessing"
	"ocrdash/internal/exporter"
	"ocrdash/internal/infrastructure"
	"ocrdash/internal/session"
	"ocrdash/internal/validation"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
)

// Domain-specific error types
const (
	TypeDataUnreadable  = "/errors/data/unreadable"
	TypeDataSchema      = "/errors/data/schema"
	TypeInvalidFilter   = "/errors/filter/invalid"
	TypeInvalidColumns  = "/errors/export/columns"
	TypeSessionNotFound = "/errors/session/not-found"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", traceID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("problem_type", problem.Type),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		attrs = append(attrs, appErr.LogAttrs()...)
	}
	h.logger.LogAttrs(r.Context(), level, "request failed", attrs...)

	// Add stack trace in development
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", string(debug.Stack()))
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	// Check for context errors first
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			path,
		)
	}

	// Check for our custom API errors
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var schemaErr *dataprocessing.SchemaError
	if errors.As(err, &schemaErr) {
		missing := make([]string, len(schemaErr.Missing))
		for i, f := range schemaErr.Missing {
			missing[i] = string(f)
		}
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeDataSchema,
			"Missing Required Columns",
			schemaErr.Error(),
			path,
		).WithExtension("missing", missing).WithExtension("headers", schemaErr.Headers)
	}

	var loadErr *dataprocessing.LoadError
	if errors.As(err, &loadErr) {
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeDataUnreadable,
			"Unreadable File",
			loadErr.Error(),
			path,
		).WithExtension("reason", string(loadErr.Reason))
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Payload Too Large",
			fmt.Sprintf("The upload exceeds the maximum allowed size of %d bytes", maxBytesErr.Limit),
			path,
		).WithExtension("max_bytes", maxBytesErr.Limit)
	}

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeSessionNotFound,
			"Session Not Found",
			"The session does not exist or has expired; upload the file again",
			path,
		)

	case errors.Is(err, dataprocessing.ErrInvalidFilter):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidFilter,
			"Invalid Filter",
			err.Error(),
			path,
		)

	case errors.Is(err, exporter.ErrInvalidColumns), errors.Is(err, dataprocessing.ErrUnknownField):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidColumns,
			"Invalid Columns",
			err.Error(),
			path,
		)

	case errors.Is(err, validation.ErrInvalidFile):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeValidation,
			"Invalid File",
			err.Error(),
			path,
		)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return h.appErrorToProblem(appErr, r)
	}

	// Generic internal error
	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		path,
	)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeValidation
	if apiErr.StatusCode == http.StatusUnsupportedMediaType {
		problemType = TypeUnsupportedMedia
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	switch details := apiErr.Details.(type) {
	case nil:
	case []ParamError:
		problem.WithExtension("invalid_params", details)
	default:
		problem.WithExtension("details", details)
	}
	return problem
}

// appErrorToProblem hides the cause of a server-side failure; only its kind
// is exposed so operators can match the response to the log line.
func (h *ErrorHandler) appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	).WithExtension("kind", string(appErr.Kind))
}

// NotFound answers unknown routes.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := StatusProblem(http.StatusNotFound, "The requested resource was not found", r.URL.Path).
		WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))
	render.Render(w, r, problem)
}

// MethodNotAllowed answers known routes called with the wrong method.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	detail := fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method)
	problem := StatusProblem(http.StatusMethodNotAllowed, detail, r.URL.Path).
		WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))
	render.Render(w, r, problem)
}
