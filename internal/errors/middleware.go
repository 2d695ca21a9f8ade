package errors

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"ocrdash/internal/infrastructure"
)

// Middleware turns a panic in an API handler into a 500 problem. When the
// handler already started its response the connection is aborted instead,
// since a problem body would corrupt it.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			h.logger.ErrorContext(r.Context(), "panic recovered",
				slog.Any("panic", recovered),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Bool("response_started", ww.Status() != 0),
				slog.String("stack", string(debug.Stack())),
			)
			if ww.Status() != 0 {
				panic(http.ErrAbortHandler)
			}
			h.writePanic(ww, r, recovered)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (h *ErrorHandler) writePanic(w http.ResponseWriter, r *http.Request, recovered any) {
	problem := StatusProblem(http.StatusInternalServerError, "An unexpected error occurred", r.URL.Path).
		WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprint(recovered))
		problem.WithExtension("stack", string(debug.Stack()))
	}
	render.Render(w, r, problem)
}
