package middleware

import (
	"net/http"

	"github.com/go-chi/render"

	apierrors "ocrdash/internal/errors"
)

// WriteProblem answers with a problem body for failures raised before the
// API error handler runs, such as throttling or a panic in outer middleware.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := apierrors.StatusProblem(status, detail, r.URL.Path).
		WithExtension("trace_id", GetRequestID(r.Context()))
	render.Render(w, r, problem)
}
