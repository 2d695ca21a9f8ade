package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// Error codes carried by APIError.
const (
	CodeMalformedRequest   = "MALFORMED_REQUEST"
	CodeInvalidParams      = "INVALID_PARAMS"
	CodeMissingFile        = "MISSING_FILE"
	CodeMissingContentType = "MISSING_CONTENT_TYPE"
	CodeUnsupportedMedia   = "UNSUPPORTED_MEDIA_TYPE"
)

// APIError is a request the caller got wrong. It maps to a 4xx problem.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ParamError names one query or form parameter and why it was rejected.
// The JSON shape follows the "invalid-params" member of RFC 7807.
type ParamError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// InvalidParams reports every rejected parameter of a request.
func InvalidParams(params ...ParamError) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  CodeInvalidParams,
		Message:    "Request parameters are invalid",
		Details:    params,
	}
}

// InvalidParam reports a single rejected parameter.
func InvalidParam(name, reason string) *APIError {
	return InvalidParams(ParamError{Name: name, Reason: reason})
}

// MalformedRequest reports a body that could not be decoded at all, such as
// a truncated multipart upload.
func MalformedRequest(err error) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  CodeMalformedRequest,
		Message:    "Request body could not be decoded",
		Details:    err.Error(),
	}
}

// MissingFile reports an upload without its file part.
func MissingFile(field string) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  CodeMissingFile,
		Message:    "A result file is required",
		Details:    []ParamError{{Name: field, Reason: "no file was attached"}},
	}
}

// UnsupportedContentType reports a request body in a format the endpoint
// does not read. An absent Content-Type is a plain 400.
func UnsupportedContentType(got string, allowed []string) *APIError {
	if got == "" {
		return &APIError{
			StatusCode: http.StatusBadRequest,
			ErrorCode:  CodeMissingContentType,
			Message:    "Content-Type header is required",
			Details:    map[string]interface{}{"allowed": allowed},
		}
	}
	return &APIError{
		StatusCode: http.StatusUnsupportedMediaType,
		ErrorCode:  CodeUnsupportedMedia,
		Message:    "Unsupported content type",
		Details:    map[string]interface{}{"content_type": got, "allowed": allowed},
	}
}
