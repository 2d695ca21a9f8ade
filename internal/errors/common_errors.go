package errors

import (
	"errors"
	"fmt"
	"log/slog"
)

// Kind classifies a failure that is the server's fault rather than the caller's.
type Kind string

const (
	KindConfig    Kind = "config"
	KindStorage   Kind = "storage"
	KindTelemetry Kind = "telemetry"
	KindExport    Kind = "export"
	KindSession   Kind = "session"
)

// AppError is a server-side failure tagged with its kind and the operation
// that hit it. Callers see a generic 500; the kind and fields go to the log.
type AppError struct {
	Kind   Kind
	Op     string
	Err    error
	Fields map[string]any
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// With attaches a log field to the error.
func (e *AppError) With(key string, value any) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// LogAttrs returns the kind, operation and fields as slog attributes.
func (e *AppError) LogAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 2+len(e.Fields))
	attrs = append(attrs, slog.String("kind", string(e.Kind)), slog.String("op", e.Op))
	for k, v := range e.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

// Wrap tags err with kind and op. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) (Kind, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}
