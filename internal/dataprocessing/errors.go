package dataprocessing

import (
	"errors"
	"fmt"
	"strings"

	"ocrdash/pkg/contracts/domain"
)

// LoadReason classifies why a file could not be read at all.
type LoadReason string

const (
	ReasonUnsupportedFormat  LoadReason = "unsupported format"
	ReasonUnreadableEncoding LoadReason = "unreadable encoding"
	ReasonMalformed          LoadReason = "malformed file"
	ReasonEmptyFile          LoadReason = "empty file"
	ReasonSheetNotFound      LoadReason = "sheet not found"
	ReasonRead               LoadReason = "read failure"
)

var (
	// ErrInvalidFilter is returned for filter specs that cannot be evaluated.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrUnknownField is returned when an operation names a field it cannot use.
	ErrUnknownField = errors.New("unknown field")
)

// LoadError reports an unreadable upload. Nothing was loaded.
type LoadError struct {
	Reason LoadReason
	Detail string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "load failed: " + string(e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaError reports required canonical columns that no header resolved to.
type SchemaError struct {
	Missing []domain.Field
	// Headers are the header cells that were inspected, as found in the file.
	Headers []string
}

func (e *SchemaError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = string(f)
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(names, ", "))
}

// FieldParseError reports one cell that could not be coerced. It never aborts a load.
type FieldParseError struct {
	Row   int
	Field domain.Field
	Value string
	Err   error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("row %d: field %s: cannot parse %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *FieldParseError) Unwrap() error { return e.Err }

// EmptyResultError marks an operation requested on a view with no records.
// It is informational: callers render an empty state instead of failing.
type EmptyResultError struct {
	Operation string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s: no records match the current filters", e.Operation)
}

// RequireRecords returns an EmptyResultError when set is empty.
func RequireRecords(set domain.ResultSet, operation string) error {
	if set.IsEmpty() {
		return &EmptyResultError{Operation: operation}
	}
	return nil
}

// IsEmptyResult reports whether err is, or wraps, an EmptyResultError.
func IsEmptyResult(err error) bool {
	var empty *EmptyResultError
	return errors.As(err, &empty)
}
