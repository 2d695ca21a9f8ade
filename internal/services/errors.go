package services

import "errors"

// Service errors
var (
	// Upload errors
	ErrMissingFile = errors.New("no result file provided")

	// Export errors
	ErrUnsupportedExport = errors.New("unsupported export format")
)

// NoticeEmpty is shown in place of a view whose filters match no record.
const NoticeEmpty = "No records match the current filters."
