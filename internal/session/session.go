// Package session holds the per-upload state of the HTTP API. Each upload
// owns an immutable result set; every view derived from it is computed on
// request from the filters the caller sends.
package session

import (
	"time"

	"github.com/google/uuid"

	"ocrdash/internal/dataprocessing"
	"ocrdash/pkg/contracts/domain"
)

// Session is one loaded result file.
type Session struct {
	ID         string                            `json:"id"`
	Filename   string                            `json:"filename"`
	Format     dataprocessing.Format             `json:"format"`
	Sheet      string                            `json:"sheet,omitempty"`
	Size       int64                             `json:"size"`
	Records    int                               `json:"records"`
	Columns    map[domain.Field]string           `json:"columns"`
	Ignored    []string                          `json:"ignored,omitempty"`
	Issues     []*dataprocessing.FieldParseError `json:"-"`
	CreatedAt  time.Time                         `json:"created_at"`
	LastAccess time.Time                         `json:"last_access"`

	set domain.ResultSet
}

// New wraps a load result in a session with a fresh id.
func New(filename string, format dataprocessing.Format, size int64, res *dataprocessing.LoadResult) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.New().String(),
		Filename:   filename,
		Format:     format,
		Sheet:      res.Sheet,
		Size:       size,
		Records:    res.Set.Len(),
		Columns:    res.Columns,
		Ignored:    res.Ignored,
		Issues:     res.Issues,
		CreatedAt:  now,
		LastAccess: now,
		set:        res.Set,
	}
}

// Set returns the full result set of the session.
func (s *Session) Set() domain.ResultSet {
	return s.set
}
