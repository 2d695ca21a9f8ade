package http

import (
	"context"
	"io"

	"ocrdash/internal/dataprocessing"
	"ocrdash/internal/services"
	"ocrdash/internal/session"
	"ocrdash/pkg/contracts/domain"
)

// ResultsServiceInterface defines the interface for session and view operations
type ResultsServiceInterface interface {
	Upload(ctx context.Context, r io.Reader, req services.LoadRequest) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) []*session.Session

	Records(ctx context.Context, id string, spec dataprocessing.FilterSpec) (*services.RecordsPage, error)
	Summary(ctx context.Context, id string, spec dataprocessing.FilterSpec) (*services.SummaryView, error)
	Groups(ctx context.Context, id string, spec dataprocessing.FilterSpec, by domain.Field, sorted bool) (*services.GroupsView, error)
	Options(ctx context.Context, id string) (*services.OptionsView, error)
	Export(ctx context.Context, id string, spec dataprocessing.FilterSpec, req services.ExportRequest) (*services.ExportResult, error)
}
