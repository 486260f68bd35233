package store

import (
	"context"
	"time"

	"github.com/metria/report-cli/internal/model"
)

// Store defines the persistence interface for the report pipeline. Reports
// and metrics are written via upserts keyed by their natural uniqueness
// (client+period, client+source+period), so concurrent re-triggers for the
// same key are last-writer-wins rather than duplicating rows.
type Store interface {
	// Clients
	GetClient(ctx context.Context, id string) (*model.Client, error)
	ListActiveClients(ctx context.Context, agencyID string) ([]model.Client, error)
	UpdateClientIntegrations(ctx context.Context, clientID string, integrations model.ClientIntegrations) error

	// Reports
	UpsertReport(ctx context.Context, clientID, agencyID string, period time.Time) (*model.Report, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
	GetReportByPeriod(ctx context.Context, clientID string, period time.Time) (*model.Report, error)
	UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus, errorMessage string) error
	SetReportAnalysis(ctx context.Context, id, analysis string) error
	SetReportPdfURL(ctx context.Context, id, pdfURL string) error
	FinishReport(ctx context.Context, id string, status model.ReportStatus, errorMessage string, sentAt time.Time) error

	// Metrics
	UpsertMetric(ctx context.Context, metric model.Metric) error
	ListMetrics(ctx context.Context, clientID string, period time.Time) ([]model.Metric, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
