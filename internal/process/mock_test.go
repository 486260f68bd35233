package process

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/metria/report-cli/internal/model"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetClient(ctx context.Context, id string) (*model.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockStore) ListActiveClients(ctx context.Context, agencyID string) ([]model.Client, error) {
	args := m.Called(ctx, agencyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Client), args.Error(1)
}

func (m *mockStore) UpdateClientIntegrations(ctx context.Context, clientID string, integrations model.ClientIntegrations) error {
	args := m.Called(ctx, clientID, integrations)
	return args.Error(0)
}

func (m *mockStore) UpsertReport(ctx context.Context, clientID, agencyID string, period time.Time) (*model.Report, error) {
	args := m.Called(ctx, clientID, agencyID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *mockStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *mockStore) GetReportByPeriod(ctx context.Context, clientID string, period time.Time) (*model.Report, error) {
	args := m.Called(ctx, clientID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *mockStore) UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus, errorMessage string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}

func (m *mockStore) SetReportAnalysis(ctx context.Context, id, analysis string) error {
	args := m.Called(ctx, id, analysis)
	return args.Error(0)
}

func (m *mockStore) SetReportPdfURL(ctx context.Context, id, pdfURL string) error {
	args := m.Called(ctx, id, pdfURL)
	return args.Error(0)
}

func (m *mockStore) FinishReport(ctx context.Context, id string, status model.ReportStatus, errorMessage string, sentAt time.Time) error {
	args := m.Called(ctx, id, status, errorMessage, sentAt)
	return args.Error(0)
}

func (m *mockStore) UpsertMetric(ctx context.Context, metric model.Metric) error {
	args := m.Called(ctx, metric)
	return args.Error(0)
}

func (m *mockStore) ListMetrics(ctx context.Context, clientID string, period time.Time) ([]model.Metric, error) {
	args := m.Called(ctx, clientID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Metric), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
