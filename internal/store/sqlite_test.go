package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metria/report-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedTestClient(t *testing.T, st *SQLiteStore, id string) model.Client {
	t.Helper()
	c := model.Client{
		ID:       id,
		AgencyID: "agency-1",
		Name:     "Padaria do Bairro",
		Email:    "dono@padaria.com.br",
		Phone:    "+55 11 91234-5678",
		Active:   true,
		ReportConfig: model.ReportConfig{
			GooglePropertyID: "123456",
		},
	}
	require.NoError(t, st.SeedClient(context.Background(), c))
	return c
}

// --- Clients ---

func TestSQLite_GetClient(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedTestClient(t, st, "client-1")

	c, err := st.GetClient(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, "Padaria do Bairro", c.Name)
	assert.Equal(t, "agency-1", c.AgencyID)
	assert.Equal(t, "123456", c.ReportConfig.GooglePropertyID)
}

func TestSQLite_GetClient_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetClient(context.Background(), "missing")
	assert.ErrorContains(t, err, "client not found")
}

func TestSQLite_ListActiveClients_SkipsInactive(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedTestClient(t, st, "client-1")

	inactive := model.Client{ID: "client-2", AgencyID: "agency-1", Name: "Inativo", Active: false}
	require.NoError(t, st.SeedClient(ctx, inactive))

	clients, err := st.ListActiveClients(ctx, "agency-1")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "client-1", clients[0].ID)
}

func TestSQLite_UpdateClientIntegrations(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedTestClient(t, st, "client-1")

	integrations := model.ClientIntegrations{
		Google: &model.GoogleCredentials{
			AccessToken:  "enc-access",
			RefreshToken: "enc-refresh",
			ExpiresAt:    1735689600000,
		},
	}
	require.NoError(t, st.UpdateClientIntegrations(ctx, "client-1", integrations))

	c, err := st.GetClient(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, c.Integrations.Google)
	assert.Equal(t, "enc-access", c.Integrations.Google.AccessToken)
	assert.Nil(t, c.Integrations.Meta)
}

// --- Reports ---

func TestSQLite_UpsertReport_CreatesPending(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedTestClient(t, st, "client-1")
	period := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	r, err := st.UpsertReport(ctx, "client-1", "agency-1", period)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), r.Period)
	assert.NotEmpty(t, r.ID)
}

func TestSQLite_UpsertReport_ReusesExistingRow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedTestClient(t, st, "client-1")
	period := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	first, err := st.UpsertReport(ctx, "client-1", "agency-1", period)
	require.NoError(t, err)
	require.NoError(t, st.UpdateReportStatus(ctx, first.ID, model.StatusFailed, "boom"))

	second, err := st.UpsertReport(ctx, "client-1", "agency-1", period)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.StatusPending, second.Status)
	assert.Empty(t, second.ErrorMessage)
}

func TestSQLite_ReportLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedTestClient(t, st, "client-1")
	period := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	r, err := st.UpsertReport(ctx, "client-1", "agency-1", period)
	require.NoError(t, err)

	require.NoError(t, st.UpdateReportStatus(ctx, r.ID, model.StatusAnalyzing, ""))
	require.NoError(t, st.SetReportAnalysis(ctx, r.ID, "Os dados mostram crescimento."))
	require.NoError(t, st.SetReportPdfURL(ctx, r.ID, "https://r2.example.com/report.pdf"))

	sentAt := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.FinishReport(ctx, r.ID, model.StatusCompleted, "", sentAt))

	got, err := st.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "Os dados mostram crescimento.", got.AIAnalysis)
	assert.Equal(t, "https://r2.example.com/report.pdf", got.PdfURL)
	require.NotNil(t, got.SentAt)
	assert.WithinDuration(t, sentAt, *got.SentAt, time.Second)
}

func TestSQLite_GetReportByPeriod(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedTestClient(t, st, "client-1")
	period := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	created, err := st.UpsertReport(ctx, "client-1", "agency-1", period)
	require.NoError(t, err)

	// Any day inside the month resolves to the same report.
	got, err := st.GetReportByPeriod(ctx, "client-1", time.Date(2025, 6, 28, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestSQLite_UpdateReportStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateReportStatus(context.Background(), "missing", model.StatusFailed, "x")
	assert.ErrorContains(t, err, "not found")
}

// --- Metrics ---

func TestSQLite_UpsertMetric_ReplacesOnConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedTestClient(t, st, "client-1")
	period := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	first := model.Metric{
		ClientID: "client-1",
		AgencyID: "agency-1",
		Source:   model.SourceGoogleAnalytics,
		Period:   period,
		Data:     json.RawMessage(`{"users":100}`),
	}
	require.NoError(t, st.UpsertMetric(ctx, first))

	second := first
	second.Data = json.RawMessage(`{"users":250}`)
	require.NoError(t, st.UpsertMetric(ctx, second))

	metrics, err := st.ListMetrics(ctx, "client-1", period)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.JSONEq(t, `{"users":250}`, string(metrics[0].Data))
}

func TestSQLite_ListMetrics_FiltersByPeriod(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedTestClient(t, st, "client-1")

	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.UpsertMetric(ctx, model.Metric{
		ClientID: "client-1", AgencyID: "agency-1",
		Source: model.SourceGoogleAnalytics, Period: july,
		Data: json.RawMessage(`{"users":10}`),
	}))
	require.NoError(t, st.UpsertMetric(ctx, model.Metric{
		ClientID: "client-1", AgencyID: "agency-1",
		Source: model.SourceMetaAds, Period: july,
		Data: json.RawMessage(`{"spend":99.5}`),
	}))
	require.NoError(t, st.UpsertMetric(ctx, model.Metric{
		ClientID: "client-1", AgencyID: "agency-1",
		Source: model.SourceGoogleAnalytics, Period: june,
		Data: json.RawMessage(`{"users":5}`),
	}))

	metrics, err := st.ListMetrics(ctx, "client-1", july)
	require.NoError(t, err)
	assert.Len(t, metrics, 2)
	for _, m := range metrics {
		assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), m.Period)
	}
}
