package process

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/metria/report-cli/internal/model"
)

func TestVariation(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     float64
	}{
		{"growth", 150, 100, 50},
		{"decline", 50, 100, -50},
		{"flat", 100, 100, 0},
		{"fractional rounding", 100.5, 33.165, 203.03},
		{"zero previous positive current", 42, 0, 100},
		{"zero previous zero current", 0, 0, 0},
		{"current drops to zero", 0, 80, -100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Variation(tt.current, tt.previous), 0.001)
		})
	}
}

var (
	july = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	june = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
)

func metricRow(source model.MetricSource, period time.Time, payload any) model.Metric {
	data, _ := json.Marshal(payload)
	return model.Metric{
		ClientID: "client-1",
		Source:   source,
		Period:   period,
		Data:     data,
	}
}

func TestProcess_BuildsSectionsWithVariation(t *testing.T) {
	st := &mockStore{}
	defer st.AssertExpectations(t)

	st.On("ListMetrics", mock.Anything, "client-1", july).Return([]model.Metric{
		metricRow(model.SourceGoogleAnalytics, july, model.GoogleAnalyticsData{Users: 200, Sessions: 300, Pageviews: 900, Conversions: 10}),
		metricRow(model.SourceMetaAds, july, model.MetaAdsData{Spend: 500, Reach: 10000, Impressions: 20000, Clicks: 400, Conversions: 25}),
	}, nil)
	st.On("ListMetrics", mock.Anything, "client-1", june).Return([]model.Metric{
		metricRow(model.SourceGoogleAnalytics, june, model.GoogleAnalyticsData{Users: 100, Sessions: 200, Pageviews: 600, Conversions: 5}),
	}, nil)

	got, err := New(st).Process(context.Background(), "client-1", july)
	require.NoError(t, err)

	assert.Equal(t, "2025-07", got.Period)
	require.NotNil(t, got.GoogleAnalytics)
	assert.Equal(t, float64(200), got.GoogleAnalytics.Users)
	assert.InDelta(t, 100, got.GoogleAnalytics.Variation["users"], 0.001)
	assert.InDelta(t, 50, got.GoogleAnalytics.Variation["sessions"], 0.001)

	// No previous Meta row: positive values read as 100% growth.
	require.NotNil(t, got.MetaAds)
	assert.InDelta(t, 100, got.MetaAds.Variation["spend"], 0.001)

	assert.Nil(t, got.SearchConsole)
	assert.False(t, got.Empty())
}

func TestProcess_PreviousOnlySourceZeroFillsCurrent(t *testing.T) {
	st := &mockStore{}
	defer st.AssertExpectations(t)

	st.On("ListMetrics", mock.Anything, "client-1", july).Return([]model.Metric{}, nil)
	st.On("ListMetrics", mock.Anything, "client-1", june).Return([]model.Metric{
		metricRow(model.SourceGoogleAnalytics, june, model.GoogleAnalyticsData{Users: 100, Sessions: 250}),
	}, nil)

	got, err := New(st).Process(context.Background(), "client-1", july)
	require.NoError(t, err)

	// A source that vanished this month still gets a section, diffed
	// against zeroed current figures.
	require.NotNil(t, got.GoogleAnalytics)
	assert.Zero(t, got.GoogleAnalytics.Users)
	assert.InDelta(t, -100, got.GoogleAnalytics.Variation["users"], 0.001)
	assert.InDelta(t, -100, got.GoogleAnalytics.Variation["sessions"], 0.001)
	assert.Nil(t, got.SearchConsole)
	assert.Nil(t, got.MetaAds)
	assert.False(t, got.Empty())
}

func TestProcess_NoMetricsEitherPeriodYieldsEmpty(t *testing.T) {
	st := &mockStore{}
	defer st.AssertExpectations(t)

	st.On("ListMetrics", mock.Anything, "client-1", july).Return([]model.Metric{}, nil)
	st.On("ListMetrics", mock.Anything, "client-1", june).Return([]model.Metric{}, nil)

	got, err := New(st).Process(context.Background(), "client-1", july)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestProcess_SearchConsoleQueriesSurvive(t *testing.T) {
	st := &mockStore{}
	defer st.AssertExpectations(t)

	st.On("ListMetrics", mock.Anything, "client-1", july).Return([]model.Metric{
		metricRow(model.SourceSearchConsole, july, model.SearchConsoleData{
			Queries: []model.QueryStat{
				{Query: "padaria perto de mim", Clicks: 30, Impressions: 500},
			},
			TotalClicks:      30,
			TotalImpressions: 500,
		}),
	}, nil)
	st.On("ListMetrics", mock.Anything, "client-1", june).Return([]model.Metric{
		metricRow(model.SourceSearchConsole, june, model.SearchConsoleData{TotalClicks: 20, TotalImpressions: 400}),
	}, nil)

	got, err := New(st).Process(context.Background(), "client-1", july)
	require.NoError(t, err)
	require.NotNil(t, got.SearchConsole)
	require.Len(t, got.SearchConsole.Queries, 1)
	assert.Equal(t, "padaria perto de mim", got.SearchConsole.Queries[0].Query)
	assert.InDelta(t, 50, got.SearchConsole.Variation["totalClicks"], 0.001)
	assert.InDelta(t, 25, got.SearchConsole.Variation["totalImpressions"], 0.001)
}

func TestProcess_CorruptPayloadFails(t *testing.T) {
	st := &mockStore{}
	defer st.AssertExpectations(t)

	st.On("ListMetrics", mock.Anything, "client-1", july).Return([]model.Metric{
		{ClientID: "client-1", Source: model.SourceGoogleAnalytics, Period: july, Data: json.RawMessage(`{not json`)},
	}, nil)
	st.On("ListMetrics", mock.Anything, "client-1", june).Return([]model.Metric{}, nil)

	_, err := New(st).Process(context.Background(), "client-1", july)
	assert.ErrorContains(t, err, "decode google analytics")
}
