package searchconsole

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metria/report-cli/pkg/apierr"
)

func TestFetchMetrics_TotalsAndQueries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sites/sc-domain:padaria.com.br/searchAnalytics/query", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"query"}, req.Dimensions)
		assert.Equal(t, rowLimit, req.RowLimit)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rows":[
			{"keys":["padaria perto de mim"],"clicks":120,"impressions":4000},
			{"keys":["pao frances"],"clicks":30,"impressions":900}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.FetchMetrics(context.Background(), FetchRequest{
		AccessToken: "test-token",
		SiteURL:     "sc-domain:padaria.com.br",
		StartDate:   "2025-07-01",
		EndDate:     "2025-07-31",
	})

	require.NoError(t, err)
	assert.Equal(t, float64(150), got.TotalClicks)
	assert.Equal(t, float64(4900), got.TotalImpressions)
	require.Len(t, got.Queries, 2)
	assert.Equal(t, "padaria perto de mim", got.Queries[0].Query)
	assert.Equal(t, float64(120), got.Queries[0].Clicks)
}

func TestFetchMetrics_NoRows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.FetchMetrics(context.Background(), FetchRequest{SiteURL: "https://padaria.com.br/"})

	require.NoError(t, err)
	assert.Zero(t, got.TotalClicks)
	assert.Empty(t, got.Queries)
}

func TestFetchMetrics_Forbidden(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"insufficient permissions"}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.FetchMetrics(context.Background(), FetchRequest{SiteURL: "https://padaria.com.br/"})

	require.Error(t, err)
	assert.True(t, apierr.IsStatus(err, http.StatusForbidden))
}
