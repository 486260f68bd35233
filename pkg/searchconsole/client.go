// Package searchconsole provides a client for the Search Console Search
// Analytics query endpoint.
package searchconsole

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/metria/report-cli/internal/model"
	"github.com/metria/report-cli/pkg/apierr"
)

const (
	serviceName = "search-console"
	rowLimit    = 50
)

// Client defines the Search Console operations used by the ingestor.
type Client interface {
	// FetchMetrics queries search analytics by query dimension for the
	// given site and date window.
	FetchMetrics(ctx context.Context, req FetchRequest) (*model.SearchConsoleData, error)
}

// FetchRequest identifies the site and date window to query.
type FetchRequest struct {
	AccessToken string
	SiteURL     string
	StartDate   string
	EndDate     string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Search Console client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://www.googleapis.com/webmasters/v3",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int      `json:"rowLimit"`
}

type queryResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
	} `json:"rows"`
}

func (c *httpClient) FetchMetrics(ctx context.Context, req FetchRequest) (*model.SearchConsoleData, error) {
	body, err := json.Marshal(queryRequest{
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Dimensions: []string{"query"},
		RowLimit:   rowLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "searchconsole: marshal request")
	}

	endpoint := fmt.Sprintf("%s/sites/%s/searchAnalytics/query", c.baseURL, url.PathEscape(req.SiteURL))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "searchconsole: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "searchconsole: query")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "searchconsole: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(serviceName, resp.StatusCode, string(respBody))
	}

	var parsed queryResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "searchconsole: decode response")
	}

	data := &model.SearchConsoleData{Queries: make([]model.QueryStat, 0, len(parsed.Rows))}
	for _, row := range parsed.Rows {
		stat := model.QueryStat{Clicks: row.Clicks, Impressions: row.Impressions}
		if len(row.Keys) > 0 {
			stat.Query = row.Keys[0]
		}
		data.Queries = append(data.Queries, stat)
		data.TotalClicks += row.Clicks
		data.TotalImpressions += row.Impressions
	}
	return data, nil
}
