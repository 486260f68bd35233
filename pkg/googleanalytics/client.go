// Package googleanalytics provides a client for the GA4 Data API runReport
// endpoint, aggregated to the monthly totals the report pipeline consumes.
package googleanalytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/metria/report-cli/internal/model"
	"github.com/metria/report-cli/pkg/apierr"
)

const serviceName = "google-analytics"

// Client defines the GA4 Data API operations used by the ingestor.
type Client interface {
	// FetchMetrics runs a monthly report for the property and returns
	// aggregated totals. Dates are YYYY-MM-DD inclusive.
	FetchMetrics(ctx context.Context, req FetchRequest) (*model.GoogleAnalyticsData, error)
}

// FetchRequest identifies the property and date window to query.
type FetchRequest struct {
	AccessToken string
	PropertyID  string
	StartDate   string
	EndDate     string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a GA4 Data API client with client-side throttling.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://analyticsdata.googleapis.com/v1beta",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runReportRequest struct {
	DateRanges []dateRange  `json:"dateRanges"`
	Dimensions []namedField `json:"dimensions"`
	Metrics    []namedField `json:"metrics"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type namedField struct {
	Name string `json:"name"`
}

type runReportResponse struct {
	Rows []struct {
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

func (c *httpClient) FetchMetrics(ctx context.Context, req FetchRequest) (*model.GoogleAnalyticsData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "googleanalytics: limiter wait")
	}

	body, err := json.Marshal(runReportRequest{
		DateRanges: []dateRange{{StartDate: req.StartDate, EndDate: req.EndDate}},
		Dimensions: []namedField{{Name: "date"}},
		Metrics: []namedField{
			{Name: "activeUsers"},
			{Name: "sessions"},
			{Name: "screenPageViews"},
			{Name: "bounceRate"},
			{Name: "averageSessionDuration"},
			{Name: "conversions"},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "googleanalytics: marshal request")
	}

	url := fmt.Sprintf("%s/properties/%s:runReport", c.baseURL, req.PropertyID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "googleanalytics: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "googleanalytics: run report")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "googleanalytics: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(serviceName, resp.StatusCode, string(respBody))
	}

	var parsed runReportResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "googleanalytics: decode response")
	}

	return aggregate(parsed), nil
}

// aggregate sums daily rows into monthly totals; bounceRate and session
// duration are averaged across rows. An empty report yields a zero payload.
func aggregate(parsed runReportResponse) *model.GoogleAnalyticsData {
	data := &model.GoogleAnalyticsData{}
	if len(parsed.Rows) == 0 {
		return data
	}

	var bounceSum, durationSum float64
	for _, row := range parsed.Rows {
		vals := make([]float64, 6)
		for i, mv := range row.MetricValues {
			if i >= len(vals) {
				break
			}
			f, err := strconv.ParseFloat(mv.Value, 64)
			if err != nil {
				continue
			}
			vals[i] = f
		}
		data.Users += vals[0]
		data.Sessions += vals[1]
		data.Pageviews += vals[2]
		bounceSum += vals[3]
		durationSum += vals[4]
		data.Conversions += vals[5]
	}

	count := float64(len(parsed.Rows))
	data.Users = math.Round(data.Users)
	data.Sessions = math.Round(data.Sessions)
	data.Pageviews = math.Round(data.Pageviews)
	data.Conversions = math.Round(data.Conversions)
	data.BounceRate = math.Round(bounceSum/count*100) / 100
	data.AvgSessionDuration = math.Round(durationSum / count)
	return data
}
