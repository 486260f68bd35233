// Package metaads provides a client for the Meta Graph API insights endpoint.
package metaads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/metria/report-cli/internal/model"
	"github.com/metria/report-cli/pkg/apierr"
)

const (
	serviceName = "meta-ads"
	apiVersion  = "v18.0"
)

// Client defines the Meta Ads operations used by the ingestor.
type Client interface {
	// FetchMetrics pulls account-level insights for the date window and
	// aggregates them to monthly totals.
	FetchMetrics(ctx context.Context, req FetchRequest) (*model.MetaAdsData, error)
}

// FetchRequest identifies the ad account and date window to query.
type FetchRequest struct {
	AccessToken string
	AdAccountID string
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
	limiter *rate.Limiter
}

// NewClient creates a Meta Graph API client with client-side throttling.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://graph.facebook.com/" + apiVersion,
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

type insightsResponse struct {
	Data []struct {
		Spend       string `json:"spend"`
		Reach       string `json:"reach"`
		Impressions string `json:"impressions"`
		Clicks      string `json:"clicks"`
		Actions     []struct {
			ActionType string `json:"action_type"`
			Value      string `json:"value"`
		} `json:"actions"`
	} `json:"data"`
}

func (c *httpClient) FetchMetrics(ctx context.Context, req FetchRequest) (*model.MetaAdsData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "metaads: limiter wait")
	}

	accountID := req.AdAccountID
	if !strings.HasPrefix(accountID, "act_") {
		accountID = "act_" + accountID
	}

	timeRange, err := json.Marshal(map[string]string{
		"since": req.StartDate,
		"until": req.EndDate,
	})
	if err != nil {
		return nil, eris.Wrap(err, "metaads: marshal time range")
	}

	params := url.Values{}
	params.Set("fields", "spend,reach,impressions,clicks,actions")
	params.Set("time_range", string(timeRange))
	params.Set("access_token", req.AccessToken)

	endpoint := fmt.Sprintf("%s/%s/insights?%s", c.baseURL, accountID, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "metaads: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "metaads: fetch insights")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "metaads: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(serviceName, resp.StatusCode, string(respBody))
	}

	var parsed insightsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "metaads: decode response")
	}

	data := &model.MetaAdsData{}
	for _, row := range parsed.Data {
		data.Spend += parseNum(row.Spend)
		data.Reach += parseNum(row.Reach)
		data.Impressions += parseNum(row.Impressions)
		data.Clicks += parseNum(row.Clicks)
		for _, action := range row.Actions {
			if action.ActionType == "purchase" {
				data.Conversions += parseNum(action.Value)
			}
		}
	}
	data.Spend = math.Round(data.Spend*100) / 100
	data.Conversions = math.Round(data.Conversions)
	return data, nil
}

func parseNum(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
