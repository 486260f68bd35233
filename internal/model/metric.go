package model

import (
	"encoding/json"
	"time"
)

// MetricSource identifies an external metrics provider.
type MetricSource string

const (
	SourceGoogleAnalytics MetricSource = "GOOGLE_ANALYTICS"
	SourceSearchConsole   MetricSource = "GOOGLE_SEARCH_CONSOLE"
	SourceMetaAds         MetricSource = "META_ADS"
)

// AllSources returns every known source in deterministic attempt order.
func AllSources() []MetricSource {
	return []MetricSource{SourceGoogleAnalytics, SourceSearchConsole, SourceMetaAds}
}

// Metric is one raw ingestion result, unique per (client, source, period).
// Re-ingestion for the same key overwrites Data and bumps FetchedAt.
type Metric struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id"`
	AgencyID  string          `json:"agency_id"`
	Source    MetricSource    `json:"source"`
	Period    time.Time       `json:"period"`
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// GoogleAnalyticsData is the GA4 payload stored in Metric.Data.
type GoogleAnalyticsData struct {
	Users              float64 `json:"users"`
	Sessions           float64 `json:"sessions"`
	Pageviews          float64 `json:"pageviews"`
	BounceRate         float64 `json:"bounceRate"`
	AvgSessionDuration float64 `json:"avgSessionDuration"`
	Conversions        float64 `json:"conversions"`
}

// QueryStat is a single ranked search query.
type QueryStat struct {
	Query       string  `json:"query"`
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
}

// SearchConsoleData is the Search Console payload stored in Metric.Data.
type SearchConsoleData struct {
	Queries          []QueryStat `json:"queries"`
	TotalClicks      float64     `json:"totalClicks"`
	TotalImpressions float64     `json:"totalImpressions"`
}

// MetaAdsData is the Meta Ads insights payload stored in Metric.Data.
type MetaAdsData struct {
	Spend       float64 `json:"spend"`
	Reach       float64 `json:"reach"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Conversions float64 `json:"conversions"`
}
